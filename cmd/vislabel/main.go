package main

import "github.com/MeKo-Tech/vislabel/cmd/vislabel/cmd"

func main() {
	cmd.Execute()
}
