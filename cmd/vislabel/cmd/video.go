package cmd

import (
	"fmt"

	"github.com/MeKo-Tech/vislabel/internal/video"
	"github.com/spf13/cobra"
)

var videoCmd = &cobra.Command{
	Use:   "video <url>...",
	Short: "Resolve video links to their preview thumbnails",
	Long: `Extract the video identifier from each link and print its thumbnail URL.
Links without a recognisable identifier are shown as plain links.

Examples:
  vislabel video https://www.youtube.com/watch?v=XERplfomyFs
  vislabel video https://youtu.be/XERplfomyFs https://example.com/clip.mp4`,
	Args:         cobra.MinimumNArgs(1),
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		for _, ref := range video.ResolveAll(args) {
			if !ref.HasThumbnail() {
				_, _ = fmt.Fprintf(out, "%s\tno thumbnail\n", ref.URL)
				continue
			}
			_, _ = fmt.Fprintf(out, "%s\t%s\t%s\n", ref.URL, ref.ID, ref.Thumbnail)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(videoCmd)
}
