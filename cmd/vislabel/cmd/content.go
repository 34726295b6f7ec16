package cmd

import (
	"encoding/json"
	"fmt"
	"slices"

	"github.com/MeKo-Tech/vislabel/internal/demo"
	"github.com/MeKo-Tech/vislabel/internal/video"
	"github.com/spf13/cobra"
)

// contentCmd prints the content bundle for one label.
var contentCmd = &cobra.Command{
	Use:   "content <label>",
	Short: "Show the content attached to a label",
	Long: `Show the texts, images and videos attached to a label. The label set is
read from the model's metadata or labels file; the ONNX runtime is not
started.

Examples:
  vislabel content hand
  vislabel content --labels labels.txt --content content.yaml eye`,
	Args:         cobra.ExactArgs(1),
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		format, _ := cmd.Flags().GetString("format")
		if !slices.Contains(validFormats, format) {
			return fmt.Errorf("invalid output format: %s (must be one of: text, json)", format)
		}

		cfg := GetConfig()
		labels, err := resolveLabels(cfg)
		if err != nil {
			return fmt.Errorf("failed to load labels: %w", err)
		}
		table, err := loadTable(cfg, labels)
		if err != nil {
			return err
		}

		label := args[0]
		b := table.Select(label)
		panel := demo.Panel{Label: label, Texts: b.Texts, Images: b.Images, Videos: video.ResolveAll(b.Videos)}

		out := cmd.OutOrStdout()
		if format == outputFormatJSON {
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(panel)
		}
		if !slices.Contains(labels, label) {
			_, _ = fmt.Fprintf(out, "Unknown label %q (known: %v)\n", label, labels)
		}
		return writePanelText(out, panel)
	},
}

func init() {
	rootCmd.AddCommand(contentCmd)
	contentCmd.Flags().StringP("format", "f", outputFormatText, "output format (text, json)")
}
