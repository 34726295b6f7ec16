package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"

	"github.com/MeKo-Tech/vislabel/internal/demo"
	"github.com/MeKo-Tech/vislabel/internal/imageio"
	"github.com/MeKo-Tech/vislabel/internal/rank"
	"github.com/spf13/cobra"
)

const (
	outputFormatJSON = "json"
	outputFormatText = "text"
)

var validFormats = []string{outputFormatText, outputFormatJSON}

// classifyOutput is the JSON shape printed by classify.
type classifyOutput struct {
	File       string        `json:"file"`
	Label      string        `json:"label"`
	Confidence float64       `json:"confidence"`
	Ranked     []rank.Ranked `json:"ranked"`
	InfoLabel  string        `json:"info_label"`
	Panel      demo.Panel    `json:"panel"`
	Width      int           `json:"width"`
	Height     int           `json:"height"`
}

// classifyCmd represents the classify command.
var classifyCmd = &cobra.Command{
	Use:   "classify <image>",
	Short: "Classify an image and show the content for its label",
	Long: `Classify one image file and print the predicted label, the ranked
probabilities and the content for the chosen label.

Supported formats: JPEG, PNG, WebP, TIFF, BMP

Examples:
  vislabel classify photo.jpg
  vislabel classify photo.jpg --top 3
  vislabel classify photo.jpg --label eye --format json`,
	Args:         cobra.ExactArgs(1),
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		format, _ := cmd.Flags().GetString("format")
		if !slices.Contains(validFormats, format) {
			return fmt.Errorf("invalid output format: %s (must be one of: text, json)", format)
		}
		label, _ := cmd.Flags().GetString("label")
		top, _ := cmd.Flags().GetInt("top")

		path := args[0]
		if !imageio.IsSupportedFile(path) {
			return fmt.Errorf("unsupported image file: %s", path)
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("failed to read image: %w", err)
		}

		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}
		svc, predictor, err := openService(ctx, GetConfig())
		if err != nil {
			return err
		}
		defer func() { _ = predictor.Close() }()

		it, err := svc.Analyze(ctx, data, label)
		if err != nil {
			var decErr *imageio.DecodeError
			if errors.As(err, &decErr) {
				return fmt.Errorf("could not read %s as an image: %w", path, err)
			}
			return fmt.Errorf("classification failed: %w", err)
		}

		out := cmd.OutOrStdout()
		if format == outputFormatJSON {
			return writeClassifyJSON(out, path, it, top)
		}
		return writeClassifyText(out, it, top)
	},
}

func writeClassifyJSON(w io.Writer, path string, it *demo.Interaction, top int) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(classifyOutput{
		File:       path,
		Label:      it.Prediction.Label,
		Confidence: it.Prediction.Confidence(),
		Ranked:     rank.Top(it.Ranked, top),
		InfoLabel:  it.InfoLabel,
		Panel:      it.Panel,
		Width:      it.Image.Width,
		Height:     it.Image.Height,
	})
}

func writeClassifyText(w io.Writer, it *demo.Interaction, top int) error {
	if _, err := fmt.Fprintf(w, "Prediction: %s (%s)\n", it.Prediction.Label, rank.Percent(it.Prediction.Confidence())); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	_, _ = fmt.Fprintln(w, "\nProbabilities:")
	for _, r := range rank.Top(it.Ranked, top) {
		marker := " "
		if r.Label == it.Prediction.Label {
			marker = "*"
		}
		_, _ = fmt.Fprintf(w, "%s %-20s %8s\n", marker, r.Label, r.Percent())
	}
	_, _ = fmt.Fprintln(w)
	return writePanelText(w, it.Panel)
}

func writePanelText(w io.Writer, p demo.Panel) error {
	if _, err := fmt.Fprintf(w, "Content: %s\n", p.Label); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	if p.Empty() {
		_, _ = fmt.Fprintln(w, "  (no content)")
		return nil
	}
	for _, t := range p.Texts {
		_, _ = fmt.Fprintf(w, "  %s\n", t)
	}
	for _, img := range p.Images {
		_, _ = fmt.Fprintf(w, "  image: %s\n", img)
	}
	for _, v := range p.Videos {
		if v.HasThumbnail() {
			_, _ = fmt.Fprintf(w, "  video: %s (thumbnail %s)\n", v.URL, v.Thumbnail)
		} else {
			_, _ = fmt.Fprintf(w, "  video: %s\n", v.URL)
		}
	}
	return nil
}

func init() {
	rootCmd.AddCommand(classifyCmd)
	classifyCmd.Flags().StringP("format", "f", outputFormatText, "output format (text, json)")
	classifyCmd.Flags().StringP("label", "l", "", "label whose content is shown (default is the predicted label)")
	classifyCmd.Flags().IntP("top", "k", 0, "show only the k most likely labels (0 shows all)")
}
