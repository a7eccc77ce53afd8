package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	stickermaker "github.com/menta2k/sticker-maker"
	"github.com/menta2k/sticker-maker/internal/utils"
	"github.com/menta2k/sticker-maker/pkg/geometry"
	"github.com/menta2k/sticker-maker/pkg/imgio"
)

// convertQuality is the encode quality used when the output name asks for a
// lossy format other than the pipeline's native WebP.
const convertQuality = 90

var processOpts struct {
	Output     string
	Mirror     bool
	Zoom       float64
	PanX       float64
	PanY       float64
	Brightness int
	Backend    string
}

var processCmd = &cobra.Command{
	Use:   "process <image-or-url>",
	Short: "Make a sticker from a single frame",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runProcess(args[0])
	},
}

func init() {
	processCmd.Flags().StringVarP(&processOpts.Output, "output", "o", "", "Output file; a .png or .jpg name re-encodes the sticker (default: sticker_<timestamp>.webp in the configured output dir)")
	processCmd.Flags().BoolVarP(&processOpts.Mirror, "mirror", "m", false, "Mirror the frame horizontally")
	processCmd.Flags().Float64VarP(&processOpts.Zoom, "zoom", "z", geometry.ZoomMin, "Zoom factor (1 to 5)")
	processCmd.Flags().Float64Var(&processOpts.PanX, "pan-x", 0, "Horizontal pan offset (-1 to 1, shrinks with zoom)")
	processCmd.Flags().Float64Var(&processOpts.PanY, "pan-y", 0, "Vertical pan offset (-1 to 1, shrinks with zoom)")
	processCmd.Flags().IntVarP(&processOpts.Brightness, "brightness", "b", 0, "Additive brightness offset (-50 to 100)")
	processCmd.Flags().StringVar(&processOpts.Backend, "backend", "", "Segmentation backend override (saliency or ollama)")

	rootCmd.AddCommand(processCmd)
}

func runProcess(source string) error {
	if processOpts.Backend != "" {
		cfg.Segmentation.Backend = processOpts.Backend
	}

	maker, err := stickermaker.NewWithConfig(cfg)
	if err != nil {
		return err
	}

	opts := stickermaker.StickerOptions{
		Mirrored: processOpts.Mirror,
		Zoom:     geometry.ClampZoom(processOpts.Zoom),
		Pan: geometry.Pan{X: processOpts.PanX, Y: processOpts.PanY}.
			Clamp(geometry.ClampZoom(processOpts.Zoom)),
		Brightness: geometry.ClampBrightness(processOpts.Brightness),
	}

	out := processOpts.Output
	if out != "" {
		out = filepath.Join(filepath.Dir(out), utils.SanitizeFilename(filepath.Base(out)))
	}

	path := out
	switch format := utils.GetFileExtension(out); format {
	case "png", "jpg", "jpeg":
		img, err := imgio.LoadSmart(source)
		if err != nil {
			return err
		}
		data, err := maker.MakeSticker(img, opts)
		if err != nil {
			return err
		}
		sticker, err := imgio.DecodeBytes(data)
		if err != nil {
			return err
		}
		if err := imgio.Save(sticker, out, format, convertQuality, false); err != nil {
			return err
		}
	default:
		var err error
		path, err = maker.MakeStickerFile(source, out, opts)
		if err != nil {
			return err
		}
	}

	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	fmt.Printf("Sticker written to %s (%s)\n", path, utils.FormatFileSize(info.Size()))
	return nil
}
