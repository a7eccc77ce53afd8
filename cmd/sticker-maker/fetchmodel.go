package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/menta2k/sticker-maker/pkg/segment"
)

var fetchModelCmd = &cobra.Command{
	Use:   "fetch-model",
	Short: "Download the face detection cascade",
	RunE: func(cmd *cobra.Command, args []string) error {
		url := cfg.Segmentation.CascadeURL
		if url == "" {
			url = segment.DefaultCascadeURL
		}
		if err := segment.EnsureCascade(cfg.Segmentation.CascadePath, url); err != nil {
			return err
		}
		fmt.Printf("Cascade available at %s\n", cfg.Segmentation.CascadePath)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(fetchModelCmd)
}
