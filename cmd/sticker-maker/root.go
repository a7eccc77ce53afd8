package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	stickermaker "github.com/menta2k/sticker-maker"
	"github.com/menta2k/sticker-maker/internal/config"
	"github.com/menta2k/sticker-maker/internal/utils"
)

var (
	cfgPath string
	verbose bool

	// cfg is loaded in the root PersistentPreRunE and shared by subcommands.
	cfg *config.Config
)

var rootCmd = &cobra.Command{
	Use:     "sticker-maker",
	Short:   "Turn frames into background-removed WebP stickers",
	Version: stickermaker.Version,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if verbose {
			logrus.SetLevel(logrus.DebugLevel)
		}

		path := cfgPath
		if path == "" {
			path = config.GetConfigPath()
			if !utils.FileExists(path) {
				cfg = config.Default()
				return nil
			}
		}

		var err error
		cfg, err = config.LoadFromFile(path)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		return nil
	},
}

func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rootCmd.SetVersionTemplate(`{{printf "%s\n" .Version}}`)

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "Path to config file (default: ~/.config/sticker-maker/config.json)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
}
