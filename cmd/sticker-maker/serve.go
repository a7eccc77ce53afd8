package main

import (
	"github.com/spf13/cobra"

	stickermaker "github.com/menta2k/sticker-maker"
	"github.com/menta2k/sticker-maker/pkg/server"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the sticker HTTP server",
	RunE: func(cmd *cobra.Command, args []string) error {
		maker, err := stickermaker.NewWithConfig(cfg)
		if err != nil {
			return err
		}

		addr := serveAddr
		if addr == "" {
			addr = cfg.Server.ListenAddr
		}
		return server.New(maker).Run(cmd.Context(), addr)
	},
}

func init() {
	serveCmd.Flags().StringVarP(&serveAddr, "listen", "l", "", "Listen address (default from config, :1323)")
	rootCmd.AddCommand(serveCmd)
}
