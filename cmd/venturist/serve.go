package main

import (
	"github.com/spf13/cobra"

	"github.com/venturist-ai/venturist/config"
	srv "github.com/venturist-ai/venturist/internal/server"
)

func serveCMD() *cobra.Command {
	var addr string
	var cfgPath string
	serve := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.LoadConfig(cfgPath)
			listen := addr
			if listen == "" {
				listen = cfg.General.Listen
			}
			if listen == "" {
				listen = ":8080"
			}
			return srv.Run(cfg, listen)
		},
	}
	serve.Flags().StringVar(&addr, "addr", "", "listen address (overrides general.listen)")
	serve.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "config file (default is .)")
	return serve
}
