package main

import (
	"github.com/spf13/cobra"

	"github.com/venturist-ai/venturist/config"
	srv "github.com/venturist-ai/venturist/internal/server"
)

func migrateCMD() *cobra.Command {
	var cfgPath, dir, direction string
	var steps int
	migrate := &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.LoadConfig(cfgPath)
			dsn, err := cfg.Databases.Postgres.DSN()
			if err != nil {
				return err
			}
			return srv.Migrate(dir, dsn, direction, steps)
		},
	}
	migrate.Flags().StringVar(&dir, "dir", "file://migrations", "migrations source")
	migrate.Flags().StringVar(&direction, "direction", "up", "up or down")
	migrate.Flags().IntVar(&steps, "steps", 0, "number of steps (0 = all)")
	migrate.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "config file (default is .)")
	return migrate
}
