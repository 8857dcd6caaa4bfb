package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/Sisicca/EditorialAgents/config"
	srv "github.com/Sisicca/EditorialAgents/internal/server"
)

func serveCMD() *cobra.Command {
	var cfgPath string
	var serve = &cobra.Command{
		Use:   "serve",
		Short: "Run the article process HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cfgPath)
			if err != nil {
				return err
			}
			return srv.Run(context.Background(), cfg)
		},
	}
	serve.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "config directory (default is .)")
	return serve
}
