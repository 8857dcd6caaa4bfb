package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Sisicca/EditorialAgents/config"
	"github.com/Sisicca/EditorialAgents/internal/pipeline"
	"github.com/Sisicca/EditorialAgents/internal/planner"
)

func generateCMD() *cobra.Command {
	var cfgPath string
	var description string
	var problem string
	var outPath string
	var generate = &cobra.Command{
		Use:   "generate <topic>",
		Short: "Plan, research and compose one article",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cfgPath)
			if err != nil {
				return err
			}
			p, err := pipeline.New(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			article, err := p.Run(cmd.Context(), planner.Brief{
				Topic:       args[0],
				Description: description,
				Problem:     problem,
			})
			if err != nil {
				return err
			}
			if outPath != "" {
				return os.WriteFile(outPath, []byte(article), 0o644)
			}
			fmt.Fprintln(cmd.OutOrStdout(), article)
			return nil
		},
	}
	generate.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "config directory (default is .)")
	generate.Flags().StringVar(&description, "description", "", "what the article should cover")
	generate.Flags().StringVar(&problem, "problem", "", "the question the article answers")
	generate.Flags().StringVarP(&outPath, "out", "o", "", "write the article to a file instead of stdout")
	return generate
}
