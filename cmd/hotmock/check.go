package main

import (
	"errors"
	"fmt"

	"github.com/raywall/hotmock/pkg/config"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

func newCheckCmd() *cobra.Command {
	var configPath string
	cmd := &cobra.Command{
		Use:   "check [arquivos...]",
		Short: "Valida arquivos de definição e lista suas rotas",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := &config.ServerConfig{}
			if configPath != "" {
				loaded, err := loadConfig(cmd.Context(), configPath)
				if err != nil {
					return err
				}
				cfg = loaded
			}

			a, err := newApp(cfg, zerolog.Nop())
			if err != nil {
				return err
			}
			defer a.Close()

			out := cmd.OutOrStdout()
			var failed int
			for _, path := range args {
				mapping, err := a.loader.Load(cmd.Context(), path)
				if err != nil {
					failed++
					fmt.Fprintf(out, "❌ %s: %v\n", path, err)
					continue
				}
				fmt.Fprintf(out, "✅ %s: %d rota(s)\n", path, len(mapping))
				for _, route := range mapping {
					fmt.Fprintf(out, "   %-40s %s\n", route.Key, route.Entry.Kind())
				}
			}
			if failed > 0 {
				return errors.New("há arquivos de definição inválidos")
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "", "configuração usada para os padrões de schema/proxy")
	return cmd
}
