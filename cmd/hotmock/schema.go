package main

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/raywall/hotmock/pkg/schemamock"
	"github.com/spf13/cobra"
)

func newSchemaCmd() *cobra.Command {
	var (
		d        schemamock.Descriptor
		override string
		timeout  time.Duration
	)
	cmd := &cobra.Command{
		Use:   "schema",
		Short: "Gera o exemplo de uma interface a partir do schema remoto",
		RunE: func(cmd *cobra.Command, _ []string) error {
			var data interface{}
			if override != "" {
				if err := json.Unmarshal([]byte(override), &data); err != nil {
					return fmt.Errorf("override não é JSON válido: %w", err)
				}
			}

			client := schemamock.NewClient(schemamock.WithTimeout(timeout))
			out, err := client.FetchSchemaMock(cmd.Context(), d, data)
			if err != nil {
				return err
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(out)
		},
	}
	cmd.Flags().StringVar(&d.Host, "host", "", "endereço do serviço de documentação")
	cmd.Flags().StringVar(&d.ID, "id", "", "id da interface")
	cmd.Flags().StringVar(&d.Token, "token", "", "token do projeto")
	cmd.Flags().StringVar(&override, "override", "", "JSON mesclado sobre o exemplo gerado")
	cmd.Flags().DurationVar(&timeout, "timeout", schemamock.DefaultTimeout, "prazo da chamada remota")
	_ = cmd.MarkFlagRequired("host")
	_ = cmd.MarkFlagRequired("id")
	return cmd
}
