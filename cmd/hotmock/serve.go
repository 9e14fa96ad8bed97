package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/raywall/hotmock/pkg/logger"
	"github.com/raywall/hotmock/pkg/sources"
	"github.com/raywall/hotmock/pkg/transport"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

// Variáveis injetáveis para mocking
var (
	serverStarter = func(ctx context.Context, srv *transport.Server, addr string) error {
		return srv.Start(ctx, addr)
	}
	sqsClientFactory = func(ctx context.Context) (transport.SQSClient, error) {
		awsCfg, err := sources.GetAWSConfig(ctx, "")
		if err != nil {
			return nil, err
		}
		return sqs.NewFromConfig(awsCfg), nil
	}
)

func newServeCmd() *cobra.Command {
	var configPath string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Inicia o servidor e observa os arquivos de definição",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), configPath)
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "", "arquivo de configuração (caminho, s3:// ou dynamodb://); padrão: $MOCKSERVER_CONFIG")
	return cmd
}

// runServe contém a lógica principal testável
func runServe(ctx context.Context, source string) error {
	cfg, err := loadConfig(ctx, source)
	if err != nil {
		return err
	}
	log := logger.Configure(cfg.Server.Logging, cfg.Server.Name)

	a, err := newApp(cfg, log)
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			log.Warn().Err(err).Msg("falha ao liberar recursos")
		}
	}()

	var reloader *transport.SQSReloader
	if queue := cfg.Watch.SQSReloadQueue; queue != "" {
		client, err := sqsClientFactory(ctx)
		if err != nil {
			return fmt.Errorf("falha ao criar client SQS: %w", err)
		}
		reloader = transport.NewSQSReloader(client, queue, a.coordinator, log)
	}

	watcher, err := a.watcher()
	if err != nil {
		return err
	}
	// recargas via SQS ou admin varrem o disco, não só os arquivos já carregados
	a.coordinator.SetScanner(watcher)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return ignoreCanceled(watcher.Run(ctx)) })
	g.Go(func() error { return ignoreCanceled(a.coordinator.Run(ctx, watcher.Events())) })
	g.Go(func() error {
		return serverStarter(ctx, a.server, fmt.Sprintf(":%d", cfg.Server.Port))
	})

	if reloader != nil {
		g.Go(func() error { return reloader.Run(ctx) })
	}

	return g.Wait()
}

func ignoreCanceled(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
