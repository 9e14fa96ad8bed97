package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/raywall/hotmock/pkg/config"
	"github.com/raywall/hotmock/pkg/dispatch"
	"github.com/raywall/hotmock/pkg/handlers"
	"github.com/raywall/hotmock/pkg/loader"
	"github.com/raywall/hotmock/pkg/metrics"
	"github.com/raywall/hotmock/pkg/observability"
	"github.com/raywall/hotmock/pkg/reload"
	"github.com/raywall/hotmock/pkg/routing"
	"github.com/raywall/hotmock/pkg/rules"
	"github.com/raywall/hotmock/pkg/schemamock"
	"github.com/raywall/hotmock/pkg/sources"
	"github.com/raywall/hotmock/pkg/transport"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// app liga os componentes do servidor a partir da configuração.
type app struct {
	cfg         *config.ServerConfig
	log         zerolog.Logger
	table       *routing.Table
	registry    *handlers.Registry
	loader      *loader.FileLoader
	coordinator *reload.Coordinator
	dispatcher  *dispatch.Dispatcher
	server      *transport.Server
	recorder    *metrics.Recorder
	closers     []func() error
}

func newApp(cfg *config.ServerConfig, log zerolog.Logger) (*app, error) {
	a := &app{cfg: cfg, log: log}

	provider, err := observability.SetupMetrics(cfg.Server.Metrics)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, provider.Close)
	a.recorder = metrics.NewRecorder(provider, log)

	rm, err := rules.NewRuleManager()
	if err != nil {
		return nil, err
	}

	resolver := sources.NewResolver()
	a.closers = append(a.closers, resolver.Close)

	a.registry = handlers.NewRegistry(handlers.Deps{
		Rules:       rm,
		Sources:     resolver,
		Schema:      a.schemaClient(),
		SchemaHost:  cfg.SchemaMock.Host,
		SchemaToken: cfg.SchemaMock.Token,
		Proxy: schemamock.ProxyTarget{
			Host:        cfg.SchemaMock.Host,
			ProjectID:   cfg.SchemaMock.Proxy.ProjectID,
			PathRewrite: cfg.SchemaMock.Proxy.PathRewrite,
		},
		Log: log,
	})

	a.table = routing.NewTable(routing.WithPriority(routing.Priority(cfg.Server.MatchPriority)))
	a.loader = loader.New(a.registry)
	a.coordinator = reload.NewCoordinator(a.table, a.loader,
		reload.WithLogger(log),
		reload.WithRecorder(a.recorder),
	)
	a.dispatcher = dispatch.New(a.table,
		dispatch.WithLogger(log),
		dispatch.WithTimeout(cfg.Server.GetHandlerTimeout()),
		dispatch.WithUploadsDir(cfg.Server.GetUploadsDir()),
		dispatch.WithMaxBodyBytes(cfg.Server.MaxBodyBytes),
		dispatch.WithRecorder(a.recorder),
	)
	a.server = transport.NewServer(transport.Options{
		Table:       a.table,
		Dispatcher:  a.dispatcher,
		Coordinator: a.coordinator,
		Recorder:    a.recorder,
		Log:         log,
	})
	return a, nil
}

// schemaClient escolhe o cache dos schemas remotos conforme a configuração.
func (a *app) schemaClient() *schemamock.Client {
	sm := a.cfg.SchemaMock
	opts := []schemamock.Option{
		schemamock.WithTimeout(sm.GetTimeout()),
		schemamock.WithLogger(a.log),
	}

	switch sm.Cache.Type {
	case "memory":
		opts = append(opts, schemamock.WithCache(schemamock.NewMemoryCache(sm.Cache.Size, sm.Cache.GetTTL())))
	case "redis":
		rdb := redis.NewClient(&redis.Options{Addr: sm.Cache.RedisAddr, Password: sm.Cache.RedisPassword})
		a.closers = append(a.closers, rdb.Close)
		opts = append(opts, schemamock.WithCache(schemamock.NewRedisCache(rdb, sm.Cache.GetTTL())))
	}
	return schemamock.NewClient(opts...)
}

// watcher observa os caminhos configurados, só com extensões conhecidas.
func (a *app) watcher() (*reload.Watcher, error) {
	opts := []reload.WatcherOption{
		reload.WithFilter(loader.Supported),
		reload.WithWatcherLogger(a.log),
	}
	if len(a.cfg.Watch.Include) > 0 {
		opts = append(opts, reload.WithInclude(a.cfg.Watch.Include...))
	}
	if len(a.cfg.Watch.Exclude) > 0 {
		opts = append(opts, reload.WithExclude(a.cfg.Watch.Exclude...))
	}
	return reload.NewWatcher(a.cfg.Watch.Paths, opts...)
}

func (a *app) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// loadConfig carrega a configuração e aplica as sobreposições do ambiente.
func loadConfig(ctx context.Context, source string) (*config.ServerConfig, error) {
	env, err := config.ReadRuntimeEnv()
	if err != nil {
		return nil, err
	}
	if source == "" {
		source = env.ConfigSource
	}

	cfg, err := config.Load(ctx, source)
	if err != nil {
		return nil, fmt.Errorf("falha ao carregar '%s': %w", source, err)
	}
	env.Apply(cfg)
	return cfg, nil
}
