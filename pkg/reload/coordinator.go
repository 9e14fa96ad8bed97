// Package reload mantém a tabela de rotas sincronizada com os arquivos de
// definição: observa o disco e reconcilia a contribuição de cada arquivo.
package reload

import (
	"context"
	"sync/atomic"

	"github.com/raywall/hotmock/pkg/metrics"
	"github.com/raywall/hotmock/pkg/routing"
	"github.com/rs/zerolog"
)

// EventKind é o tipo de mudança observada num arquivo.
type EventKind string

const (
	EventAdd    EventKind = "add"
	EventChange EventKind = "change"
	EventUnlink EventKind = "unlink"
)

// Event é uma mudança num arquivo de definição.
type Event struct {
	Kind EventKind
	Path string
}

// ModuleLoader carrega um arquivo de definição e devolve seu mapeamento.
type ModuleLoader interface {
	Load(ctx context.Context, path string) (routing.Mapping, error)
}

// Scanner lista os arquivos de definição existentes agora. Usado na recarga
// completa para achar arquivos novos ou que falharam no primeiro carregamento.
type Scanner interface {
	Scan() ([]string, error)
}

// State é o estado do coordenador.
type State int32

const (
	StateIdle State = iota
	StateLoading
	StateReconciling
)

func (s State) String() string {
	switch s {
	case StateLoading:
		return "loading"
	case StateReconciling:
		return "reconciling"
	default:
		return "idle"
	}
}

// Result resume o processamento de um evento.
type Result struct {
	Event   Event
	Removed []string
	Added   []string
	Err     error
	Ignored bool
}

// Coordinator aplica eventos de arquivo na tabela, um de cada vez.
//
// A reconciliação é atômica por arquivo: se o carregamento falhar, a
// contribuição anterior do arquivo continua servindo.
type Coordinator struct {
	table    *routing.Table
	loader   ModuleLoader
	log      zerolog.Logger
	recorder *metrics.Recorder
	listener func(Result)
	scanner  Scanner

	state   atomic.Int32
	reloads chan struct{}
}

// Option configura o Coordinator.
type Option func(*Coordinator)

func WithLogger(log zerolog.Logger) Option {
	return func(c *Coordinator) { c.log = log.With().Str("component", "reload").Logger() }
}

func WithRecorder(rec *metrics.Recorder) Option {
	return func(c *Coordinator) { c.recorder = rec }
}

// WithListener recebe o resultado de cada evento processado por Run.
func WithListener(fn func(Result)) Option {
	return func(c *Coordinator) { c.listener = fn }
}

// WithScanner define a fonte da varredura usada por Reload.
func WithScanner(s Scanner) Option {
	return func(c *Coordinator) { c.scanner = s }
}

// NewCoordinator cria o coordenador em Idle.
func NewCoordinator(table *routing.Table, loader ModuleLoader, opts ...Option) *Coordinator {
	c := &Coordinator{
		table:   table,
		loader:  loader,
		log:     zerolog.Nop(),
		reloads: make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// State devolve o estado atual.
func (c *Coordinator) State() State {
	return State(c.state.Load())
}

// SetScanner troca a fonte da varredura. Deve ser chamado antes de Run.
func (c *Coordinator) SetScanner(s Scanner) {
	c.scanner = s
}

// Reload pede uma recarga completa. Com Scanner: add para arquivos novos,
// change para os conhecidos e unlink para donos que sumiram. Sem Scanner:
// change para cada arquivo com rotas ativas. Pedidos repetidos antes do
// processamento são agrupados.
func (c *Coordinator) Reload() {
	select {
	case c.reloads <- struct{}{}:
	default:
	}
}

// Run processa eventos até o contexto terminar ou o canal fechar.
func (c *Coordinator) Run(ctx context.Context, events <-chan Event) error {
	c.log.Info().Msg("coordenador de recarga iniciado")
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case ev, ok := <-events:
			if !ok {
				return nil
			}
			c.notify(c.Handle(ctx, ev))

		case <-c.reloads:
			for _, ev := range c.fullReload() {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				c.notify(c.Handle(ctx, ev))
			}
		}
	}
}

// fullReload monta os eventos de uma recarga completa.
func (c *Coordinator) fullReload() []Event {
	owners := c.table.Owners()
	if c.scanner == nil {
		c.log.Info().Int("files", len(owners)).Msg("recarga completa solicitada")
		return diffEvents(owners, owners)
	}

	files, err := c.scanner.Scan()
	if err != nil {
		c.log.Error().Err(err).Msg("falha na varredura; recarregando só os arquivos conhecidos")
		return diffEvents(owners, owners)
	}
	c.log.Info().Int("files", len(files)).Int("owners", len(owners)).Msg("recarga completa com varredura")
	return diffEvents(owners, files)
}

// diffEvents gera add para arquivos sem rotas ativas, change para os
// conhecidos e unlink para donos ausentes da lista.
func diffEvents(owners, files []string) []Event {
	known := make(map[string]bool, len(owners))
	for _, o := range owners {
		known[o] = true
	}

	events := make([]Event, 0, len(files)+len(owners))
	present := make(map[string]bool, len(files))
	for _, f := range files {
		present[f] = true
		kind := EventAdd
		if known[f] {
			kind = EventChange
		}
		events = append(events, Event{Kind: kind, Path: f})
	}
	for _, o := range owners {
		if !present[o] {
			events = append(events, Event{Kind: EventUnlink, Path: o})
		}
	}
	return events
}

// Handle processa um único evento de forma síncrona.
func (c *Coordinator) Handle(ctx context.Context, ev Event) Result {
	log := c.log.With().Str("event", string(ev.Kind)).Str("file", ev.Path).Logger()
	res := Result{Event: ev}

	switch ev.Kind {
	case EventUnlink:
		c.setState(StateReconciling)
		res.Removed = c.table.RemoveAllFor(ev.Path)
		c.setState(StateIdle)
		log.Info().Int("removed", len(res.Removed)).Msg("rotas do arquivo removidas")

	case EventAdd, EventChange:
		c.setState(StateLoading)
		mapping, err := c.loader.Load(ctx, ev.Path)
		if err != nil {
			c.setState(StateIdle)
			res.Err = err
			log.Error().Err(err).Msg("falha ao carregar definição; rotas anteriores mantidas")
			break
		}

		c.setState(StateReconciling)
		res.Removed, res.Added, res.Err = c.table.Reconcile(ev.Path, mapping)
		c.setState(StateIdle)
		if res.Err != nil {
			log.Error().Err(res.Err).Msg("falha ao reconciliar; rotas anteriores mantidas")
			break
		}
		log.Info().Int("removed", len(res.Removed)).Int("added", len(res.Added)).Msg("rotas recarregadas")

	default:
		res.Ignored = true
		log.Debug().Msg("evento ignorado")
		return res
	}

	status := "ok"
	if res.Err != nil {
		status = "error"
	}
	c.recorder.Reload(string(ev.Kind), status)
	c.recorder.Routes(c.table.Len())
	return res
}

func (c *Coordinator) setState(s State) {
	c.state.Store(int32(s))
}

func (c *Coordinator) notify(res Result) {
	if c.listener != nil {
		c.listener(res)
	}
}
