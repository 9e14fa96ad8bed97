package reload

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// Watcher converte notificações do fsnotify em Events. Diretórios são
// observados recursivamente; arquivos avulsos são observados pelo diretório pai.
type Watcher struct {
	fs      *fsnotify.Watcher
	dirs    []string
	files   map[string]bool
	include []string
	exclude []string
	accept  func(path string) bool
	log     zerolog.Logger
	events  chan Event
}

// WatcherOption configura o Watcher.
type WatcherOption func(*Watcher)

// WithInclude restringe os arquivos a padrões doublestar (ex: "**/*.yaml"),
// relativos ao diretório observado.
func WithInclude(patterns ...string) WatcherOption {
	return func(w *Watcher) { w.include = append(w.include, patterns...) }
}

// WithExclude descarta arquivos que casem com os padrões.
func WithExclude(patterns ...string) WatcherOption {
	return func(w *Watcher) { w.exclude = append(w.exclude, patterns...) }
}

// WithFilter aplica um filtro extra (ex: extensões com decodificador).
func WithFilter(fn func(path string) bool) WatcherOption {
	return func(w *Watcher) { w.accept = fn }
}

func WithWatcherLogger(log zerolog.Logger) WatcherOption {
	return func(w *Watcher) { w.log = log.With().Str("component", "watcher").Logger() }
}

// NewWatcher valida os caminhos e os padrões. A observação começa em Run.
func NewWatcher(paths []string, opts ...WatcherOption) (*Watcher, error) {
	if len(paths) == 0 {
		return nil, errors.New("nenhum caminho para observar")
	}

	w := &Watcher{
		files:  make(map[string]bool),
		log:    zerolog.Nop(),
		events: make(chan Event, 64),
	}
	for _, opt := range opts {
		opt(w)
	}

	for _, p := range append(append([]string{}, w.include...), w.exclude...) {
		if !doublestar.ValidatePattern(p) {
			return nil, fmt.Errorf("padrão inválido '%s'", p)
		}
	}

	for _, p := range paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			return nil, fmt.Errorf("caminho inválido '%s': %w", p, err)
		}
		info, err := os.Stat(abs)
		if err != nil {
			return nil, fmt.Errorf("caminho inválido '%s': %w", p, err)
		}
		if info.IsDir() {
			w.dirs = append(w.dirs, abs)
		} else {
			w.files[abs] = true
		}
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("falha ao iniciar fsnotify: %w", err)
	}
	w.fs = fsw
	return w, nil
}

// Events é o canal consumido pelo Coordinator. Fecha quando Run termina.
func (w *Watcher) Events() <-chan Event {
	return w.events
}

// Run registra as observações, emite add para cada arquivo existente e segue
// traduzindo notificações até o contexto terminar.
func (w *Watcher) Run(ctx context.Context) error {
	defer close(w.events)
	defer w.fs.Close()

	for file := range w.files {
		if err := w.fs.Add(filepath.Dir(file)); err != nil {
			return fmt.Errorf("falha ao observar '%s': %w", file, err)
		}
		if !w.emit(ctx, Event{Kind: EventAdd, Path: file}) {
			return ctx.Err()
		}
	}
	for _, dir := range w.dirs {
		if err := w.addTree(ctx, dir); err != nil {
			return err
		}
	}
	w.log.Info().Strs("dirs", w.dirs).Int("files", len(w.files)).Msg("observando arquivos de definição")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case err, ok := <-w.fs.Errors:
			if !ok {
				return nil
			}
			w.log.Error().Err(err).Msg("erro do fsnotify")

		case ev, ok := <-w.fs.Events:
			if !ok {
				return nil
			}
			if !w.handle(ctx, ev) {
				return ctx.Err()
			}
		}
	}
}

// Scan lista, em ordem, os arquivos que casam com os filtros agora, sem
// registrar observações. Caminhos que deixaram de existir são ignorados.
func (w *Watcher) Scan() ([]string, error) {
	var files []string
	for file := range w.files {
		if _, err := os.Stat(file); err == nil && w.match(file) {
			files = append(files, file)
		}
	}
	for _, dir := range w.dirs {
		err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				if errors.Is(err, fs.ErrNotExist) {
					return nil
				}
				return err
			}
			if !d.IsDir() && w.match(path) {
				files = append(files, path)
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("falha ao varrer '%s': %w", dir, err)
		}
	}
	sort.Strings(files)
	return files, nil
}

func (w *Watcher) handle(ctx context.Context, ev fsnotify.Event) bool {
	path := filepath.Clean(ev.Name)

	switch {
	case ev.Has(fsnotify.Create):
		if info, err := os.Stat(path); err == nil && info.IsDir() {
			if w.underDir(path) {
				if err := w.addTree(ctx, path); err != nil && ctx.Err() == nil {
					w.log.Error().Err(err).Str("dir", path).Msg("falha ao observar novo diretório")
				}
			}
			return ctx.Err() == nil
		}
		if w.match(path) {
			return w.emit(ctx, Event{Kind: EventAdd, Path: path})
		}

	case ev.Has(fsnotify.Write):
		if w.match(path) {
			return w.emit(ctx, Event{Kind: EventChange, Path: path})
		}

	case ev.Has(fsnotify.Remove), ev.Has(fsnotify.Rename):
		if w.match(path) {
			return w.emit(ctx, Event{Kind: EventUnlink, Path: path})
		}
	}
	// Chmod e arquivos fora do filtro não geram evento
	return true
}

// addTree observa dir e seus subdiretórios e emite add para os arquivos.
func (w *Watcher) addTree(ctx context.Context, dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if err := w.fs.Add(path); err != nil {
				return fmt.Errorf("falha ao observar '%s': %w", path, err)
			}
			return nil
		}
		if w.match(path) && !w.emit(ctx, Event{Kind: EventAdd, Path: path}) {
			return ctx.Err()
		}
		return nil
	})
}

func (w *Watcher) emit(ctx context.Context, ev Event) bool {
	select {
	case w.events <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}

// match decide se o arquivo gera eventos.
func (w *Watcher) match(path string) bool {
	if w.files[path] {
		return w.accept == nil || w.accept(path)
	}
	rel, ok := w.relative(path)
	if !ok {
		return false
	}
	if len(w.include) > 0 && !matchAny(w.include, rel) {
		return false
	}
	if matchAny(w.exclude, rel) {
		return false
	}
	return w.accept == nil || w.accept(path)
}

func (w *Watcher) underDir(path string) bool {
	_, ok := w.relative(path)
	return ok
}

func (w *Watcher) relative(path string) (string, bool) {
	for _, dir := range w.dirs {
		rel, err := filepath.Rel(dir, path)
		if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			continue
		}
		return filepath.ToSlash(rel), true
	}
	return "", false
}

func matchAny(patterns []string, rel string) bool {
	for _, p := range patterns {
		if ok, _ := doublestar.Match(p, rel); ok {
			return true
		}
	}
	return false
}
