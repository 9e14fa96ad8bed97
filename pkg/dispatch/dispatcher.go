// Package dispatch resolve requisições contra a tabela de rotas e entrega a
// resposta do mock (valor estático ou handler) ou repassa ao próximo handler.
package dispatch

import (
	"context"
	"errors"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"time"

	"github.com/gorilla/mux"
	"github.com/raywall/hotmock/pkg/metrics"
	"github.com/raywall/hotmock/pkg/routing"
	"github.com/rs/zerolog"
)

// Defaults
const (
	DefaultTimeout    = 30 * time.Second
	DefaultUploadsDir = "./public"
)

// Dispatcher é o middleware de mocks.
type Dispatcher struct {
	table        *routing.Table
	log          zerolog.Logger
	timeout      time.Duration
	uploadsDir   string
	maxBodyBytes int64
	onError      ErrorHandler
	recorder     *metrics.Recorder
}

// Option configura o Dispatcher.
type Option func(*Dispatcher)

func WithLogger(log zerolog.Logger) Option {
	return func(d *Dispatcher) { d.log = log.With().Str("component", "dispatch").Logger() }
}

// WithTimeout define o prazo por handler. Zero desativa o prazo.
func WithTimeout(timeout time.Duration) Option {
	return func(d *Dispatcher) { d.timeout = timeout }
}

func WithUploadsDir(dir string) Option {
	return func(d *Dispatcher) { d.uploadsDir = dir }
}

// WithMaxBodyBytes limita o corpo lido. Zero não limita.
func WithMaxBodyBytes(n int64) Option {
	return func(d *Dispatcher) { d.maxBodyBytes = n }
}

func WithErrorHandler(h ErrorHandler) Option {
	return func(d *Dispatcher) {
		if h != nil {
			d.onError = h
		}
	}
}

func WithRecorder(rec *metrics.Recorder) Option {
	return func(d *Dispatcher) { d.recorder = rec }
}

// New cria o Dispatcher sobre a tabela compartilhada com o coordenador de recarga.
func New(table *routing.Table, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		table:      table,
		log:        zerolog.Nop(),
		timeout:    DefaultTimeout,
		uploadsDir: DefaultUploadsDir,
		onError:    DefaultErrorHandler,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Middleware adapta o Dispatcher para mux.MiddlewareFunc.
func (d *Dispatcher) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		d.dispatch(w, r, next)
	})
}

func (d *Dispatcher) dispatch(w http.ResponseWriter, r *http.Request, next http.Handler) {
	requestLine := routing.RequestLine(r.Method, r.URL.Path)

	match, ok := d.table.Lookup(r.Method, r.URL.Path)
	if !ok {
		d.log.Debug().Str("request", requestLine).Msg("sem mock, seguindo a cadeia")
		next.ServeHTTP(w, r)
		return
	}

	log := d.log.With().Str("request", requestLine).Str("key", match.Key.String()).Logger()
	strategy := StrategyFor(r.Header.Get("Content-Type"))

	if d.maxBodyBytes > 0 && r.Body != nil {
		r.Body = http.MaxBytesReader(w, r.Body, d.maxBodyBytes)
	}

	var body Body
	if strategy == StrategyMultipart {
		if d.serveUpload(w, r) {
			log.Debug().Msg("arquivo servido do diretório de uploads")
			d.recorder.Dispatch("upload", http.StatusOK)
			return
		}
		var err error
		if body, err = d.parseMultipart(r); err != nil {
			log.Warn().Err(err).Msg("corpo multipart inválido")
			d.onError(w, r, err)
			return
		}
	} else {
		raw, err := readBody(r)
		if err != nil {
			log.Warn().Err(err).Msg("falha ao ler corpo")
			d.onError(w, r, err)
			return
		}
		value, err := decodeBody(strategy, raw)
		if err != nil {
			log.Warn().Err(err).Str("strategy", string(strategy)).Msg("corpo malformado")
			d.onError(w, r, err)
			return
		}
		body = Body{Strategy: strategy, Raw: raw, Value: value}
	}

	ctx := WithBody(r.Context(), body)
	ctx = context.WithValue(ctx, matchKey, match)
	r = r.WithContext(ctx)

	if !match.Entry.IsHandler() {
		log.Debug().Msg("respondendo valor estático")
		writeJSON(w, http.StatusOK, match.Entry.Value())
		d.recorder.Dispatch(routing.KindStatic, http.StatusOK)
		return
	}

	if !match.Exact {
		r = d.mergeParams(r, match.Params, log)
	}

	d.serveHandler(w, r, next, match, log)
}

func (d *Dispatcher) serveHandler(w http.ResponseWriter, r *http.Request, next http.Handler, match routing.Match, log zerolog.Logger) {
	handler := match.Entry.Handler()
	sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}

	if d.timeout <= 0 {
		handler.ServeMock(sw, r, next)
		d.recorder.Dispatch(match.Entry.Kind(), sw.status)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), d.timeout)
	defer cancel()
	r = r.WithContext(ctx)

	timedOut := serveWithDeadline(ctx, sw, func(w http.ResponseWriter) {
		handler.ServeMock(w, r, next)
	})
	if timedOut {
		log.Error().Dur("timeout", d.timeout).Msg("handler excedeu o prazo")
		sw.status = http.StatusGatewayTimeout
	}
	d.recorder.Dispatch(match.Entry.Kind(), sw.status)
}

// mergeParams mescla os parâmetros do padrão nas variáveis de rota do host.
// Valores do padrão sobrescrevem os do host; cada sobrescrita divergente é logada.
func (d *Dispatcher) mergeParams(r *http.Request, params routing.Params, log zerolog.Logger) *http.Request {
	if len(params) == 0 {
		return r
	}

	host := mux.Vars(r)
	merged := make(map[string]string, len(host)+len(params))
	for k, v := range host {
		merged[k] = v
	}
	for k, v := range params {
		if prev, ok := merged[k]; ok && prev != v {
			log.Warn().Str("param", k).Str("host_value", prev).Str("pattern_value", v).
				Msg("parâmetro do padrão sobrescreveu o valor do roteador")
		}
		merged[k] = v
	}
	return mux.SetURLVars(r, merged)
}

// serveUpload serve o arquivo do diretório de uploads correspondente ao caminho.
func (d *Dispatcher) serveUpload(w http.ResponseWriter, r *http.Request) bool {
	if d.uploadsDir == "" {
		return false
	}
	full := filepath.Join(d.uploadsDir, filepath.FromSlash(path.Clean("/"+r.URL.Path)))
	info, err := os.Stat(full)
	if err != nil || info.IsDir() {
		return false
	}
	http.ServeFile(w, r, full)
	return true
}

func (d *Dispatcher) parseMultipart(r *http.Request) (Body, error) {
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		return Body{}, err
	}

	value := flattenValues(r.MultipartForm.Value)
	for field, headers := range r.MultipartForm.File {
		names := make([]interface{}, len(headers))
		for i, fh := range headers {
			names[i] = map[string]interface{}{"filename": fh.Filename, "size": fh.Size}
		}
		if len(names) == 1 {
			value[field] = names[0]
		} else {
			value[field] = names
		}
	}
	return Body{Strategy: StrategyMultipart, Value: value}, nil
}

// MatchFrom devolve a rota resolvida para a requisição.
func MatchFrom(r *http.Request) (routing.Match, bool) {
	m, ok := r.Context().Value(matchKey).(routing.Match)
	return m, ok
}

// statusWriter guarda o status escrito para métricas.
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (sw *statusWriter) WriteHeader(code int) {
	sw.status = code
	sw.ResponseWriter.WriteHeader(code)
}

// ErrNoMatch é devolvido por Resolve quando nenhuma rota casa.
var ErrNoMatch = errors.New("nenhum mock para a requisição")

// Resolve expõe a consulta usada pelo middleware (listagens e diagnósticos).
func (d *Dispatcher) Resolve(method, p string) (routing.Match, error) {
	m, ok := d.table.Lookup(method, p)
	if !ok {
		return routing.Match{}, ErrNoMatch
	}
	return m, nil
}
