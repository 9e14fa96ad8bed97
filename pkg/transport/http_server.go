package transport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/raywall/hotmock/pkg/dispatch"
	"github.com/raywall/hotmock/pkg/metrics"
	"github.com/raywall/hotmock/pkg/reload"
	"github.com/raywall/hotmock/pkg/routing"
	"github.com/rs/zerolog"
)

const (
	HeaderCorrelationID = "x-correlation-id"
	HeaderLatency       = "x-latency-ms"

	// AdminPrefix agrupa as rotas de diagnóstico, nunca interceptadas por mocks.
	AdminPrefix = "/__hotmock"
)

// Options reúne as dependências do servidor HTTP.
type Options struct {
	Table       *routing.Table
	Dispatcher  *dispatch.Dispatcher
	Coordinator *reload.Coordinator
	Recorder    *metrics.Recorder
	Log         zerolog.Logger
}

// Server é o host dos mocks: um roteador gorilla/mux com o despachante como
// middleware e como fallback para caminhos sem rota.
type Server struct {
	router *mux.Router
	opts   Options
	log    zerolog.Logger
}

// NewServer monta o roteador com as rotas administrativas.
func NewServer(opts Options) *Server {
	s := &Server{
		router: mux.NewRouter(),
		opts:   opts,
		log:    opts.Log.With().Str("component", "http").Logger(),
	}

	obs := ObservabilityMiddleware(s.log, opts.Recorder)
	s.router.Use(obs)
	s.router.Use(s.mockable)

	admin := s.router.PathPrefix(AdminPrefix).Subrouter()
	admin.HandleFunc("/health", s.health).Methods(http.MethodGet)
	admin.HandleFunc("/routes", s.routes).Methods(http.MethodGet)
	admin.HandleFunc("/match", s.match).Methods(http.MethodGet)
	admin.HandleFunc("/reload", s.reload).Methods(http.MethodPost)

	// mux não aplica middlewares ao NotFoundHandler nem ao 405: um mock
	// "POST /x" precisa responder mesmo com o host registrando só "GET /x"
	s.router.NotFoundHandler = obs(s.mockable(http.HandlerFunc(notFound)))
	s.router.MethodNotAllowedHandler = obs(s.mockable(http.HandlerFunc(methodNotAllowed)))
	return s
}

// Router expõe o roteador para que o host registre suas próprias rotas.
// Rotas do host também passam pelo despachante.
func (s *Server) Router() *mux.Router {
	return s.router
}

// Handler devolve o http.Handler final.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start escuta em addr até o contexto terminar e então encerra com graça.
func (s *Server) Start(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info().Msgf("Servidor HTTP ouvindo em %s", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	s.log.Info().Msg("encerrando servidor HTTP")
	return srv.Shutdown(shutdownCtx)
}

// mockable aplica o despachante às rotas do host, exceto às administrativas.
func (s *Server) mockable(next http.Handler) http.Handler {
	mocked := s.opts.Dispatcher.Middleware(next)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, AdminPrefix+"/") {
			next.ServeHTTP(w, r)
			return
		}
		mocked.ServeHTTP(w, r)
	})
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	body := map[string]interface{}{
		"status": "ok",
		"routes": s.opts.Table.Len(),
		"files":  len(s.opts.Table.Owners()),
	}
	if s.opts.Coordinator != nil {
		body["reload_state"] = s.opts.Coordinator.State().String()
	}
	writeJSON(w, http.StatusOK, body)
}

func (s *Server) routes(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.opts.Table.Snapshot())
}

// match mostra qual entrada responderia a ?method=&path=.
func (s *Server) match(w http.ResponseWriter, r *http.Request) {
	method := r.URL.Query().Get("method")
	if method == "" {
		method = http.MethodGet
	}
	path := r.URL.Query().Get("path")
	if !strings.HasPrefix(path, "/") {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "path deve começar com '/'"})
		return
	}

	m, err := s.opts.Dispatcher.Resolve(method, path)
	if err != nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"key":    m.Key.String(),
		"kind":   m.Entry.Kind(),
		"owner":  m.Owner,
		"exact":  m.Exact,
		"params": m.Params,
	})
}

func (s *Server) reload(w http.ResponseWriter, _ *http.Request) {
	if s.opts.Coordinator == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "recarga indisponível"})
		return
	}
	s.opts.Coordinator.Reload()
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "reload agendado"})
}

func methodNotAllowed(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusMethodNotAllowed, map[string]string{
		"error": fmt.Sprintf("método não permitido: %s", routing.RequestLine(r.Method, r.URL.Path)),
	})
}

func notFound(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusNotFound, map[string]string{
		"error": fmt.Sprintf("nenhuma rota para %s", routing.RequestLine(r.Method, r.URL.Path)),
	})
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// --- MIDDLEWARE DE OBSERVABILIDADE ---
type responseWriterWrapper struct {
	http.ResponseWriter
	statusCode  int
	startTime   time.Time
	wroteHeader bool
}

func (rw *responseWriterWrapper) WriteHeader(code int) {
	if rw.wroteHeader {
		return
	}
	rw.statusCode = code
	duration := time.Since(rw.startTime)
	rw.Header().Set(HeaderLatency, fmt.Sprintf("%d", duration.Milliseconds()))
	rw.ResponseWriter.WriteHeader(code)
	rw.wroteHeader = true
}

func (rw *responseWriterWrapper) Write(b []byte) (int, error) {
	if !rw.wroteHeader {
		rw.WriteHeader(http.StatusOK)
	}
	return rw.ResponseWriter.Write(b)
}

// ObservabilityMiddleware propaga o correlation id, mede a latência e registra
// o acesso. O logger da requisição fica disponível via zerolog.Ctx.
func ObservabilityMiddleware(base zerolog.Logger, rec *metrics.Recorder) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			corrID := r.Header.Get(HeaderCorrelationID)
			if corrID == "" {
				corrID = uuid.NewString()
			}
			w.Header().Set(HeaderCorrelationID, corrID)

			logger := base.With().Str("correlation_id", corrID).Logger()
			ctx := logger.WithContext(r.Context())

			wrapper := &responseWriterWrapper{
				ResponseWriter: w,
				statusCode:     http.StatusOK,
				startTime:      start,
			}

			next.ServeHTTP(wrapper, r.WithContext(ctx))

			latency := time.Since(start)
			rec.Latency(latency, r.Method, wrapper.statusCode)
			logger.Info().
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", wrapper.statusCode).
				Int64("latency_ms", latency.Milliseconds()).
				Msg("request completed")
		})
	}
}
