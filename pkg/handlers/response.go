package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/ohler55/ojg/jp"
	"github.com/raywall/hotmock/pkg/dispatch"
	"github.com/raywall/hotmock/pkg/rules"
	"github.com/rs/zerolog"
)

// Common são as opções aceitas por todos os kinds.
type Common struct {
	Status  int               `json:"status" validate:"omitempty,gte=100,lte=599"`
	Headers map[string]string `json:"headers"`
	Delay   string            `json:"delay"`
	Select  string            `json:"select"` // JSONPath aplicado ao corpo
}

type responder struct {
	status   int
	headers  map[string]string
	delay    time.Duration
	selector jp.Expr
}

func newResponder(c Common) (*responder, error) {
	rs := &responder{status: c.Status, headers: c.Headers}
	if c.Delay != "" {
		d, err := time.ParseDuration(c.Delay)
		if err != nil {
			return nil, fmt.Errorf("delay inválido '%s': %w", c.Delay, err)
		}
		rs.delay = d
	}
	if c.Select != "" {
		x, err := jp.ParseString(c.Select)
		if err != nil {
			return nil, fmt.Errorf("select inválido '%s': %w", c.Select, err)
		}
		rs.selector = x
	}
	return rs, nil
}

// wait aplica o delay configurado respeitando o prazo da requisição.
func (rs *responder) wait(ctx context.Context) error {
	if rs.delay <= 0 {
		return nil
	}
	timer := time.NewTimer(rs.delay)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// statusOr devolve o status configurado ou fallback.
func (rs *responder) statusOr(fallback int) int {
	if rs.status != 0 {
		return rs.status
	}
	return fallback
}

func (rs *responder) write(w http.ResponseWriter, status int, body interface{}) {
	for k, v := range rs.headers {
		w.Header().Set(k, v)
	}
	sendResponse(w, status, rs.pick(body))
}

// pick aplica o select: um único resultado vira o próprio valor.
func (rs *responder) pick(body interface{}) interface{} {
	if rs.selector == nil || body == nil {
		return body
	}
	results := rs.selector.Get(body)
	switch len(results) {
	case 0:
		return nil
	case 1:
		return results[0]
	default:
		return results
	}
}

func sendResponse(w http.ResponseWriter, status int, body interface{}) {
	if w.Header().Get("Content-Type") == "" {
		w.Header().Set("Content-Type", "application/json")
	}
	w.WriteHeader(status)
	if body != nil {
		_ = json.NewEncoder(w).Encode(body)
	}
}

func sendError(w http.ResponseWriter, status int, err error) {
	sendResponse(w, status, map[string]string{"error": err.Error()})
}

// requestVars monta as variáveis expostas às expressões.
func requestVars(r *http.Request) map[string]interface{} {
	params := make(map[string]interface{})
	for k, v := range mux.Vars(r) {
		params[k] = v
	}

	query := make(map[string]interface{})
	for k, v := range r.URL.Query() {
		if len(v) > 0 {
			query[k] = v[0]
		}
	}

	header := make(map[string]interface{})
	for k, v := range r.Header {
		if len(v) > 0 {
			header[strings.ToLower(k)] = v[0]
		}
	}

	body := dispatch.BodyFrom(r).Value
	if raw, ok := body.([]byte); ok {
		body = string(raw)
	}

	return map[string]interface{}{
		rules.VarParams: params,
		rules.VarQuery:  query,
		rules.VarBody:   body,
		rules.VarHeader: header,
		rules.VarEnv:    envVars(),
		rules.VarMethod: r.Method,
		rules.VarPath:   r.URL.Path,
		rules.VarVars:   map[string]interface{}{},
	}
}

func envVars() map[string]interface{} {
	env := make(map[string]interface{})
	for _, e := range os.Environ() {
		pair := strings.SplitN(e, "=", 2)
		if len(pair) == 2 {
			env[pair[0]] = pair[1]
		}
	}
	return env
}

func requestLogger(log zerolog.Logger, r *http.Request, kind string) zerolog.Logger {
	return log.With().Str("kind", kind).Str("method", r.Method).Str("path", r.URL.Path).Logger()
}
