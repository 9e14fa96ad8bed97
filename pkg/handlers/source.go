package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/raywall/hotmock/pkg/routing"
	"github.com/raywall/hotmock/pkg/sources"
)

type sourceOptions struct {
	Common
	Source map[string]interface{} `json:"source" validate:"required"`
}

type sourceHandler struct {
	resp *responder
	spec template
	reg  *Registry
}

// buildSource responde com o conteúdo de uma fonte externa (REST, Redis, SQL,
// S3, DynamoDB, SSM, Secrets Manager). Strings da fonte aceitam ${...}, por
// exemplo key_map: {id: "${params.id}"}.
func (r *Registry) buildSource(options map[string]interface{}) (routing.Handler, error) {
	if r.deps.Sources == nil {
		return nil, errors.New("kind source exige o resolvedor de fontes")
	}
	var opts sourceOptions
	if err := r.decodeOptions(options, &opts); err != nil {
		return nil, err
	}

	spec, err := compileTemplate(r.deps.Rules, opts.Source)
	if err != nil {
		return nil, fmt.Errorf("source: %w", err)
	}
	// sem expressões a Spec já pode ser validada no carregamento
	if isStatic(spec) {
		if _, err := r.sourceSpec(opts.Source); err != nil {
			return nil, err
		}
	}

	resp, err := newResponder(opts.Common)
	if err != nil {
		return nil, err
	}
	return &sourceHandler{resp: resp, spec: spec, reg: r}, nil
}

func (s *sourceHandler) ServeMock(w http.ResponseWriter, r *http.Request, _ http.Handler) {
	log := requestLogger(s.reg.deps.Log, r, KindSource)
	if err := s.resp.wait(r.Context()); err != nil {
		return
	}

	rendered, err := s.spec.render(requestVars(r))
	if err != nil {
		log.Error().Err(err).Msg("falha ao renderizar a fonte")
		sendError(w, http.StatusInternalServerError, err)
		return
	}
	spec, err := s.reg.sourceSpec(rendered)
	if err != nil {
		sendError(w, http.StatusInternalServerError, err)
		return
	}

	out, err := s.reg.deps.Sources.Resolve(r.Context(), spec)
	if err != nil {
		log.Error().Err(err).Str("source", spec.Type).Msg("falha ao consultar fonte")
		sendError(w, http.StatusBadGateway, err)
		return
	}
	if out == nil {
		sendError(w, http.StatusNotFound, errors.New("Not found"))
		return
	}
	s.resp.write(w, s.resp.statusOr(http.StatusOK), out)
}

func (r *Registry) sourceSpec(raw interface{}) (sources.Spec, error) {
	var spec sources.Spec
	data, err := json.Marshal(raw)
	if err != nil {
		return spec, fmt.Errorf("source inválido: %w", err)
	}
	if err := json.Unmarshal(data, &spec); err != nil {
		return spec, fmt.Errorf("source inválido: %w", err)
	}
	if err := r.validate.Struct(spec); err != nil {
		return spec, fmt.Errorf("source inválido: %w", err)
	}
	return spec, nil
}

func isStatic(t template) bool {
	switch n := t.(type) {
	case literal:
		return true
	case objectNode:
		for _, f := range n.fields {
			if !isStatic(f) {
				return false
			}
		}
		return true
	case listNode:
		for _, item := range n {
			if !isStatic(item) {
				return false
			}
		}
		return true
	default:
		return false
	}
}
