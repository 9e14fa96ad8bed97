package handlers

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/raywall/hotmock/pkg/routing"
	"github.com/raywall/hotmock/pkg/schemamock"
)

type schemaOptions struct {
	Common
	Host     string      `json:"host" validate:"omitempty,url"`
	ID       string      `json:"id" validate:"required"`
	Token    string      `json:"token"`
	Override interface{} `json:"override"`
}

type schemaHandler struct {
	resp       *responder
	descriptor schemamock.Descriptor
	override   template
	reg        *Registry
}

// buildSchema responde com um exemplo gerado do schema remoto da interface,
// mesclado com override (que aceita expressões ${...}).
func (r *Registry) buildSchema(options map[string]interface{}) (routing.Handler, error) {
	if r.deps.Schema == nil {
		return nil, errors.New("kind schema exige o cliente schemamock")
	}
	var opts schemaOptions
	if err := r.decodeOptions(options, &opts); err != nil {
		return nil, err
	}

	d := schemamock.Descriptor{Host: opts.Host, ID: opts.ID, Token: opts.Token}
	if d.Host == "" {
		d.Host = r.deps.SchemaHost
	}
	if d.Token == "" {
		d.Token = r.deps.SchemaToken
	}
	if d.Host == "" {
		return nil, errors.New("schema sem host do serviço de documentação")
	}

	override, err := compileTemplate(r.deps.Rules, opts.Override)
	if err != nil {
		return nil, fmt.Errorf("override: %w", err)
	}
	resp, err := newResponder(opts.Common)
	if err != nil {
		return nil, err
	}
	return &schemaHandler{resp: resp, descriptor: d, override: override, reg: r}, nil
}

func (s *schemaHandler) ServeMock(w http.ResponseWriter, r *http.Request, _ http.Handler) {
	log := requestLogger(s.reg.deps.Log, r, KindSchema).With().Str("interface_id", s.descriptor.ID).Logger()
	if err := s.resp.wait(r.Context()); err != nil {
		return
	}

	override, err := s.override.render(requestVars(r))
	if err != nil {
		log.Error().Err(err).Msg("falha ao renderizar override")
		sendError(w, http.StatusInternalServerError, err)
		return
	}

	body, err := s.reg.deps.Schema.FetchSchemaMock(r.Context(), s.descriptor, override)
	if err != nil {
		log.Error().Err(err).Msg("falha ao gerar mock do schema")
		sendError(w, upstreamStatus(err), err)
		return
	}
	s.resp.write(w, s.resp.statusOr(http.StatusOK), body)
}
