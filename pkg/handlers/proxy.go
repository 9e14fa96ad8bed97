package handlers

import (
	"errors"
	"net/http"

	"github.com/raywall/hotmock/pkg/dispatch"
	"github.com/raywall/hotmock/pkg/routing"
	"github.com/raywall/hotmock/pkg/schemamock"
)

type proxyOptions struct {
	Common
	Host        string `json:"host" validate:"omitempty,url"`
	ProjectID   int    `json:"project_id" validate:"gte=0"`
	PathRewrite string `json:"path_rewrite"`
}

type proxyHandler struct {
	resp   *responder
	target schemamock.ProxyTarget
	reg    *Registry
}

// buildProxy encaminha a requisição para o mock avançado do projeto remoto.
// Campos omitidos herdam o alvo padrão da configuração do servidor.
func (r *Registry) buildProxy(options map[string]interface{}) (routing.Handler, error) {
	if r.deps.Schema == nil {
		return nil, errors.New("kind proxy exige o cliente schemamock")
	}
	var opts proxyOptions
	if err := r.decodeOptions(options, &opts); err != nil {
		return nil, err
	}

	target := r.deps.Proxy
	if opts.Host != "" {
		target.Host = opts.Host
	}
	if opts.ProjectID != 0 {
		target.ProjectID = opts.ProjectID
	}
	if opts.PathRewrite != "" {
		target.PathRewrite = opts.PathRewrite
	}
	if target.Host == "" {
		return nil, errors.New("proxy sem host de destino")
	}
	// valida a regex de reescrita já no carregamento
	if _, err := schemamock.RewritePath("/", target); err != nil {
		return nil, err
	}

	resp, err := newResponder(opts.Common)
	if err != nil {
		return nil, err
	}
	return &proxyHandler{resp: resp, target: target, reg: r}, nil
}

func (p *proxyHandler) ServeMock(w http.ResponseWriter, r *http.Request, _ http.Handler) {
	log := requestLogger(p.reg.deps.Log, r, KindProxy)
	if err := p.resp.wait(r.Context()); err != nil {
		return
	}

	body := dispatch.BodyFrom(r).Value
	if raw, ok := body.([]byte); ok {
		body = string(raw)
	}

	out, err := p.reg.deps.Schema.Forward(r.Context(), schemamock.ForwardRequest{
		Method: r.Method,
		Path:   r.URL.Path,
		Header: r.Header,
		Query:  r.URL.Query(),
		Body:   body,
	}, p.target)
	if err != nil {
		log.Error().Err(err).Msg("falha no encaminhamento")
		sendError(w, upstreamStatus(err), err)
		return
	}

	p.resp.write(w, p.resp.statusOr(out.StatusCode), out.Body)
}

// upstreamStatus traduz falhas do serviço remoto em status de resposta.
func upstreamStatus(err error) int {
	switch {
	case errors.Is(err, schemamock.ErrTransport),
		errors.Is(err, schemamock.ErrParse),
		errors.Is(err, schemamock.ErrSchemaUnavailable):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
