package handlers

import (
	"fmt"
	"net/http"

	"github.com/raywall/hotmock/pkg/routing"
	"github.com/raywall/hotmock/pkg/rules"
)

type caseOptions struct {
	When   string      `json:"when" validate:"required"`
	Status int         `json:"status" validate:"omitempty,gte=100,lte=599"`
	Body   interface{} `json:"body"`
}

type expressionOptions struct {
	Common
	Body  interface{}   `json:"body"`
	Vars  []rules.Rule  `json:"vars" validate:"dive"`
	Cases []caseOptions `json:"cases" validate:"dive"`
}

type compiledCase struct {
	when   *rules.Program
	status int
	body   template
}

type expression struct {
	resp    *responder
	body    template
	headers map[string]template
	derived []*rules.CompiledRule
	cases   []compiledCase
	reg     *Registry
}

// buildExpression monta respostas a partir de templates com expressões CEL.
// O primeiro case cuja condição for verdadeira responde; sem case, vale body.
func (r *Registry) buildExpression(options map[string]interface{}) (routing.Handler, error) {
	if r.deps.Rules == nil {
		return nil, fmt.Errorf("kind expression exige o motor de regras")
	}
	var opts expressionOptions
	if err := r.decodeOptions(options, &opts); err != nil {
		return nil, err
	}

	// headers também aceitam ${...}; são renderizados por requisição
	headers := make(map[string]template, len(opts.Headers))
	for name, raw := range opts.Headers {
		t, err := compileString(r.deps.Rules, raw)
		if err != nil {
			return nil, fmt.Errorf("header '%s': %w", name, err)
		}
		headers[name] = t
	}
	opts.Headers = nil

	resp, err := newResponder(opts.Common)
	if err != nil {
		return nil, err
	}
	body, err := compileTemplate(r.deps.Rules, opts.Body)
	if err != nil {
		return nil, fmt.Errorf("body: %w", err)
	}

	h := &expression{resp: resp, body: body, headers: headers, reg: r}
	for i, rule := range opts.Vars {
		if rule.Name == "" {
			return nil, fmt.Errorf("vars[%d]: nome obrigatório", i)
		}
		cr, err := r.deps.Rules.CompileRule(rule)
		if err != nil {
			return nil, fmt.Errorf("vars[%d]: %w", i, err)
		}
		h.derived = append(h.derived, cr)
	}
	for i, c := range opts.Cases {
		when, err := r.deps.Rules.Compile(c.When)
		if err != nil {
			return nil, fmt.Errorf("cases[%d]: %w", i, err)
		}
		cb, err := compileTemplate(r.deps.Rules, c.Body)
		if err != nil {
			return nil, fmt.Errorf("cases[%d].body: %w", i, err)
		}
		h.cases = append(h.cases, compiledCase{when: when, status: c.Status, body: cb})
	}
	return h, nil
}

func (e *expression) ServeMock(w http.ResponseWriter, r *http.Request, _ http.Handler) {
	log := requestLogger(e.reg.deps.Log, r, KindExpression)
	if err := e.resp.wait(r.Context()); err != nil {
		return
	}

	vars := requestVars(r)
	if err := e.derive(vars); err != nil {
		log.Error().Err(err).Msg("falha ao calcular vars")
		sendError(w, http.StatusInternalServerError, err)
		return
	}
	status := e.resp.statusOr(http.StatusOK)
	tpl := e.body

	for _, c := range e.cases {
		ok, err := c.when.EvalBool(vars)
		if err != nil {
			log.Warn().Err(err).Str("when", c.when.String()).Msg("condição ignorada")
			continue
		}
		if ok {
			tpl = c.body
			if c.status != 0 {
				status = c.status
			}
			break
		}
	}

	body, err := tpl.render(vars)
	if err != nil {
		log.Error().Err(err).Msg("falha ao renderizar resposta")
		sendError(w, http.StatusInternalServerError, err)
		return
	}
	for name, t := range e.headers {
		v, err := t.render(vars)
		if err != nil {
			log.Error().Err(err).Str("header", name).Msg("falha ao renderizar header")
			sendError(w, http.StatusInternalServerError, err)
			return
		}
		w.Header().Set(name, fmt.Sprint(v))
	}
	e.resp.write(w, status, body)
}

// derive calcula as vars em ordem; cada regra enxerga as anteriores.
func (e *expression) derive(vars map[string]interface{}) error {
	if len(e.derived) == 0 {
		return nil
	}
	out, _ := vars[rules.VarVars].(map[string]interface{})
	if out == nil {
		out = make(map[string]interface{})
		vars[rules.VarVars] = out
	}
	for _, cr := range e.derived {
		res, err := cr.Execute(vars)
		if err != nil {
			return err
		}
		if res.Applied {
			out[res.Name] = res.Value
		}
	}
	return nil
}
