package handlers

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"
	"github.com/raywall/hotmock/pkg/routing"
	"github.com/raywall/hotmock/pkg/sources"
)

// ParamMapping liga um parâmetro da requisição a um campo dos registros.
type ParamMapping struct {
	Name   string `json:"name" validate:"required"`
	MapsTo string `json:"maps_to" validate:"required"`
}

// Response é uma resposta fixa do emulador.
type Response struct {
	Status int         `json:"status" validate:"omitempty,gte=100,lte=599"`
	Body   interface{} `json:"body,omitempty"`
}

type emulatorOptions struct {
	Common
	Data              []interface{}  `json:"data"`
	Source            *sources.Spec  `json:"source"`
	PathParams        []ParamMapping `json:"path_params" validate:"dive"`
	QueryParams       []ParamMapping `json:"query_params" validate:"dive"`
	ResponseOnMatch   *Response      `json:"response_on_match"`
	ResponseOnNoMatch *Response      `json:"response_on_no_match"`
}

type emulator struct {
	opts     emulatorOptions
	resp     *responder
	resolver *sources.Resolver
	reg      *Registry
}

// buildEmulator filtra um conjunto de registros pelos parâmetros da requisição.
// Os registros vêm de data ou de uma fonte externa (source).
func (r *Registry) buildEmulator(options map[string]interface{}) (routing.Handler, error) {
	var opts emulatorOptions
	if err := r.decodeOptions(options, &opts); err != nil {
		return nil, err
	}
	if opts.Source != nil {
		if r.deps.Sources == nil {
			return nil, fmt.Errorf("emulator com source exige um resolvedor de fontes")
		}
		if err := r.validate.Struct(opts.Source); err != nil {
			return nil, fmt.Errorf("source inválido: %w", err)
		}
	}

	resp, err := newResponder(opts.Common)
	if err != nil {
		return nil, err
	}
	return &emulator{opts: opts, resp: resp, resolver: r.deps.Sources, reg: r}, nil
}

func (e *emulator) ServeMock(w http.ResponseWriter, r *http.Request, _ http.Handler) {
	log := requestLogger(e.reg.deps.Log, r, KindEmulator)
	if err := e.resp.wait(r.Context()); err != nil {
		return
	}

	data, err := e.dataset(r)
	if err != nil {
		log.Error().Err(err).Msg("falha ao carregar registros do emulador")
		sendError(w, http.StatusBadGateway, err)
		return
	}

	params := make(map[string]string)
	vars := mux.Vars(r)
	for _, p := range e.opts.PathParams {
		if value, ok := vars[p.Name]; ok {
			params[p.MapsTo] = value
		}
	}
	query := r.URL.Query()
	for _, p := range e.opts.QueryParams {
		if value := query.Get(p.Name); value != "" {
			params[p.MapsTo] = value
		}
	}

	var matches []interface{}
	for _, item := range data {
		itemMap, ok := item.(map[string]interface{})
		if !ok {
			continue
		}
		match := true
		for field, value := range params {
			itemValue, exists := itemMap[field]
			if !exists || !valuesMatch(itemValue, value) {
				match = false
				break
			}
		}
		if match {
			matches = append(matches, item)
		}
	}

	if len(matches) == 0 {
		nm := e.opts.ResponseOnNoMatch
		if nm == nil {
			nm = &Response{Status: http.StatusNotFound, Body: map[string]string{"error": "Not found"}}
		}
		e.resp.write(w, statusOf(nm, http.StatusNotFound), nm.Body)
		return
	}

	status := e.resp.statusOr(http.StatusOK)
	if e.opts.ResponseOnMatch != nil {
		status = statusOf(e.opts.ResponseOnMatch, status)
	}

	var body interface{}
	if len(matches) == 1 {
		body = matches[0]
	} else {
		body = matches
	}
	e.resp.write(w, status, body)
}

func (e *emulator) dataset(r *http.Request) ([]interface{}, error) {
	if e.opts.Source == nil {
		return e.opts.Data, nil
	}
	out, err := e.resolver.Resolve(r.Context(), *e.opts.Source)
	if err != nil {
		return nil, err
	}
	switch v := out.(type) {
	case []interface{}:
		return v, nil
	case []map[string]interface{}:
		items := make([]interface{}, len(v))
		for i, m := range v {
			items[i] = m
		}
		return items, nil
	case nil:
		return nil, nil
	default:
		return []interface{}{v}, nil
	}
}

func statusOf(resp *Response, fallback int) int {
	if resp.Status == 0 {
		return fallback
	}
	return resp.Status
}

// valuesMatch compara o valor do registro com o texto vindo da requisição.
func valuesMatch(a interface{}, b string) bool {
	switch v := a.(type) {
	case string:
		return v == b
	case float64:
		f, err := strconv.ParseFloat(b, 64)
		return err == nil && v == f
	case int:
		i, err := strconv.Atoi(b)
		return err == nil && v == i
	case int64:
		i, err := strconv.ParseInt(b, 10, 64)
		return err == nil && v == i
	case bool:
		return strings.ToLower(b) == fmt.Sprintf("%v", v)
	default:
		return false
	}
}
