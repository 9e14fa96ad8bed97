package proxy

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Doer é o subconjunto de *http.Client usado pelo Forwarder.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Response representa a resposta do serviço downstream.
type Response struct {
	StatusCode int
	Headers    http.Header
	Body       []byte
}

// Headers que não atravessam o proxy. Accept-Encoding é removido para que a
// resposta chegue sem compressão e possa ser interpretada.
var skippedHeaders = map[string]bool{
	"Connection":          true,
	"Keep-Alive":          true,
	"Proxy-Authenticate":  true,
	"Proxy-Authorization": true,
	"Te":                  true,
	"Trailer":             true,
	"Transfer-Encoding":   true,
	"Upgrade":             true,
	"Host":                true,
	"Content-Length":      true,
	"Accept-Encoding":     true,
}

// Forwarder encaminha requisições para o serviço de destino.
type Forwarder struct {
	client Doer
}

// NewForwarder cria um Forwarder. client nil usa um *http.Client com timeout de 30s.
func NewForwarder(client Doer) *Forwarder {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &Forwarder{client: client}
}

// Forward envia method/headers/body para url e devolve a resposta completa.
func (f *Forwarder) Forward(ctx context.Context, method, url string, body []byte, headers http.Header) (*Response, error) {
	var reader io.Reader
	if len(body) > 0 {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, strings.ToUpper(method), url, reader)
	if err != nil {
		return nil, fmt.Errorf("erro ao criar forward request: %w", err)
	}

	for k, values := range headers {
		if skippedHeaders[http.CanonicalHeaderKey(k)] {
			continue
		}
		for _, v := range values {
			req.Header.Add(k, v)
		}
	}
	if req.Header.Get("Content-Type") == "" && len(body) > 0 {
		req.Header.Set("Content-Type", "application/json")
	}
	// Identifica que a chamada veio do servidor de mocks
	req.Header.Set("X-Forwarded-By", "hotmock")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("falha na conexão com target (%s): %w", url, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("erro ao ler resposta do target: %w", err)
	}

	return &Response{
		StatusCode: resp.StatusCode,
		Headers:    resp.Header,
		Body:       respBody,
	}, nil
}
