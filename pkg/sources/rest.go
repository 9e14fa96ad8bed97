package sources

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// HTTPClient permite mockar o cliente HTTP nos testes.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// StatusError é devolvido quando a API remota responde com status >= 400.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("http error %d: %s", e.StatusCode, e.Body)
}

func callRest(ctx context.Context, client HTTPClient, method, url string, headers map[string]string, body interface{}) (interface{}, error) {
	var bodyReader io.Reader
	if body != nil {
		if strBody, ok := body.(string); ok {
			bodyReader = strings.NewReader(strBody)
		} else {
			jsonBody, err := json.Marshal(body)
			if err != nil {
				return nil, fmt.Errorf("erro ao codificar body: %w", err)
			}
			bodyReader = bytes.NewBuffer(jsonBody)
		}
	}

	if method == "" {
		method = http.MethodGet
	}
	req, err := http.NewRequestWithContext(ctx, strings.ToUpper(method), url, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("erro ao criar request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "hotmock/1.0")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("erro na chamada REST: %w", err)
	}
	defer resp.Body.Close()

	respBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("erro lendo resposta: %w", err)
	}

	if resp.StatusCode >= 400 {
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: string(respBytes)}
	}

	if len(respBytes) == 0 {
		return nil, nil
	}

	// UseNumber mantém inteiros como inteiros na resposta do mock
	var result interface{}
	decoder := json.NewDecoder(bytes.NewReader(respBytes))
	decoder.UseNumber()
	if err := decoder.Decode(&result); err == nil {
		return result, nil
	}

	return string(respBytes), nil
}
