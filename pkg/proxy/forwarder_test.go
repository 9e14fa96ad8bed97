package proxy

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestForward_Success(t *testing.T) {
	mockServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "trace-123", r.Header.Get("X-Custom-Trace"))
		assert.Equal(t, "hotmock", r.Header.Get("X-Forwarded-By"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.Empty(t, r.Header.Get("Connection"), "hop-by-hop não deve ser encaminhado")

		body, _ := io.ReadAll(r.Body)
		assert.Equal(t, `{"user":"teste"}`, string(body))

		w.Header().Set("X-Server-Id", "server-01")
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"status":"created"}`))
	}))
	defer mockServer.Close()

	headers := http.Header{}
	headers.Set("X-Custom-Trace", "trace-123")
	headers.Set("Connection", "keep-alive")

	resp, err := NewForwarder(mockServer.Client()).Forward(context.Background(), "post", mockServer.URL, []byte(`{"user":"teste"}`), headers)
	require.NoError(t, err)

	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, "server-01", resp.Headers.Get("X-Server-Id"))
	assert.Equal(t, `{"status":"created"}`, string(resp.Body))
}

func TestForward_Timeout(t *testing.T) {
	mockServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-time.After(time.Second):
		case <-r.Context().Done():
		}
	}))
	defer mockServer.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	_, err := NewForwarder(nil).Forward(ctx, http.MethodGet, mockServer.URL, nil, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "falha na conexão com target")
}

func TestForward_InvalidURL(t *testing.T) {
	_, err := NewForwarder(nil).Forward(context.Background(), http.MethodGet, "://sem-esquema", nil, nil)
	assert.ErrorContains(t, err, "erro ao criar forward request")
}
