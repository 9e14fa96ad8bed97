package dispatch

import (
	"context"
	"fmt"
	"net/http"
	"sync"
)

// timeoutWriter serializa o acesso ao ResponseWriter entre o handler e o
// prazo da requisição. Depois do 504 toda escrita do handler falha.
//
// O handler escreve num mapa de headers próprio; ele só é copiado para o
// writer real, sob o lock, quando a resposta começa antes do prazo.
type timeoutWriter struct {
	w http.ResponseWriter
	h http.Header

	mu          sync.Mutex
	wroteHeader bool
	timedOut    bool
}

func newTimeoutWriter(w http.ResponseWriter) *timeoutWriter {
	return &timeoutWriter{w: w, h: make(http.Header)}
}

func (tw *timeoutWriter) Header() http.Header {
	return tw.h
}

func (tw *timeoutWriter) Write(p []byte) (int, error) {
	tw.mu.Lock()
	defer tw.mu.Unlock()
	if tw.timedOut {
		return 0, http.ErrHandlerTimeout
	}
	if !tw.wroteHeader {
		tw.writeHeaderLocked(http.StatusOK)
	}
	return tw.w.Write(p)
}

func (tw *timeoutWriter) WriteHeader(code int) {
	tw.mu.Lock()
	defer tw.mu.Unlock()
	if tw.timedOut || tw.wroteHeader {
		return
	}
	tw.writeHeaderLocked(code)
}

func (tw *timeoutWriter) writeHeaderLocked(code int) {
	dst := tw.w.Header()
	for k, v := range tw.h {
		dst[k] = append([]string(nil), v...)
	}
	tw.wroteHeader = true
	tw.w.WriteHeader(code)
}

// finish copia os headers de um handler que terminou sem escrever nada.
func (tw *timeoutWriter) finish() {
	tw.mu.Lock()
	defer tw.mu.Unlock()
	if tw.timedOut || tw.wroteHeader {
		return
	}
	dst := tw.w.Header()
	for k, v := range tw.h {
		dst[k] = append([]string(nil), v...)
	}
}

// expire responde 504 se o handler ainda não começou a resposta.
func (tw *timeoutWriter) expire() bool {
	tw.mu.Lock()
	defer tw.mu.Unlock()
	if tw.wroteHeader {
		return false
	}
	tw.timedOut = true
	writeJSON(tw.w, http.StatusGatewayTimeout, map[string]string{"error": "handler excedeu o prazo"})
	return true
}

// serveWithDeadline executa fn sob o prazo de ctx. Se o prazo vencer depois
// que o handler já começou a escrever, aguarda o término para não escrever
// no ResponseWriter após o retorno.
func serveWithDeadline(ctx context.Context, w http.ResponseWriter, fn func(w http.ResponseWriter)) (timedOut bool) {
	tw := newTimeoutWriter(w)
	done := make(chan struct{})
	panicChan := make(chan interface{}, 1)

	go func() {
		defer func() {
			if p := recover(); p != nil {
				panicChan <- p
			}
		}()
		fn(tw)
		close(done)
	}()

	select {
	case p := <-panicChan:
		panic(fmt.Sprintf("handler de mock: %v", p))
	case <-done:
		tw.finish()
		return false
	case <-ctx.Done():
		if tw.expire() {
			return true
		}
		select {
		case p := <-panicChan:
			panic(fmt.Sprintf("handler de mock: %v", p))
		case <-done:
		}
		return false
	}
}
