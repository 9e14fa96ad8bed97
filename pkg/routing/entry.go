package routing

import "net/http"

// Handler recebe o controle total da resposta. next devolve a requisição
// para o restante da cadeia de middlewares (passthrough).
type Handler interface {
	ServeMock(w http.ResponseWriter, r *http.Request, next http.Handler)
}

// HandlerFunc adapta uma função comum para Handler.
type HandlerFunc func(w http.ResponseWriter, r *http.Request, next http.Handler)

func (f HandlerFunc) ServeMock(w http.ResponseWriter, r *http.Request, next http.Handler) {
	f(w, r, next)
}

// Kinds fixos de Entry.
const (
	KindStatic = "static"
	KindFunc   = "func"
)

// Entry é a resposta configurada para uma rota: um valor estático serializável
// em JSON ou um Handler. Nunca os dois.
type Entry struct {
	value   interface{}
	handler Handler
	kind    string
}

// Static cria uma Entry com valor fixo.
func Static(value interface{}) Entry {
	return Entry{value: value, kind: KindStatic}
}

// Dynamic cria uma Entry com Handler. kind é apenas descritivo (métricas,
// listagem de rotas); vazio vira KindFunc.
func Dynamic(h Handler, kind string) Entry {
	if kind == "" {
		kind = KindFunc
	}
	return Entry{handler: h, kind: kind}
}

// IsHandler indica se a Entry é dinâmica.
func (e Entry) IsHandler() bool { return e.handler != nil }

// Handler devolve o handler (nil para entradas estáticas).
func (e Entry) Handler() Handler { return e.handler }

// Value devolve o valor estático.
func (e Entry) Value() interface{} { return e.value }

// Kind devolve o rótulo do tipo da entrada.
func (e Entry) Kind() string { return e.kind }

// Route associa uma chave crua a uma Entry.
type Route struct {
	Key   string
	Entry Entry
}

// Mapping é o conjunto ordenado de rotas produzido por um arquivo de definição.
// A ordem é a ordem de inserção na tabela.
type Mapping []Route
