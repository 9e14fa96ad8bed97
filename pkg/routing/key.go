package routing

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidKey é retornado quando a chave não segue o formato "METODO /caminho".
var ErrInvalidKey = errors.New("routing: chave de rota inválida")

// AnyMethod casa com qualquer método HTTP.
const AnyMethod = "*"

// Key representa a chave de uma rota mockada, ex: "GET /users/:id".
type Key struct {
	Method string
	Path   string
}

// ParseKey normaliza e valida uma chave de rota.
// O método é convertido para maiúsculas e "ALL" é tratado como AnyMethod.
func ParseKey(raw string) (Key, error) {
	fields := strings.Fields(raw)
	if len(fields) != 2 {
		return Key{}, fmt.Errorf("%w: '%s'", ErrInvalidKey, raw)
	}

	method := strings.ToUpper(fields[0])
	if method == "ALL" {
		method = AnyMethod
	}
	path := fields[1]
	if !strings.HasPrefix(path, "/") {
		return Key{}, fmt.Errorf("%w: caminho deve começar com '/' em '%s'", ErrInvalidKey, raw)
	}

	return Key{Method: method, Path: path}, nil
}

// String devolve a forma canônica usada como chave da tabela.
func (k Key) String() string {
	return k.Method + " " + k.Path
}

// IsPattern indica se a chave possui segmentos parametrizados ou curingas.
// Chaves exatas são comparadas diretamente, sem compilação.
func (k Key) IsPattern() bool {
	return k.Method == AnyMethod || strings.ContainsAny(k.Path, ":*")
}

// RequestLine monta a linha usada no casamento: "METODO /caminho".
func RequestLine(method, path string) string {
	return strings.ToUpper(method) + " " + path
}
