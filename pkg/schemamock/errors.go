package schemamock

import "errors"

var (
	// ErrSchemaUnavailable indica que a interface não declara o corpo como JSON Schema.
	ErrSchemaUnavailable = errors.New("schemamock: resposta da interface não é um JSON Schema")
	// ErrTransport indica falha de rede ou status inesperado do serviço remoto.
	ErrTransport = errors.New("schemamock: falha de transporte")
	// ErrParse indica JSON ou schema inválido.
	ErrParse = errors.New("schemamock: falha de parse")
)
