package routing

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Captura ":nome", ":nome*" e "*" dentro do caminho.
var tokenRegex = regexp.MustCompile(`:(\w+)(\*)?|\*`)

// Params são os valores extraídos dos segmentos parametrizados.
type Params map[string]string

// Pattern é uma chave compilada em expressão regular sobre a linha da requisição.
type Pattern struct {
	key           Key
	re            *regexp.Regexp
	names         []string
	literalPrefix int
}

// Compile traduz a chave em uma expressão ancorada.
//
//   - ":id" casa com um único segmento ([^/]+)
//   - ":rest*" casa com o restante do caminho, atravessando segmentos
//   - "*" é um curinga anônimo, exposto como "0", "1", ...
//
// Trechos literais são escapados, então um curinga nunca consome um literal
// que venha depois dele na chave.
func Compile(key Key) (*Pattern, error) {
	var (
		expr    strings.Builder
		names   []string
		seen    = make(map[string]bool)
		last    int
		anon    int
		literal = -1
	)

	expr.WriteString("^")
	if key.Method == AnyMethod {
		expr.WriteString(`[A-Z]+`)
	} else {
		expr.WriteString(regexp.QuoteMeta(key.Method))
	}
	expr.WriteString(" ")

	for _, loc := range tokenRegex.FindAllStringSubmatchIndex(key.Path, -1) {
		if literal < 0 {
			literal = loc[0]
		}
		expr.WriteString(regexp.QuoteMeta(key.Path[last:loc[0]]))
		last = loc[1]

		token := key.Path[loc[0]:loc[1]]
		if token == "*" {
			names = append(names, strconv.Itoa(anon))
			anon++
			expr.WriteString(`(.*)`)
			continue
		}

		name := key.Path[loc[2]:loc[3]]
		if seen[name] {
			return nil, fmt.Errorf("%w: parâmetro '%s' repetido em '%s'", ErrInvalidKey, name, key)
		}
		seen[name] = true
		names = append(names, name)

		if loc[4] >= 0 {
			expr.WriteString(`(.*)`)
		} else {
			expr.WriteString(`([^/]+)`)
		}
	}
	expr.WriteString(regexp.QuoteMeta(key.Path[last:]))
	expr.WriteString("$")

	if literal < 0 {
		literal = len(key.Path)
	}

	re, err := regexp.Compile(expr.String())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidKey, err)
	}

	return &Pattern{key: key, re: re, names: names, literalPrefix: literal}, nil
}

// Match testa a requisição e devolve os parâmetros ligados.
func (p *Pattern) Match(method, path string) (Params, bool) {
	groups := p.re.FindStringSubmatch(RequestLine(method, path))
	if groups == nil {
		return nil, false
	}

	params := make(Params, len(p.names))
	for i, name := range p.names {
		params[name] = groups[i+1]
	}
	return params, true
}

// Key devolve a chave de origem.
func (p *Pattern) Key() Key { return p.key }

// LiteralPrefix é o tamanho do trecho literal antes do primeiro parâmetro.
func (p *Pattern) LiteralPrefix() int { return p.literalPrefix }
