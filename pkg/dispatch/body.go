package dispatch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

// Strategy identifica como o corpo da requisição foi interpretado.
type Strategy string

const (
	StrategyRaw       Strategy = "raw"
	StrategyText      Strategy = "text"
	StrategyForm      Strategy = "form"
	StrategyMultipart Strategy = "multipart"
	StrategyJSON      Strategy = "json"
	// StrategyOpaque: media type sem parser; o corpo fica só em Raw.
	StrategyOpaque Strategy = "opaque"
)

// StrategyFor escolhe a estratégia pelo content-type. Parâmetros do media
// type (charset, boundary) são ignorados. Só JSON (ou content-type ausente)
// é decodificado como JSON; outros tipos ficam opacos.
func StrategyFor(contentType string) Strategy {
	media := strings.ToLower(strings.TrimSpace(strings.SplitN(contentType, ";", 2)[0]))

	switch {
	case media == "text/plain":
		return StrategyRaw
	case media == "text/html":
		return StrategyText
	case media == "application/x-www-form-urlencoded":
		return StrategyForm
	case strings.HasPrefix(media, "multipart/form-data"):
		return StrategyMultipart
	case media == "", media == "application/json", strings.HasSuffix(media, "+json"):
		return StrategyJSON
	default:
		return StrategyOpaque
	}
}

// Body é o corpo já interpretado, disponível para os handlers.
//
// Value depende da estratégia: []byte (raw), string (text),
// map[string]interface{} (form e multipart), o JSON decodificado ou nil (opaque).
type Body struct {
	Strategy Strategy
	Raw      []byte
	Value    interface{}
}

type ctxKey int

const (
	bodyKey ctxKey = iota
	matchKey
)

// WithBody anexa o corpo interpretado ao contexto.
func WithBody(ctx context.Context, body Body) context.Context {
	return context.WithValue(ctx, bodyKey, body)
}

// BodyFrom devolve o corpo interpretado pelo despachante.
func BodyFrom(r *http.Request) Body {
	body, _ := r.Context().Value(bodyKey).(Body)
	return body
}

// readBody lê o corpo inteiro e o devolve à requisição para que handlers e
// o passthrough possam relê-lo.
func readBody(r *http.Request) ([]byte, error) {
	if r.Body == nil || r.Body == http.NoBody {
		return nil, nil
	}
	raw, err := io.ReadAll(r.Body)
	r.Body.Close()
	if err != nil {
		return nil, err
	}
	r.Body = io.NopCloser(bytes.NewReader(raw))
	return raw, nil
}

func decodeBody(strategy Strategy, raw []byte) (interface{}, error) {
	switch strategy {
	case StrategyRaw:
		return raw, nil

	case StrategyText:
		return string(raw), nil

	case StrategyForm:
		values, err := url.ParseQuery(string(raw))
		if err != nil {
			return nil, fmt.Errorf("form malformado: %w", err)
		}
		return flattenValues(values), nil

	case StrategyOpaque:
		return nil, nil

	default:
		if len(bytes.TrimSpace(raw)) == 0 {
			return nil, nil
		}
		var data interface{}
		if err := json.Unmarshal(raw, &data); err != nil {
			return nil, fmt.Errorf("JSON malformado: %w", err)
		}
		return data, nil
	}
}

// flattenValues mantém chaves de valor único como string; repetidas viram lista.
func flattenValues(values map[string][]string) map[string]interface{} {
	out := make(map[string]interface{}, len(values))
	for k, v := range values {
		if len(v) == 1 {
			out[k] = v[0]
			continue
		}
		list := make([]interface{}, len(v))
		for i, item := range v {
			list[i] = item
		}
		out[k] = list
	}
	return out
}
