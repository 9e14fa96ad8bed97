package schemamock

import (
	"math"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// maxDepth limita schemas recursivos ($ref cíclico).
const maxDepth = 12

// Synthesize gera um valor de exemplo a partir de um schema compilado.
// Prioridade: const, default, examples, enum; depois o tipo declarado.
func Synthesize(s *jsonschema.Schema) interface{} {
	return synth(s, 0)
}

func synth(s *jsonschema.Schema, depth int) interface{} {
	if s == nil || depth > maxDepth {
		return nil
	}

	if s.Ref != nil {
		return synth(s.Ref, depth+1)
	}
	if len(s.Constant) > 0 {
		return s.Constant[0]
	}
	if s.Default != nil {
		return s.Default
	}
	if len(s.Examples) > 0 {
		return s.Examples[0]
	}
	if len(s.Enum) > 0 {
		return s.Enum[0]
	}

	if len(s.AllOf) > 0 {
		var out interface{}
		for _, sub := range s.AllOf {
			out = mergeObjects(out, synth(sub, depth+1))
		}
		// propriedades locais somam-se às do allOf
		if len(s.Properties) > 0 {
			out = mergeObjects(out, synthObject(s, depth))
		}
		return out
	}
	if len(s.OneOf) > 0 {
		return synth(s.OneOf[0], depth+1)
	}
	if len(s.AnyOf) > 0 {
		return synth(s.AnyOf[0], depth+1)
	}

	switch schemaType(s) {
	case "object":
		return synthObject(s, depth)
	case "array":
		return synthArray(s, depth)
	case "string":
		return synthString(s)
	case "integer":
		return synthInteger(s)
	case "number":
		return synthNumber(s)
	case "boolean":
		return true
	default:
		return nil
	}
}

// schemaType escolhe o primeiro tipo não nulo; sem "type" o tipo é inferido
// pelas palavras-chave presentes.
func schemaType(s *jsonschema.Schema) string {
	for _, t := range s.Types {
		if t != "null" {
			return t
		}
	}
	if len(s.Types) > 0 {
		return "null"
	}
	switch {
	case len(s.Properties) > 0:
		return "object"
	case s.Items != nil || s.Items2020 != nil || len(s.PrefixItems) > 0:
		return "array"
	}
	return ""
}

func synthObject(s *jsonschema.Schema, depth int) interface{} {
	out := make(map[string]interface{}, len(s.Properties))
	for name, prop := range s.Properties {
		out[name] = synth(prop, depth+1)
	}
	return out
}

func synthArray(s *jsonschema.Schema, depth int) interface{} {
	out := []interface{}{}

	for _, p := range s.PrefixItems {
		out = append(out, synth(p, depth+1))
	}
	switch items := s.Items.(type) {
	case []*jsonschema.Schema:
		for _, p := range items {
			out = append(out, synth(p, depth+1))
		}
	case *jsonschema.Schema:
		out = appendItems(out, items, s.MinItems, depth)
	}
	if s.Items2020 != nil {
		out = appendItems(out, s.Items2020, s.MinItems, depth)
	}
	return out
}

// appendItems gera ao menos um item, ou minItems quando maior.
func appendItems(out []interface{}, item *jsonschema.Schema, minItems, depth int) []interface{} {
	n := 1
	if minItems > n {
		n = minItems
	}
	for len(out) < n {
		out = append(out, synth(item, depth+1))
	}
	return out
}

func synthString(s *jsonschema.Schema) interface{} {
	var v string
	switch s.Format {
	case "date-time":
		v = "2024-01-01T00:00:00Z"
	case "date":
		v = "2024-01-01"
	case "time":
		v = "00:00:00Z"
	case "email":
		v = "user@example.com"
	case "uri", "url":
		v = "https://example.com"
	case "uuid":
		v = "00000000-0000-0000-0000-000000000000"
	case "ipv4":
		v = "127.0.0.1"
	case "ipv6":
		v = "::1"
	case "hostname":
		v = "example.com"
	default:
		v = "string"
	}
	if s.MinLength > len(v) {
		v += strings.Repeat("x", s.MinLength-len(v))
	}
	if s.MaxLength >= 0 && len(v) > s.MaxLength {
		v = v[:s.MaxLength]
	}
	return v
}

func synthInteger(s *jsonschema.Schema) interface{} {
	switch {
	case s.Minimum != nil:
		f, _ := s.Minimum.Float64()
		return int64(math.Ceil(f))
	case s.ExclusiveMinimum != nil:
		f, _ := s.ExclusiveMinimum.Float64()
		return int64(math.Floor(f)) + 1
	case s.Maximum != nil:
		if f, _ := s.Maximum.Float64(); f < 0 {
			return int64(math.Floor(f))
		}
	}
	return int64(0)
}

func synthNumber(s *jsonschema.Schema) interface{} {
	switch {
	case s.Minimum != nil:
		f, _ := s.Minimum.Float64()
		return f
	case s.ExclusiveMinimum != nil:
		f, _ := s.ExclusiveMinimum.Float64()
		return f + 1
	case s.Maximum != nil:
		if f, _ := s.Maximum.Float64(); f < 0 {
			return f
		}
	}
	return float64(0)
}

func mergeObjects(a, b interface{}) interface{} {
	am, aok := a.(map[string]interface{})
	bm, bok := b.(map[string]interface{})
	if !aok || !bok {
		if b != nil {
			return b
		}
		return a
	}
	out := make(map[string]interface{}, len(am)+len(bm))
	for k, v := range am {
		out[k] = v
	}
	for k, v := range bm {
		out[k] = v
	}
	return out
}
