package handlers

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/raywall/hotmock/pkg/rules"
)

var (
	// Uma string que é inteira uma expressão preserva o tipo do resultado.
	wholeExpr = regexp.MustCompile(`^\$\{(.+)\}$`)
	innerExpr = regexp.MustCompile(`\$\{([^}]+)\}`)
)

// template é um valor JSON com expressões ${...} compiladas.
type template interface {
	render(vars map[string]interface{}) (interface{}, error)
}

type literal struct{ value interface{} }

func (l literal) render(map[string]interface{}) (interface{}, error) { return l.value, nil }

type exprNode struct{ prg *rules.Program }

func (e exprNode) render(vars map[string]interface{}) (interface{}, error) {
	return e.prg.Eval(vars)
}

type interpolated struct {
	parts []template
}

func (i interpolated) render(vars map[string]interface{}) (interface{}, error) {
	var sb strings.Builder
	for _, p := range i.parts {
		v, err := p.render(vars)
		if err != nil {
			return nil, err
		}
		if v != nil {
			sb.WriteString(fmt.Sprint(v))
		}
	}
	return sb.String(), nil
}

type objectNode struct {
	keys   []string
	fields map[string]template
}

func (o objectNode) render(vars map[string]interface{}) (interface{}, error) {
	out := make(map[string]interface{}, len(o.fields))
	for _, k := range o.keys {
		v, err := o.fields[k].render(vars)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", k, err)
		}
		out[k] = v
	}
	return out, nil
}

type listNode []template

func (l listNode) render(vars map[string]interface{}) (interface{}, error) {
	out := make([]interface{}, len(l))
	for i, item := range l {
		v, err := item.render(vars)
		if err != nil {
			return nil, fmt.Errorf("[%d]: %w", i, err)
		}
		out[i] = v
	}
	return out, nil
}

// compileTemplate percorre o valor e compila cada expressão uma única vez.
func compileTemplate(rm *rules.RuleManager, value interface{}) (template, error) {
	switch v := sanitizeMap(value).(type) {
	case string:
		return compileString(rm, v)
	case map[string]interface{}:
		node := objectNode{fields: make(map[string]template, len(v))}
		for k, item := range v {
			t, err := compileTemplate(rm, item)
			if err != nil {
				return nil, err
			}
			node.keys = append(node.keys, k)
			node.fields[k] = t
		}
		sort.Strings(node.keys)
		return node, nil
	case []interface{}:
		node := make(listNode, len(v))
		for i, item := range v {
			t, err := compileTemplate(rm, item)
			if err != nil {
				return nil, err
			}
			node[i] = t
		}
		return node, nil
	default:
		return literal{value: v}, nil
	}
}

func compileString(rm *rules.RuleManager, s string) (template, error) {
	if !strings.Contains(s, "${") {
		return literal{value: s}, nil
	}
	if rm == nil {
		return nil, fmt.Errorf("expressão '%s' sem motor CEL configurado", s)
	}

	if m := wholeExpr.FindStringSubmatch(s); m != nil && !strings.Contains(m[1], "${") {
		prg, err := rm.Compile(m[1])
		if err != nil {
			return nil, err
		}
		return exprNode{prg: prg}, nil
	}

	var node interpolated
	last := 0
	for _, loc := range innerExpr.FindAllStringSubmatchIndex(s, -1) {
		if loc[0] > last {
			node.parts = append(node.parts, literal{value: s[last:loc[0]]})
		}
		prg, err := rm.Compile(s[loc[2]:loc[3]])
		if err != nil {
			return nil, err
		}
		node.parts = append(node.parts, exprNode{prg: prg})
		last = loc[1]
	}
	if last < len(s) {
		node.parts = append(node.parts, literal{value: s[last:]})
	}
	return node, nil
}
