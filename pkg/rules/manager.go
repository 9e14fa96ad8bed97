package rules

import (
	"fmt"
	"reflect"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/checker/decls"
	"github.com/google/cel-go/common/types/ref"
	"google.golang.org/protobuf/types/known/structpb"
)

// Variáveis disponíveis para as expressões de um mock.
const (
	VarParams = "params" // Parâmetros do padrão de rota
	VarQuery  = "query"  // Query string
	VarBody   = "body"   // Corpo já interpretado
	VarHeader = "header" // Headers (primeiro valor)
	VarEnv    = "env"    // Variáveis de ambiente
	VarMethod = "method"
	VarPath   = "path"
	VarVars   = "vars" // Dados resolvidos de fontes
)

// RuleManager gerencia a compilação e avaliação de expressões CEL.
type RuleManager struct {
	env *cel.Env
}

// NewRuleManager inicializa o ambiente CEL com as variáveis padrão esperadas.
func NewRuleManager() (*RuleManager, error) {
	env, err := cel.NewEnv(
		cel.StdLib(),
		cel.Declarations(
			decls.NewVar(VarParams, decls.Dyn),
			decls.NewVar(VarQuery, decls.Dyn),
			decls.NewVar(VarBody, decls.Dyn),
			decls.NewVar(VarHeader, decls.Dyn),
			decls.NewVar(VarEnv, decls.Dyn),
			decls.NewVar(VarMethod, decls.String),
			decls.NewVar(VarPath, decls.String),
			decls.NewVar(VarVars, decls.Dyn),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("erro fatal CEL init: %w", err)
	}

	return &RuleManager{env: env}, nil
}

// Program é uma expressão já compilada, pronta para avaliar por requisição.
type Program struct {
	expr string
	prg  cel.Program
}

// Compile compila a expressão uma única vez.
func (rm *RuleManager) Compile(expr string) (*Program, error) {
	prg, err := rm.CompileProgram(expr)
	if err != nil {
		return nil, err
	}
	return &Program{expr: expr, prg: prg}, nil
}

// CompileProgram expõe a compilação do CEL.
func (rm *RuleManager) CompileProgram(expr string) (cel.Program, error) {
	ast, issues := rm.env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("erro compilação CEL '%s': %w", expr, issues.Err())
	}
	prg, err := rm.env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("erro ao gerar programa CEL: %w", err)
	}
	return prg, nil
}

// String devolve a expressão original.
func (p *Program) String() string { return p.expr }

// Eval avalia e converte o resultado para tipos Go serializáveis em JSON.
func (p *Program) Eval(vars map[string]interface{}) (interface{}, error) {
	out, _, err := p.prg.Eval(vars)
	if err != nil {
		return nil, fmt.Errorf("erro execução CEL: %w", err)
	}
	return ToNative(out)
}

// EvalBool avalia expressões de condição.
func (p *Program) EvalBool(vars map[string]interface{}) (bool, error) {
	out, _, err := p.prg.Eval(vars)
	if err != nil {
		return false, fmt.Errorf("erro execução CEL: %w", err)
	}
	if val, ok := out.Value().(bool); ok {
		return val, nil
	}
	return false, fmt.Errorf("resultado de '%s' não é booleano", p.expr)
}

// EvaluateBool processa regras de validação (deve retornar true/false).
func (rm *RuleManager) EvaluateBool(expression string, vars map[string]interface{}) (bool, error) {
	if expression == "" {
		return true, nil // Expressão vazia = aprova
	}
	p, err := rm.Compile(expression)
	if err != nil {
		return false, err
	}
	return p.EvalBool(vars)
}

// EvaluateValue processa regras de transformação (retorna um valor dinâmico).
func (rm *RuleManager) EvaluateValue(expression string, vars map[string]interface{}) (interface{}, error) {
	if expression == "" {
		return nil, nil
	}
	p, err := rm.Compile(expression)
	if err != nil {
		return nil, err
	}
	return p.Eval(vars)
}

var structValueType = reflect.TypeOf(&structpb.Value{})

// ToNative converte um valor CEL (mapas e listas inclusive) em
// map[string]interface{}, []interface{} ou escalares.
func ToNative(val ref.Val) (interface{}, error) {
	native, err := val.ConvertToNative(structValueType)
	if err != nil {
		return nil, fmt.Errorf("resultado CEL não serializável: %w", err)
	}
	return native.(*structpb.Value).AsInterface(), nil
}
