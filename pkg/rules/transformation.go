package rules

import "fmt"

// Rule é uma transformação condicional: quando Condition é verdadeira o
// resultado é Value; senão ElseValue, se houver.
type Rule struct {
	Name      string `json:"name"`
	Condition string `json:"condition"`
	Value     string `json:"value" validate:"required"`
	ElseValue string `json:"else_value"`
}

// TransformationResult contém o resultado de uma operação de transformação.
type TransformationResult struct {
	Applied bool
	Name    string
	Value   interface{}
}

// CompiledRule guarda os programas de uma Rule.
type CompiledRule struct {
	name      string
	condition *Program
	value     *Program
	elseValue *Program
}

// CompileRule compila todas as expressões da regra; falha na primeira inválida.
func (rm *RuleManager) CompileRule(rule Rule) (*CompiledRule, error) {
	cr := &CompiledRule{name: rule.Name}
	var err error

	if rule.Condition != "" {
		if cr.condition, err = rm.Compile(rule.Condition); err != nil {
			return nil, fmt.Errorf("regra '%s': %w", rule.Name, err)
		}
	}
	if cr.value, err = rm.Compile(rule.Value); err != nil {
		return nil, fmt.Errorf("regra '%s': %w", rule.Name, err)
	}
	if rule.ElseValue != "" {
		if cr.elseValue, err = rm.Compile(rule.ElseValue); err != nil {
			return nil, fmt.Errorf("regra '%s': %w", rule.Name, err)
		}
	}
	return cr, nil
}

// Execute verifica a condição e, se atendida, calcula o valor. Se não,
// usa o ElseValue.
func (cr *CompiledRule) Execute(vars map[string]interface{}) (*TransformationResult, error) {
	conditionMet := true
	if cr.condition != nil {
		ok, err := cr.condition.EvalBool(vars)
		if err != nil {
			return nil, fmt.Errorf("falha ao avaliar condição da regra '%s': %w", cr.name, err)
		}
		conditionMet = ok
	}

	prg := cr.value
	if !conditionMet {
		if cr.elseValue == nil {
			return &TransformationResult{Applied: false, Name: cr.name}, nil
		}
		prg = cr.elseValue
	}

	val, err := prg.Eval(vars)
	if err != nil {
		return nil, fmt.Errorf("falha ao calcular valor da regra '%s': %w", cr.name, err)
	}
	return &TransformationResult{Applied: true, Name: cr.name, Value: val}, nil
}
