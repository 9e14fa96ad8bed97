package rules

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompiledRule_Execute(t *testing.T) {
	rm, err := NewRuleManager()
	require.NoError(t, err)

	// json.Unmarshal decodifica números como float64
	vars := map[string]interface{}{
		"body": map[string]interface{}{
			"valor":  100.0,
			"status": "vip",
		},
	}

	tests := []struct {
		name          string
		rule          Rule
		expectApplied bool
		expectValue   interface{}
		expectError   bool
	}{
		{
			name:          "Condicao verdadeira com calculo",
			rule:          Rule{Name: "desconto", Condition: "body.valor >= 100.0", Value: "body.valor * 0.1"},
			expectApplied: true,
			expectValue:   10.0,
		},
		{
			name:          "Condicao falsa usa else",
			rule:          Rule{Name: "status", Condition: "body.status == 'normal'", Value: "'padrao'", ElseValue: "'premium'"},
			expectApplied: true,
			expectValue:   "premium",
		},
		{
			name:          "Condicao falsa sem else",
			rule:          Rule{Name: "nada", Condition: "body.valor > 1000.0", Value: "'x'"},
			expectApplied: false,
		},
		{
			name:          "Sem condicao",
			rule:          Rule{Name: "sempre", Value: "body.status"},
			expectApplied: true,
			expectValue:   "vip",
		},
		{
			name:        "Erro em tempo de execucao",
			rule:        Rule{Name: "quebra", Value: "body.inexistente + 1.0"},
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cr, err := rm.CompileRule(tt.rule)
			require.NoError(t, err)

			res, err := cr.Execute(vars)
			if tt.expectError {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expectApplied, res.Applied)
			assert.Equal(t, tt.expectValue, res.Value)
		})
	}
}

func TestCompileRule_Invalid(t *testing.T) {
	rm, err := NewRuleManager()
	require.NoError(t, err)

	_, err = rm.CompileRule(Rule{Name: "ruim", Condition: "body.a ==", Value: "1"})
	assert.ErrorContains(t, err, "regra 'ruim'")
}
