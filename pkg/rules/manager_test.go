package rules

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEvaluateBool(t *testing.T) {
	rm, err := NewRuleManager()
	require.NoError(t, err)

	data := map[string]interface{}{
		"body":   map[string]interface{}{"age": 20, "type": "admin"},
		"method": "POST",
	}

	ok, err := rm.EvaluateBool("body.age >= 18 && body.type == 'admin' && method == 'POST'", data)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = rm.EvaluateBool("body.age < 10", data)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = rm.EvaluateBool("", data)
	require.NoError(t, err)
	assert.True(t, ok, "expressão vazia aprova")

	_, err = rm.EvaluateBool("body.age", data)
	assert.Error(t, err, "resultado não booleano")
}

func TestEvaluateValue(t *testing.T) {
	rm, err := NewRuleManager()
	require.NoError(t, err)

	data := map[string]interface{}{
		"params": map[string]interface{}{"id": "42"},
		"query":  map[string]interface{}{"page": "2"},
	}

	res, err := rm.EvaluateValue(`{"id": params.id, "page": int(query.page) * 10, "tags": ["a", "b"]}`, data)
	require.NoError(t, err)

	assert.Equal(t, map[string]interface{}{
		"id":   "42",
		"page": float64(20),
		"tags": []interface{}{"a", "b"},
	}, res)
}

func TestCompile_Error(t *testing.T) {
	rm, err := NewRuleManager()
	require.NoError(t, err)

	_, err = rm.Compile("params.id ==")
	assert.ErrorContains(t, err, "erro compilação CEL")

	_, err = rm.Compile("desconhecida.campo")
	assert.Error(t, err, "variável não declarada")
}
