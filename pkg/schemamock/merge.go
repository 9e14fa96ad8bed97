package schemamock

// Merge aplica override sobre base: mapas são mesclados recursivamente,
// listas são concatenadas e nos demais casos o valor de override vence.
// Nenhum dos argumentos é modificado.
func Merge(base, override interface{}) interface{} {
	switch o := override.(type) {
	case map[string]interface{}:
		b, ok := base.(map[string]interface{})
		if !ok {
			return o
		}
		out := make(map[string]interface{}, len(b)+len(o))
		for k, v := range b {
			out[k] = v
		}
		for k, v := range o {
			if prev, exists := out[k]; exists {
				out[k] = Merge(prev, v)
			} else {
				out[k] = v
			}
		}
		return out

	case []interface{}:
		b, ok := base.([]interface{})
		if !ok {
			return o
		}
		out := make([]interface{}, 0, len(b)+len(o))
		out = append(out, b...)
		return append(out, o...)

	default:
		return override
	}
}
