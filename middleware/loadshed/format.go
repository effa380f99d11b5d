package loadshed

import "strconv"

// formatação rápida/consistente de valores numéricos em headers.

func formatInt(v int) string { return strconv.Itoa(v) }

func formatInt64(v int64) string { return strconv.FormatInt(v, 10) }

func formatFloat(v float64) string {
	// sem notação científica para valores comuns
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// retryAfterSeconds arredonda para cima: Retry-After: 0 faria o cliente
// voltar imediatamente.
func retryAfterSeconds(secs float64) string {
	n := int(secs)
	if float64(n) < secs {
		n++
	}
	if n < 1 {
		n = 1
	}
	return formatInt(n)
}
