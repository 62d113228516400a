package canonical

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/larderlab/larder/pkg/ontology"
)

// Serialize renders canonical steps into the byte form that gets hashed.
//
// The encoding is deliberately hand-rolled rather than delegated to
// encoding/json: the hash is a permanent identifier, so the byte layout must
// stay pinned to this function, not to the library's formatting choices.
//
// Rules: steps in their canonical order, parameter keys alpha-sorted,
// booleans as literal true/false, numbers without trailing zeros, strings
// JSON-quoted.
func Serialize(steps []ontology.CanonicalStep) string {
	var b strings.Builder
	b.WriteByte('[')
	for i, s := range steps {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(`{"t":`)
		b.WriteString(strconv.Quote(s.Transform))
		b.WriteString(`,"p":{`)

		keys := make([]string, 0, len(s.Params))
		for k := range s.Params {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for j, k := range keys {
			if j > 0 {
				b.WriteByte(',')
			}
			b.WriteString(strconv.Quote(k))
			b.WriteByte(':')
			writeValue(&b, s.Params[k])
		}
		b.WriteString("}}")
	}
	b.WriteByte(']')
	return b.String()
}

func writeValue(b *strings.Builder, v any) {
	switch x := v.(type) {
	case bool:
		if x {
			b.WriteString("true")
		} else {
			b.WriteString("false")
		}
	case float64:
		b.WriteString(formatNumber(x))
	case int64:
		b.WriteString(strconv.FormatInt(x, 10))
	case int:
		b.WriteString(strconv.Itoa(x))
	case string:
		b.WriteString(strconv.Quote(x))
	default:
		// Canonical steps only carry the tagged-union types above; anything
		// else is a bug in parameter validation.
		b.WriteString(strconv.Quote(fmt.Sprintf("%v", x)))
	}
}

// formatNumber renders a float without trailing zeros: 120.0 -> "120",
// 0.50 -> "0.5".
func formatNumber(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
