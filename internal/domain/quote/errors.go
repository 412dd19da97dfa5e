package quote

import (
	"fmt"
	"slices"
	"strings"
)

// ValidationError reports malformed quote input. Fields maps a JSON path such
// as items[1].quantity to a human readable message.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	var b strings.Builder
	b.WriteString("validation failed")
	for i, k := range keys {
		if i == 0 {
			b.WriteString(": ")
		} else {
			b.WriteString("; ")
		}
		b.WriteString(k)
		b.WriteByte(' ')
		b.WriteString(e.Fields[k])
	}
	return b.String()
}

// ProductNotFoundError indicates a cart line references a product that does
// not exist in the retailer's catalog.
type ProductNotFoundError struct {
	ProductID string
}

func (e *ProductNotFoundError) Error() string {
	return fmt.Sprintf("product %s not found", e.ProductID)
}
