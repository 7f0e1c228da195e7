package schema

import (
	"encoding/json"
	"fmt"
	"math"
	"slices"
	"strconv"
	"unicode/utf8"
)

// Validate checks value against the schema and returns a *ValidationError
// listing every violation, or nil when the value conforms. The value is
// never modified.
func (s Schema) Validate(value any) error {
	if s.root == nil {
		return nil
	}
	var violations []Violation
	walk(*s.root, "", value, &violations)
	if len(violations) == 0 {
		return nil
	}
	return &ValidationError{Violations: violations}
}

func walk(f Field, path string, value any, out *[]Violation) {
	report := func(format string, args ...any) {
		*out = append(*out, Violation{Path: path, Message: fmt.Sprintf(format, args...)})
	}

	switch f.Type {
	case TypeAny:
		return
	case TypeString:
		s, ok := value.(string)
		if !ok {
			report("expected string, got %s", describe(value))
			return
		}
		if f.MinLength > 0 && utf8.RuneCountInString(s) < f.MinLength {
			report("must be at least %d characters", f.MinLength)
		}
		if len(f.Enum) > 0 && !slices.Contains(f.Enum, s) {
			report("must be one of %v", f.Enum)
		}
	case TypeNumber:
		if _, ok := number(value); !ok {
			report("expected number, got %s", describe(value))
		}
	case TypeInteger:
		n, ok := number(value)
		if !ok {
			report("expected integer, got %s", describe(value))
			return
		}
		if n != math.Trunc(n) {
			report("expected integer, got %v", n)
		}
	case TypeBoolean:
		if _, ok := value.(bool); !ok {
			report("expected boolean, got %s", describe(value))
		}
	case TypeArray:
		items, ok := value.([]any)
		if !ok {
			report("expected array, got %s", describe(value))
			return
		}
		if f.MinItems > 0 && len(items) < f.MinItems {
			report("must contain at least %d items", f.MinItems)
		}
		if f.Items == nil {
			return
		}
		for i, item := range items {
			walk(*f.Items, path+"["+strconv.Itoa(i)+"]", item, out)
		}
	case TypeObject:
		obj, ok := value.(map[string]any)
		if !ok {
			report("expected object, got %s", describe(value))
			return
		}
		for _, child := range f.Fields {
			childPath := child.Name
			if path != "" {
				childPath = path + "." + child.Name
			}
			v, present := obj[child.Name]
			if !present || v == nil {
				if child.Mandatory {
					*out = append(*out, Violation{Path: childPath, Message: "is required"})
				}
				continue
			}
			walk(child, childPath, v, out)
		}
	}
}

func number(value any) (float64, bool) {
	switch n := value.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}

func describe(value any) string {
	switch value.(type) {
	case nil:
		return "null"
	case string:
		return "string"
	case bool:
		return "boolean"
	case []any:
		return "array"
	case map[string]any:
		return "object"
	}
	if _, ok := number(value); ok {
		return "number"
	}
	return fmt.Sprintf("%T", value)
}
