// internal/dispatch/validate.go
package dispatch

import (
	"encoding/json"
	"fmt"
)

// argSchema is the subset of JSON Schema the capabilities declare: an
// object with typed properties and a required list.
type argSchema struct {
	Properties map[string]struct {
		Type string `json:"type"`
	} `json:"properties"`
	Required []string `json:"required"`
}

// ValidateArgs checks the call arguments against the declared schema:
// required fields must be present and every provided field must be
// coercible to its declared type. Unknown fields pass through; the
// handler ignores them.
func ValidateArgs(schema, args json.RawMessage) error {
	var spec argSchema
	if err := json.Unmarshal(schema, &spec); err != nil {
		return fmt.Errorf("bad schema: %w", err)
	}

	var values map[string]any
	if len(args) == 0 {
		values = map[string]any{}
	} else if err := json.Unmarshal(args, &values); err != nil {
		return fmt.Errorf("arguments are not a JSON object: %w", err)
	}

	for _, name := range spec.Required {
		if _, ok := values[name]; !ok {
			return fmt.Errorf("missing required field %q", name)
		}
	}

	for name, value := range values {
		prop, ok := spec.Properties[name]
		if !ok {
			continue
		}
		if !coercible(value, prop.Type) {
			return fmt.Errorf("field %q is not a %s", name, prop.Type)
		}
	}
	return nil
}

// coercible reports whether the decoded JSON value fits the declared type.
// JSON numbers decode as float64; an integral float64 satisfies "integer".
func coercible(value any, declared string) bool {
	switch declared {
	case "string":
		_, ok := value.(string)
		return ok
	case "number":
		_, ok := value.(float64)
		return ok
	case "integer":
		f, ok := value.(float64)
		return ok && f == float64(int64(f))
	case "boolean":
		_, ok := value.(bool)
		return ok
	case "array":
		_, ok := value.([]any)
		return ok
	case "object":
		_, ok := value.(map[string]any)
		return ok
	default:
		return true
	}
}
