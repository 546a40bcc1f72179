package mcp

import (
	"fmt"
	"math"

	"github.com/google/jsonschema-go/jsonschema"
)

// ValidationError describes a single failed schema constraint with enough
// detail to render a useful Failure result.
type ValidationError struct {
	Field      string
	Constraint string
	Value      interface{}
}

// Error implements the error interface.
func (e *ValidationError) Error() (msg string) {
	if e.Value == nil {
		msg = fmt.Sprintf("parameter %q: %s", e.Field, e.Constraint)
		return msg
	}

	msg = fmt.Sprintf("parameter %q: %s (got %v)", e.Field, e.Constraint, e.Value)
	return msg
}

// DecodeArguments validates an untyped argument tree against a tool's
// declared schema and returns the decoded arguments. Integer-typed fields
// are normalized to int so handlers never see raw float64 values. All
// constraint checks (presence, type, numeric range) happen here, exactly
// once; handlers trust what they receive.
func DecodeArguments(schema *jsonschema.Schema, raw map[string]interface{}) (args map[string]interface{}, err error) {
	args = make(map[string]interface{}, len(raw))

	if schema == nil {
		for k, v := range raw {
			args[k] = v
		}
		return args, err
	}

	for _, name := range schema.Required {
		if _, present := raw[name]; !present {
			err = &ValidationError{Field: name, Constraint: "required field missing"}
			return nil, err
		}
	}

	for name, value := range raw {
		prop, declared := schema.Properties[name]
		if !declared {
			// Undeclared fields pass through untouched.
			args[name] = value
			continue
		}

		var decoded interface{}
		decoded, err = decodeValue(name, prop, value)
		if err != nil {
			return nil, err
		}

		args[name] = decoded
	}

	return args, err
}

// decodeValue checks one value against one property schema.
func decodeValue(field string, prop *jsonschema.Schema, value interface{}) (decoded interface{}, err error) {
	switch prop.Type {
	case "string":
		s, ok := value.(string)
		if !ok {
			err = &ValidationError{Field: field, Constraint: "must be a string", Value: value}
			return nil, err
		}
		decoded = s

	case "integer":
		f, ok := value.(float64)
		if !ok || f != math.Trunc(f) {
			err = &ValidationError{Field: field, Constraint: "must be an integer", Value: value}
			return nil, err
		}

		err = checkRange(field, prop, f)
		if err != nil {
			return nil, err
		}

		decoded = int(f)

	case "number":
		f, ok := value.(float64)
		if !ok {
			err = &ValidationError{Field: field, Constraint: "must be a number", Value: value}
			return nil, err
		}

		err = checkRange(field, prop, f)
		if err != nil {
			return nil, err
		}

		decoded = f

	case "boolean":
		b, ok := value.(bool)
		if !ok {
			err = &ValidationError{Field: field, Constraint: "must be a boolean", Value: value}
			return nil, err
		}
		decoded = b

	case "object":
		m, ok := value.(map[string]interface{})
		if !ok {
			err = &ValidationError{Field: field, Constraint: "must be an object", Value: value}
			return nil, err
		}
		decoded = m

	case "array":
		a, ok := value.([]interface{})
		if !ok {
			err = &ValidationError{Field: field, Constraint: "must be an array", Value: value}
			return nil, err
		}
		decoded = a

	default:
		decoded = value
	}

	return decoded, err
}

// checkRange enforces minimum/maximum bounds declared on a numeric property.
func checkRange(field string, prop *jsonschema.Schema, f float64) (err error) {
	if prop.Minimum != nil && f < *prop.Minimum {
		err = &ValidationError{
			Field:      field,
			Constraint: fmt.Sprintf("must be >= %v", *prop.Minimum),
			Value:      f,
		}
		return err
	}

	if prop.Maximum != nil && f > *prop.Maximum {
		err = &ValidationError{
			Field:      field,
			Constraint: fmt.Sprintf("must be <= %v", *prop.Maximum),
			Value:      f,
		}
		return err
	}

	return err
}
