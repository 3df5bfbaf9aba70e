// Package schema builds and validates the JSON Schemas that model output is checked
// against.
//
// # Quick Start
//
//	actionSchema := schema.MustCompile(schema.ClosedObject(map[string]*schema.Property{
//	    "action":       schema.String("Tool name").MinLength(1),
//	    "action_input": schema.Union("Tool input", "string", "number", "boolean", "null"),
//	}, "action", "action_input"))
//
//	if err := actionSchema.Validate(decoded); err != nil {
//	    // *schema.ValidationError
//	}
//
// Validate accepts values decoded with encoding/json (UseNumber is supported).
package schema

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

// Schema is a compiled JSON Schema validator.
type Schema struct {
	compiled *jsonschema.Schema
}

// Validate validates a decoded JSON value against the schema.
// Returns nil if valid, or a *ValidationError describing the failure.
func (s *Schema) Validate(data any) error {
	if s == nil || s.compiled == nil {
		return nil
	}
	if err := s.compiled.Validate(data); err != nil {
		return &ValidationError{Err: err}
	}
	return nil
}

// ValidationError wraps a JSON Schema validation error with a cleaner message.
type ValidationError struct {
	Err error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("schema validation failed: %v", e.Err)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// Compile compiles a raw schema map into a Schema with a compiled validator.
// Returns an error if the schema is invalid.
func Compile(raw map[string]any) (*Schema, error) {
	if raw == nil {
		return nil, nil
	}

	// Marshal the schema to JSON for the compiler
	schemaJSON, err := json.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal schema: %w", err)
	}

	schemaData, err := jsonschema.UnmarshalJSON(strings.NewReader(string(schemaJSON)))
	if err != nil {
		return nil, fmt.Errorf("failed to parse schema: %w", err)
	}

	c := jsonschema.NewCompiler()
	if err := c.AddResource("schema.json", schemaData); err != nil {
		return nil, fmt.Errorf("failed to add schema resource: %w", err)
	}

	compiled, err := c.Compile("schema.json")
	if err != nil {
		return nil, fmt.Errorf("failed to compile schema: %w", err)
	}

	return &Schema{compiled: compiled}, nil
}

// MustCompile is like Compile but panics on error.
// Use this for schemas defined at init time.
func MustCompile(raw map[string]any) *Schema {
	s, err := Compile(raw)
	if err != nil {
		panic(err)
	}
	return s
}

// -----------------------------------------------------------------------------
// Schema Builders
// -----------------------------------------------------------------------------

// Object creates an object schema with the given properties.
// Pass property names as variadic arguments to mark them as required.
func Object(properties map[string]*Property, required ...string) map[string]any {
	props := make(map[string]any, len(properties))
	for name, prop := range properties {
		props[name] = prop.build()
	}

	schema := map[string]any{
		"type":       "object",
		"properties": props,
	}

	if len(required) > 0 {
		schema["required"] = required
	}

	return schema
}

// ClosedObject is like Object but rejects properties that are not listed.
//
// Example:
//
//	// {"action": "x", "action_input": "y"} is valid,
//	// {"action": "x", "action_input": "y", "extra": 1} is not
//	schema.ClosedObject(map[string]*schema.Property{
//	    "action":       schema.String("Tool name"),
//	    "action_input": schema.String("Tool input"),
//	}, "action", "action_input")
func ClosedObject(properties map[string]*Property, required ...string) map[string]any {
	schema := Object(properties, required...)
	schema["additionalProperties"] = false
	return schema
}

// Property represents a property in an object schema.
type Property struct {
	types       []string
	description string
	minLength   *int
}

func (p *Property) build() map[string]any {
	m := map[string]any{}

	switch len(p.types) {
	case 0:
	case 1:
		m["type"] = p.types[0]
	default:
		m["type"] = p.types
	}
	if p.description != "" {
		m["description"] = p.description
	}
	if p.minLength != nil {
		m["minLength"] = *p.minLength
	}

	return m
}

// String creates a string property.
//
// Example:
//
//	schema.String("Tool name").MinLength(1)
func String(description string) *Property {
	return &Property{types: []string{"string"}, description: description}
}

// Union creates a property that accepts any of the given JSON types.
//
// Example:
//
//	schema.Union("Tool input", "string", "number", "boolean", "null")
func Union(description string, types ...string) *Property {
	return &Property{types: types, description: description}
}

// MinLength sets the minimum length for string properties.
func (p *Property) MinLength(min int) *Property {
	p.minLength = &min
	return p
}
