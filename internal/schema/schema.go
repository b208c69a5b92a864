// Package schema derives JSON Schemas from Go types and validates raw
// admin-supplied documents against them. Policy and tool-delta blobs are
// checked here, at the write boundary, so malformed or unknown fields are
// rejected synchronously instead of surfacing mid-execution.
package schema

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/invopop/jsonschema"
	santhosh "github.com/santhosh-tekuri/jsonschema/v5"
)

// Generate produces a JSON Schema for the Go struct type T using its json
// and jsonschema struct tags. Additional properties are disallowed, so a
// document with fields outside the type fails validation.
func Generate[T any]() *jsonschema.Schema {
	var zero T
	r := jsonschema.Reflector{
		DoNotReference: true,
		ExpandedStruct: true,
	}
	return r.Reflect(&zero)
}

// Validator validates raw JSON documents against a compiled schema.
type Validator struct {
	compiled *santhosh.Schema
}

// NewValidator compiles the schema for type T. Compile errors indicate a
// programming mistake in the type's tags, hence the error return rather
// than a panic is for the caller to decide.
func NewValidator[T any](name string) (*Validator, error) {
	s := Generate[T]()
	raw, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("marshal schema for %s: %w", name, err)
	}

	compiler := santhosh.NewCompiler()
	compiler.Draft = santhosh.Draft2020
	url := name + ".schema.json"
	if err := compiler.AddResource(url, bytes.NewReader(raw)); err != nil {
		return nil, fmt.Errorf("add schema resource for %s: %w", name, err)
	}
	compiled, err := compiler.Compile(url)
	if err != nil {
		return nil, fmt.Errorf("compile schema for %s: %w", name, err)
	}
	return &Validator{compiled: compiled}, nil
}

// Validate checks a raw JSON document against the schema.
func (v *Validator) Validate(raw json.RawMessage) error {
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return fmt.Errorf("parse document: %w", err)
	}
	if err := v.compiled.Validate(doc); err != nil {
		return fmt.Errorf("document does not match schema: %w", err)
	}
	return nil
}
