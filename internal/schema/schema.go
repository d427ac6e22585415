// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Veltrix Contributors

// Package schema generates and validates JSON Schema documents describing
// registered commands, adapted from the teacher's plugin-manifest schema
// pipeline (internal/plugin/schema.go) to the Component Catalog's
// Command/Parameter shape. It lets a host self-describe its command
// surface to external tooling and validate a structured (Object-variant)
// argument payload before it ever reaches the Parser Registry.
package schema

import (
	"encoding/json"
	"sync"

	"github.com/invopop/jsonschema"
	"github.com/samber/oops"
	jschema "github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/veltrix/dispatch/internal/catalog"
)

// ParameterDescriptor mirrors a catalog.Parameter's externally-relevant
// shape for schema generation and documentation tooling.
type ParameterDescriptor struct {
	Name        string `json:"name" jsonschema:"required,minLength=1"`
	Type        string `json:"type" jsonschema:"required"`
	Optional    bool   `json:"optional"`
	Collection  bool   `json:"collection"`
	Remainder   bool   `json:"remainder"`
	Description string `json:"description,omitempty"`
}

// CommandDescriptor is the self-describing view of a registered Command,
// generated from the catalog rather than hand-maintained.
type CommandDescriptor struct {
	Name       string                `json:"name" jsonschema:"required,minLength=1"`
	Aliases    []string              `json:"aliases" jsonschema:"required,minItems=1"`
	MinLength  int                   `json:"min_length"`
	MaxLength  int                   `json:"max_length"`
	Parameters []ParameterDescriptor `json:"parameters"`
}

// Describe builds a CommandDescriptor from a registered command, for
// self-description endpoints or schema export.
func Describe(cmd *catalog.Command) CommandDescriptor {
	d := CommandDescriptor{
		Name:      cmd.FullName(),
		Aliases:   cmd.Aliases(),
		MinLength: cmd.MinLength,
		MaxLength: cmd.MaxLength,
	}
	for _, p := range cmd.Parameters {
		typeName := "object"
		if p.Type != nil {
			typeName = p.Type.String()
		}
		d.Parameters = append(d.Parameters, ParameterDescriptor{
			Name:       p.Name,
			Type:       typeName,
			Optional:   p.IsOptional,
			Collection: p.IsCollection,
			Remainder:  p.IsRemainder,
		})
	}
	return d
}

// GenerateCatalogSchema reflects a JSON Schema document for a slice of
// CommandDescriptor, suitable for publishing as the catalog's
// machine-readable API surface.
func GenerateCatalogSchema() ([]byte, error) {
	r := jsonschema.Reflector{DoNotReference: true}
	s := r.Reflect(&[]CommandDescriptor{})
	s.Title = "Dispatch Command Catalog"
	s.Description = "Self-describing schema for a registered command catalog"

	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return nil, oops.Code("SCHEMA_MARSHAL").Wrapf(err, "failed to marshal catalog schema")
	}
	return append(data, '\n'), nil
}

// compiledCache memoizes compiled per-parameter-shape validators keyed by
// command name, so repeated ExecuteNamed-style calls against the same
// command do not recompile a schema every time.
var compiledCache sync.Map // string -> *jschema.Schema

// ValidateObjectArgs validates a JSON object payload against a command's
// declared parameters, rejecting unknown fields, missing required fields,
// and values of the wrong JSON type. The pipeline calls it once Search has
// resolved the command and before any parameter is parsed. data must
// be a JSON object ({"name": ..., ...}); this is the Object-variant input
// path spec.md §9 describes for typed, pre-structured arguments.
func ValidateObjectArgs(cmd *catalog.Command, data []byte) error {
	if len(data) == 0 {
		return oops.Code("SCHEMA_EMPTY_PAYLOAD").Errorf("object argument payload is empty")
	}

	sch, err := compiledSchemaFor(cmd)
	if err != nil {
		return oops.Code("SCHEMA_COMPILE").Wrapf(err, "failed to compile schema for %s", cmd.FullName())
	}

	var payload any
	if err := json.Unmarshal(data, &payload); err != nil {
		return oops.Code("SCHEMA_INVALID_JSON").Wrapf(err, "invalid JSON payload")
	}
	if err := sch.Validate(payload); err != nil {
		return oops.Code("SCHEMA_VALIDATION").Wrapf(err, "argument payload failed validation")
	}
	return nil
}

func compiledSchemaFor(cmd *catalog.Command) (*jschema.Schema, error) {
	if cached, ok := compiledCache.Load(cmd.FullName()); ok {
		return cached.(*jschema.Schema), nil
	}

	doc := parameterObjectSchema(cmd)
	docBytes, err := json.Marshal(doc)
	if err != nil {
		return nil, err
	}
	var raw any
	if err := json.Unmarshal(docBytes, &raw); err != nil {
		return nil, err
	}

	resourceID := "command:" + cmd.FullName()
	c := jschema.NewCompiler()
	if err := c.AddResource(resourceID, raw); err != nil {
		return nil, err
	}
	sch, err := c.Compile(resourceID)
	if err != nil {
		return nil, err
	}
	compiledCache.Store(cmd.FullName(), sch)
	return sch, nil
}

// parameterObjectSchema builds a plain JSON Schema object (properties +
// required) directly from the command's parameters, independent of the
// jsonschema reflector since Parameter carries a reflect.Type rather than
// a concrete Go struct the reflector could introspect.
func parameterObjectSchema(cmd *catalog.Command) map[string]any {
	properties := make(map[string]any, len(cmd.Parameters))
	var required []string
	for _, p := range cmd.Parameters {
		if p.IsRemainder {
			continue
		}
		properties[p.Name] = map[string]any{"type": jsonTypeOf(p)}
		if !p.IsOptional {
			required = append(required, p.Name)
		}
	}
	return map[string]any{
		"$schema":              "https://json-schema.org/draft/2020-12/schema",
		"type":                 "object",
		"properties":           properties,
		"required":             required,
		"additionalProperties": false,
	}
}

func jsonTypeOf(p *catalog.Parameter) string {
	if p.IsCollection {
		return "array"
	}
	if p.Type == nil {
		return "object"
	}
	switch p.Type.Kind().String() {
	case "bool":
		return "boolean"
	case "int", "int8", "int16", "int32", "int64", "uint", "uint8", "uint16", "uint32", "uint64":
		return "integer"
	case "float32", "float64":
		return "number"
	case "string":
		return "string"
	default:
		return "object"
	}
}
