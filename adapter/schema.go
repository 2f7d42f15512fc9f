package adapter

import (
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"github.com/c360/heritagestreams/errors"
)

// Content schemas check JSON shape only. Required fields are enforced after
// tags have been merged over content, since either may carry them.
var contentSchemas = map[string]string{
	"culture": `{
		"type": "object",
		"properties": {
			"name":        {"type": "string"},
			"description": {"type": "string"},
			"category":    {"type": "string"},
			"region":      {"type": "string"},
			"language":    {"type": "string"},
			"image":       {"type": "string"},
			"tags":        {"type": "array", "items": {"type": "string"}}
		}
	}`,
	"exhibition": `{
		"type": "object",
		"properties": {
			"title":       {"type": "string"},
			"description": {"type": "string"},
			"category":    {"type": "string"},
			"culture":     {"type": "string"},
			"location":    {"type": "string"},
			"start_date":  {"type": "string"},
			"end_date":    {"type": "string"},
			"image":       {"type": "string"},
			"artifacts":   {"type": "array", "items": {"type": "string"}},
			"tags":        {"type": "array", "items": {"type": "string"}}
		}
	}`,
	"resource": `{
		"type": "object",
		"properties": {
			"title":       {"type": "string"},
			"description": {"type": "string"},
			"type":        {"type": "string"},
			"url":         {"type": "string"},
			"culture":     {"type": "string"},
			"language":    {"type": "string"},
			"license":     {"type": "string"},
			"tags":        {"type": "array", "items": {"type": "string"}}
		}
	}`,
	"story": `{
		"type": "object",
		"properties": {
			"title":    {"type": "string"},
			"summary":  {"type": "string"},
			"body":     {"type": "string"},
			"elder":    {"type": "string"},
			"culture":  {"type": "string"},
			"language": {"type": "string"},
			"image":    {"type": "string"},
			"tags":     {"type": "array", "items": {"type": "string"}}
		}
	}`,
	"artifact": `{
		"type": "object",
		"properties": {
			"artifact":    {"type": "boolean"},
			"name":        {"type": "string"},
			"description": {"type": "string"},
			"url":         {"type": "string"},
			"culture":     {"type": "string"},
			"origin":      {"type": "string"}
		}
	}`,
	"rating": `{
		"type": "object",
		"required": ["rating"],
		"properties": {
			"rating": {"type": "number", "minimum": 1, "maximum": 5}
		}
	}`,
}

type schemaSet map[string]*gojsonschema.Schema

func compileSchemas() (schemaSet, error) {
	set := make(schemaSet, len(contentSchemas))
	for name, doc := range contentSchemas {
		schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(doc))
		if err != nil {
			return nil, errors.WrapFatal(err, "adapter", "compileSchemas", fmt.Sprintf("compile %s schema", name))
		}
		set[name] = schema
	}
	return set, nil
}

// validate checks content against the named schema. Content that is not JSON
// at all is reported as a parse failure.
func (s schemaSet) validate(name, content string) error {
	schema, ok := s[name]
	if !ok {
		return fmt.Errorf("%w: no schema %q", errors.ErrInvalidConfig, name)
	}

	result, err := schema.Validate(gojsonschema.NewStringLoader(content))
	if err != nil {
		return fmt.Errorf("%w: %v", errors.ErrParsingFailed, err)
	}

	if !result.Valid() {
		var b strings.Builder
		for i, desc := range result.Errors() {
			if i > 0 {
				b.WriteString("; ")
			}
			fmt.Fprintf(&b, "%s: %s", desc.Field(), desc.Description())
		}
		return fmt.Errorf("%w: %s", errors.ErrInvalidData, b.String())
	}
	return nil
}
