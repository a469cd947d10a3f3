package catalog

import (
	"bytes"
	"encoding/json"
	"os"

	jsonschema "github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/rivermist/shopflow/pkg/schema"
)

// catalogSchemaJSON is the JSON Schema for catalog definition files.
// Embedded as a constant to avoid filesystem dependencies.
const catalogSchemaJSON = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "$id": "https://shopflow.dev/schemas/catalog.json",
  "type": "object",
  "required": ["workflows"],
  "properties": {
    "workflows": {
      "type": "object",
      "minProperties": 1,
      "additionalProperties": {
        "type": "array",
        "minItems": 1,
        "items": { "$ref": "#/$defs/step" }
      }
    },
    "aliases": {
      "type": "object",
      "additionalProperties": { "type": "string" }
    }
  },
  "additionalProperties": false,
  "$defs": {
    "step": {
      "type": "object",
      "required": ["name", "description"],
      "properties": {
        "name": { "type": "string", "minLength": 1 },
        "description": { "type": "string", "minLength": 1 },
        "required_tools": {
          "type": "array",
          "items": { "type": "string", "minLength": 1 }
        },
        "requires_confirmation": { "type": "boolean" },
        "input_fields": {
          "type": "array",
          "items": { "type": "string", "minLength": 1 }
        }
      },
      "additionalProperties": false
    }
  }
}`

// catalogFile is the on-disk catalog definition format.
type catalogFile struct {
	Workflows map[string][]schema.StepDefinition `json:"workflows"`
	Aliases   map[string]string                  `json:"aliases,omitempty"`
}

// Load reads a catalog definition file, validates it against the embedded
// JSON Schema, and returns a catalog with the file's workflows layered over
// the builtin ones (the file wins per intent). Aliases from the file are
// added to the defaults.
func Load(path string) (*Catalog, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, schema.NewErrorf(schema.ErrCodeValidation, "read catalog file %s", path).WithCause(err)
	}
	return Parse(raw)
}

// Parse validates and parses a catalog definition document.
func Parse(raw []byte) (*Catalog, error) {
	compiled, err := compileCatalogSchema()
	if err != nil {
		return nil, err
	}

	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(raw))
	if err != nil {
		return nil, schema.NewError(schema.ErrCodeValidation, "catalog file is not valid JSON").WithCause(err)
	}
	if err := compiled.Validate(doc); err != nil {
		return nil, schema.NewError(schema.ErrCodeValidation, "catalog file failed schema validation").WithCause(err)
	}

	var file catalogFile
	if err := json.Unmarshal(raw, &file); err != nil {
		return nil, schema.NewError(schema.ErrCodeValidation, "decode catalog file").WithCause(err)
	}

	c := Builtin()
	for intent, steps := range file.Workflows {
		wf := schema.Workflow(steps)
		if err := schema.ValidateWorkflow(wf); err != nil {
			return nil, schema.NewErrorf(schema.ErrCodeValidation, "catalog intent %q", intent).WithCause(err)
		}
		c.workflows[intent] = wf
	}
	for alias, canonical := range file.Aliases {
		c.aliases[alias] = canonical
	}
	return c, nil
}

func compileCatalogSchema() (*jsonschema.Schema, error) {
	compiler := jsonschema.NewCompiler()
	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader([]byte(catalogSchemaJSON)))
	if err != nil {
		return nil, schema.NewError(schema.ErrCodeValidation, "unmarshal catalog schema").WithCause(err)
	}
	if err := compiler.AddResource("https://shopflow.dev/schemas/catalog.json", doc); err != nil {
		return nil, schema.NewError(schema.ErrCodeValidation, "add catalog schema resource").WithCause(err)
	}
	compiled, err := compiler.Compile("https://shopflow.dev/schemas/catalog.json")
	if err != nil {
		return nil, schema.NewError(schema.ErrCodeValidation, "compile catalog schema").WithCause(err)
	}
	return compiled, nil
}
