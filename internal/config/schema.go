package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

const suiteSchemaURL = "crudbench-suite.schema.json"

const suiteSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["targets"],
  "additionalProperties": false,
  "definitions": {
    "duration": {"type": ["string", "integer"]},
    "headers": {"type": "object", "additionalProperties": {"type": "string"}},
    "endpoint": {
      "type": "object",
      "required": ["name", "method", "path"],
      "additionalProperties": false,
      "properties": {
        "name": {"type": "string", "minLength": 1},
        "method": {"type": "string", "pattern": "^(?i)(get|post|put|delete)$"},
        "path": {"type": "string"},
        "headers": {"$ref": "#/definitions/headers"},
        "body": {"type": "string"},
        "json": {},
        "requests": {"type": "integer", "minimum": 1},
        "concurrency": {"type": "integer", "minimum": 1},
        "timeout": {"$ref": "#/definitions/duration"}
      }
    },
    "target": {
      "type": "object",
      "required": ["name", "baseUrl", "endpoints"],
      "additionalProperties": false,
      "properties": {
        "name": {"type": "string", "minLength": 1},
        "baseUrl": {"type": "string", "minLength": 1},
        "monitorPid": {"type": "integer", "minimum": 1},
        "headers": {"$ref": "#/definitions/headers"},
        "endpoints": {"type": "array", "minItems": 1, "items": {"$ref": "#/definitions/endpoint"}}
      }
    }
  },
  "properties": {
    "name": {"type": "string"},
    "settings": {
      "type": "object",
      "additionalProperties": false,
      "properties": {
        "requests": {"type": "integer", "minimum": 1},
        "concurrency": {"type": "integer", "minimum": 1},
        "timeout": {"$ref": "#/definitions/duration"},
        "delay": {"$ref": "#/definitions/duration"},
        "monitorInterval": {"$ref": "#/definitions/duration"},
        "headers": {"$ref": "#/definitions/headers"},
        "outputDir": {"type": "string"},
        "compress": {"type": "boolean"},
        "includeClientLatency": {"type": "boolean"},
        "insecureSkipVerify": {"type": "boolean"}
      }
    },
    "targets": {"type": "array", "minItems": 1, "items": {"$ref": "#/definitions/target"}}
  }
}`

var compiledSuiteSchema = jsonschema.MustCompileString(suiteSchemaURL, suiteSchema)

// validateSuiteDocument checks a decoded suite document against the schema.
func validateSuiteDocument(doc interface{}) error {
	// Round-trip through encoding/json so YAML-decoded values have JSON types.
	raw, err := json.Marshal(normalizeYAML(doc))
	if err != nil {
		return &ValidationError{Message: fmt.Sprintf("suite is not representable as JSON: %v", err)}
	}
	var v interface{}
	if err := json.Unmarshal(raw, &v); err != nil {
		return &ValidationError{Message: fmt.Sprintf("suite is not representable as JSON: %v", err)}
	}

	err = compiledSuiteSchema.Validate(v)
	if err == nil {
		return nil
	}

	var ve *jsonschema.ValidationError
	if !errors.As(err, &ve) {
		return &ValidationError{Message: err.Error()}
	}

	errs := &ValidationErrors{}
	collectSchemaErrors(ve, errs)
	if !errs.HasErrors() {
		errs.Add("", ve.Message)
	}
	return errs
}

func collectSchemaErrors(ve *jsonschema.ValidationError, errs *ValidationErrors) {
	if len(ve.Causes) == 0 {
		field := strings.TrimPrefix(strings.ReplaceAll(ve.InstanceLocation, "/", "."), ".")
		errs.Add(field, ve.Message)
		return
	}
	for _, cause := range ve.Causes {
		collectSchemaErrors(cause, errs)
	}
}
