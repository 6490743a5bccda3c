package profile

import (
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// profileSchema: every section is optional and nullable, but present sections
// must have the right shape.
const profileSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "definitions": {
    "text": {"type": ["string", "null"]},
    "textList": {"type": ["array", "null"], "items": {"type": "string"}}
  },
  "properties": {
    "personal_info": {
      "type": ["object", "null"],
      "properties": {
        "name": {"$ref": "#/definitions/text"},
        "title": {"$ref": "#/definitions/text"}
      }
    },
    "summary": {"$ref": "#/definitions/text"},
    "skills": {"$ref": "#/definitions/textList"},
    "technical_skills": {
      "type": ["object", "null"],
      "additionalProperties": {"$ref": "#/definitions/textList"}
    },
    "work_experience": {
      "type": ["array", "null"],
      "items": {
        "type": "object",
        "properties": {
          "title": {"$ref": "#/definitions/text"},
          "company": {"$ref": "#/definitions/text"},
          "duration": {"$ref": "#/definitions/text"},
          "projects": {
            "type": ["array", "null"],
            "items": {
              "type": "object",
              "properties": {
                "name": {"$ref": "#/definitions/text"},
                "description": {"$ref": "#/definitions/text"},
                "responsibilities": {"$ref": "#/definitions/textList"}
              }
            }
          }
        }
      }
    },
    "education": {
      "type": ["array", "null"],
      "items": {
        "type": "object",
        "properties": {
          "degree": {"$ref": "#/definitions/text"},
          "institution": {"$ref": "#/definitions/text"}
        }
      }
    },
    "certifications": {"$ref": "#/definitions/textList"}
  }
}`

var compiledSchema *gojsonschema.Schema

func init() {
	s, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(profileSchema))
	if err != nil {
		panic(fmt.Sprintf("profile schema: %v", err))
	}
	compiledSchema = s
}

// SchemaError lists the fields that violated the profile schema.
type SchemaError struct {
	Fields []string
}

func (e *SchemaError) Error() string {
	return "schema violations: " + strings.Join(e.Fields, "; ")
}

func validateSchema(raw []byte) error {
	result, err := compiledSchema.Validate(gojsonschema.NewBytesLoader(raw))
	if err != nil {
		return err
	}
	if result.Valid() {
		return nil
	}
	se := &SchemaError{}
	for _, re := range result.Errors() {
		se.Fields = append(se.Fields, fmt.Sprintf("%s: %s", re.Field(), re.Description()))
	}
	return se
}
