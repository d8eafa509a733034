package calendar

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

// definitionSchema describes the wire shape of an externally loaded
// Definition. Loaded rule sets are validated against it before decoding so
// shape errors surface with field-level messages instead of zero values.
const definitionSchema = `{
  "type": "object",
  "required": ["slug", "title", "category", "impact", "rule"],
  "properties": {
    "slug": {"type": "string", "minLength": 1, "pattern": "^[a-z0-9][a-z0-9-]*$"},
    "title": {"type": "string", "minLength": 1},
    "description": {"type": "string"},
    "category": {"enum": ["fed", "crypto", "regulation", "earnings", "other"]},
    "impact": {"enum": ["high", "medium", "low"]},
    "source": {"type": "string"},
    "rule": {
      "type": "object",
      "required": ["kind"],
      "properties": {
        "kind": {"enum": ["day_of_month", "nth_weekday", "interval_weeks", "interval_days"]},
        "day": {"type": "integer", "minimum": 1, "maximum": 31},
        "week": {"type": "integer", "minimum": 1, "maximum": 5},
        "weekday": {"type": "integer", "minimum": 0, "maximum": 6},
        "months": {"type": "array", "items": {"type": "integer", "minimum": 1, "maximum": 12}},
        "weeks": {"type": "integer", "minimum": 1},
        "days": {"type": "integer", "minimum": 1},
        "anchor": {"type": "string", "format": "date-time"},
        "hour": {"type": "integer", "minimum": 0, "maximum": 23}
      }
    }
  }
}`

var (
	schemaOnce     sync.Once
	compiledSchema *jsonschema.Schema
	schemaErr      error
)

// validateDefinitionDoc checks a decoded JSON document against the
// definition schema. The schema is compiled once and reused.
func validateDefinitionDoc(doc any) error {
	schemaOnce.Do(func() {
		var raw any
		if err := json.Unmarshal([]byte(definitionSchema), &raw); err != nil {
			schemaErr = fmt.Errorf("calendar: unmarshal definition schema: %w", err)
			return
		}

		c := jsonschema.NewCompiler()
		const url = "almanac://schema/definition"
		if err := c.AddResource(url, raw); err != nil {
			schemaErr = fmt.Errorf("calendar: add schema resource: %w", err)
			return
		}
		compiledSchema, schemaErr = c.Compile(url)
	})
	if schemaErr != nil {
		return schemaErr
	}

	return compiledSchema.Validate(doc)
}
