package calendar

import (
	"encoding/json"
	"fmt"

	"gopkg.in/yaml.v3"
)

// LoadJSON registers definitions from a JSON array. Each document is
// validated against the definition schema before decoding, so a malformed
// entry is rejected with a field-level error and nothing from the batch is
// registered.
func (r *Registry) LoadJSON(data []byte) (int, error) {
	var docs []json.RawMessage
	if err := json.Unmarshal(data, &docs); err != nil {
		return 0, fmt.Errorf("calendar: unmarshal definitions: %w", err)
	}

	defs := make([]Definition, 0, len(docs))
	for i, raw := range docs {
		var doc any
		if err := json.Unmarshal(raw, &doc); err != nil {
			return 0, fmt.Errorf("calendar: definition %d: %w", i, err)
		}
		if err := validateDefinitionDoc(doc); err != nil {
			return 0, fmt.Errorf("calendar: definition %d: %w", i, err)
		}

		var def Definition
		if err := json.Unmarshal(raw, &def); err != nil {
			return 0, fmt.Errorf("calendar: definition %d: %w", i, err)
		}
		defs = append(defs, def)
	}

	return r.registerAll(defs)
}

// LoadYAML registers definitions from a YAML sequence. Rule sets maintained
// as configuration files typically use this form.
func (r *Registry) LoadYAML(data []byte) (int, error) {
	var defs []Definition
	if err := yaml.Unmarshal(data, &defs); err != nil {
		return 0, fmt.Errorf("calendar: unmarshal definitions: %w", err)
	}

	return r.registerAll(defs)
}

// registerAll validates every definition before registering any, so a batch
// either loads completely or not at all.
func (r *Registry) registerAll(defs []Definition) (int, error) {
	for _, def := range defs {
		if err := def.Validate(); err != nil {
			return 0, err
		}
	}
	for _, def := range defs {
		if err := r.Register(def); err != nil {
			return 0, err
		}
	}
	return len(defs), nil
}
