// Package story models the descriptive documents attached to device and
// receiver URLs, and how they are resolved.
//
// A Story is a JSON-LD style document. Only one question is ever asked of it
// by the featuring logic: does its @graph name a Person.
package story

import (
	"encoding/json"
	"fmt"

	"github.com/tidwall/jsonc"
)

// PersonType is the @type tag identifying a person node.
const PersonType = "schema:Person"

// Story is a decoded story document.
type Story map[string]any

// IncludesPerson reports whether any node of the story's @graph carries the
// Person type. Absent, empty and malformed stories never include a person.
func IncludesPerson(s Story) bool {
	graph, ok := s["@graph"].([]any)
	if !ok {
		return false
	}
	for _, n := range graph {
		node, ok := n.(map[string]any)
		if !ok {
			continue
		}
		if isPersonType(node["@type"]) {
			return true
		}
	}
	return false
}

// @type is a string in compacted documents and may be an array otherwise.
func isPersonType(v any) bool {
	switch t := v.(type) {
	case string:
		return t == PersonType
	case []any:
		for _, e := range t {
			if s, ok := e.(string); ok && s == PersonType {
				return true
			}
		}
	}
	return false
}

// Decode parses a story document. Comments and trailing commas are tolerated
// so hand-written story files can be served as-is.
func Decode(data []byte) (Story, error) {
	var s Story
	if err := json.Unmarshal(jsonc.ToJSON(data), &s); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDecode, err)
	}
	return s, nil
}

// ID returns the document's @id, if any.
func (s Story) ID() string {
	id, _ := s["@id"].(string)
	return id
}
