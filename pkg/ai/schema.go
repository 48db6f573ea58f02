package ai

import (
	"encoding/json"
	"fmt"

	"github.com/felixgeelhaar/stepwise/pkg/domain/ai"
)

// schemaDocument decodes the request schema and drops keywords the provider
// does not accept.
func schemaDocument(s *ai.OutputSchema, drop ...string) (map[string]any, error) {
	var doc map[string]any
	if err := json.Unmarshal(s.Schema, &doc); err != nil {
		return nil, fmt.Errorf("decode output schema %q: %w", s.Name, err)
	}
	if len(drop) == 0 {
		return doc, nil
	}
	skip := make(map[string]bool, len(drop))
	for _, k := range drop {
		skip[k] = true
	}
	return prune(doc, skip).(map[string]any), nil
}

func prune(v any, skip map[string]bool) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			if skip[k] {
				continue
			}
			out[k] = prune(val, skip)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = prune(val, skip)
		}
		return out
	default:
		return v
	}
}
