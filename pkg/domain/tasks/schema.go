package tasks

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

const (
	// MinTasks and MaxTasks bound a generated list.
	MinTasks = 3
	MaxTasks = 5

	// SchemaName identifies the output schema for providers that require a name.
	SchemaName = "task_list"
)

const responseSchemaJSON = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["tasks"],
  "properties": {
    "tasks": {
      "type": "array",
      "description": "Array of 3-5 actionable tasks",
      "minItems": 3,
      "maxItems": 5,
      "items": {
        "type": "object",
        "required": ["name", "description", "timeframe"],
        "properties": {
          "name": {
            "type": "string",
            "minLength": 1,
            "description": "A clear, actionable task name"
          },
          "description": {
            "type": "string",
            "minLength": 1,
            "description": "Detailed description of what needs to be done"
          },
          "timeframe": {
            "type": "string",
            "minLength": 1,
            "description": "Estimated time to complete (e.g., \"2 hours\", \"30 minutes\", \"1 day\")"
          }
        }
      }
    }
  }
}`

var responseSchemaLoader = gojsonschema.NewStringLoader(responseSchemaJSON)

// Schema returns the JSON schema every generated task list must satisfy.
func Schema() json.RawMessage {
	return json.RawMessage(responseSchemaJSON)
}

// SchemaMap returns the schema decoded into a generic map, for providers that
// embed it inside their own request documents.
func SchemaMap() map[string]any {
	var m map[string]any
	if err := json.Unmarshal([]byte(responseSchemaJSON), &m); err != nil {
		panic(fmt.Sprintf("task schema is not valid JSON: %v", err))
	}
	return m
}

// ValidateResponse checks raw against the task list schema and decodes it.
func ValidateResponse(raw []byte) (*Response, error) {
	result, err := gojsonschema.Validate(responseSchemaLoader, gojsonschema.NewBytesLoader(raw))
	if err != nil {
		return nil, &SchemaViolationError{Issues: []string{fmt.Sprintf("not a JSON document: %v", err)}}
	}
	if !result.Valid() {
		issues := make([]string, 0, len(result.Errors()))
		for _, desc := range result.Errors() {
			issues = append(issues, desc.String())
		}
		return nil, &SchemaViolationError{Issues: issues}
	}

	var resp Response
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, &SchemaViolationError{Issues: []string{err.Error()}}
	}
	if err := resp.Validate(); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Validate enforces the count and non-blank field rules on an already decoded
// response.
func (r Response) Validate() error {
	var issues []string
	if n := len(r.Tasks); n < MinTasks || n > MaxTasks {
		issues = append(issues, fmt.Sprintf("tasks: expected %d-%d items, got %d", MinTasks, MaxTasks, n))
	}
	for i, c := range r.Tasks {
		if strings.TrimSpace(c.Name) == "" {
			issues = append(issues, fmt.Sprintf("tasks.%d.name: must not be blank", i))
		}
		if strings.TrimSpace(c.Description) == "" {
			issues = append(issues, fmt.Sprintf("tasks.%d.description: must not be blank", i))
		}
		if strings.TrimSpace(c.Timeframe) == "" {
			issues = append(issues, fmt.Sprintf("tasks.%d.timeframe: must not be blank", i))
		}
	}
	if len(issues) > 0 {
		return &SchemaViolationError{Issues: issues}
	}
	return nil
}
