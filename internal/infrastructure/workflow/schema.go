package workflow

// extractionSchemaJSON is the JSON Schema a structured-output extraction
// response must satisfy, grounded on goadesign-goa-ai's
// validatePayloadJSONAgainstSchema pattern: compile once, validate every
// response document against it.
const extractionSchemaJSON = `{
  "type": "object",
  "required": ["name", "nodes", "edges"],
  "properties": {
    "name": {"type": "string", "minLength": 1},
    "nodes": {
      "type": "array",
      "minItems": 1,
      "items": {
        "type": "object",
        "required": ["id", "kind"],
        "properties": {
          "id": {"type": "string", "minLength": 1},
          "kind": {
            "type": "string",
            "enum": ["input", "processing", "tool", "reasoning", "decision", "validation", "output"]
          },
          "required_tool": {"type": "string"},
          "dependencies": {"type": "array", "items": {"type": "string"}},
          "best_effort": {"type": "boolean"},
          "parameters": {"type": "object"}
        }
      }
    },
    "edges": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["from", "to"],
        "properties": {
          "from": {"type": "string"},
          "to": {"type": "string"},
          "condition": {"type": "string"}
        }
      }
    }
  }
}`
