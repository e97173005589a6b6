package openai

import "fmt"

const detectionResponseSchema = `{
  "type": "object",
  "properties": {
    "objects": {
      "type": "array",
      "items": {
        "type": "object",
        "properties": {
          "label": {"type": "string"},
          "confidence": {"type": "number", "minimum": 0, "maximum": 1},
          "box": {"type": "array", "items": {"type": "integer"}, "minItems": 4, "maxItems": 4}
        },
        "required": ["label", "confidence", "box"]
      }
    }
  },
  "required": ["objects"]
}`

func buildSystemPrompt(width, height int) string {
	return fmt.Sprintf(`You are an object detector. Find every distinct physical object in the image.

For each object report:
- label: lowercase singular class name, e.g. "person", "dog", "traffic light"
- confidence: your confidence between 0 and 1
- box: pixel coordinates [top, bottom, left, right] in the %dx%d image

Respond with JSON only, matching this schema:
%s

If the image contains no objects respond with {"objects": []}.`, width, height, detectionResponseSchema)
}
