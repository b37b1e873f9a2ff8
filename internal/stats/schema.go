package stats

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/mwiater/escombro/internal/materials"
	"github.com/xeipuuv/gojsonschema"
)

func resultSchemaDef() map[string]any {
	percent := map[string]any{"type": "number", "minimum": 0, "maximum": 100}
	return map[string]any{
		"type":     "object",
		"required": []string{"predicted_class", "confidence"},
		"properties": map[string]any{
			"predicted_class": map[string]any{"type": "string", "enum": materials.IDs()},
			"confidence":      percent,
			"probabilities": map[string]any{
				"type": "array",
				"items": map[string]any{
					"type":     "object",
					"required": []string{"class_name", "probability"},
					"properties": map[string]any{
						"class_name":  map[string]any{"type": "string"},
						"probability": percent,
					},
				},
			},
		},
	}
}

func snapshotSchemaDef() map[string]any {
	return map[string]any{
		"type":     "object",
		"required": []string{"totalProcessed", "confidenceSum", "classCount", "confidenceLevels"},
		"properties": map[string]any{
			"totalProcessed": map[string]any{"type": "integer", "minimum": 0},
			"confidenceSum":  map[string]any{"type": "number", "minimum": 0},
			"classCount": map[string]any{
				"type":                 "object",
				"additionalProperties": map[string]any{"type": "integer", "minimum": 0},
			},
			"confidenceLevels": map[string]any{
				"type":  "array",
				"items": map[string]any{"type": "number", "minimum": 0, "maximum": 1},
			},
		},
	}
}

var (
	batchSchema = sync.OnceValues(func() (*gojsonschema.Schema, error) {
		return gojsonschema.NewSchema(gojsonschema.NewGoLoader(map[string]any{
			"type":  "array",
			"items": resultSchemaDef(),
		}))
	})
	singleSchema = sync.OnceValues(func() (*gojsonschema.Schema, error) {
		return gojsonschema.NewSchema(gojsonschema.NewGoLoader(resultSchemaDef()))
	})
	snapshotSchema = sync.OnceValues(func() (*gojsonschema.Schema, error) {
		return gojsonschema.NewSchema(gojsonschema.NewGoLoader(snapshotSchemaDef()))
	})
)

func validate(schema func() (*gojsonschema.Schema, error), data []byte) error {
	s, err := schema()
	if err != nil {
		return fmt.Errorf("schema compile error: %w", err)
	}
	result, err := s.Validate(gojsonschema.NewBytesLoader(data))
	if err != nil {
		return fmt.Errorf("schema validation error: %w", err)
	}
	if result.Valid() {
		return nil
	}
	var details []string
	for _, desc := range result.Errors() {
		details = append(details, desc.String())
	}
	return fmt.Errorf("%s", strings.Join(details, "; "))
}

// DecodeResults validates and decodes a JSON array of results. A single bad
// entry rejects the whole array.
func DecodeResults(data []byte) ([]ClassificationResult, error) {
	if err := validate(batchSchema, data); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidBatch, err)
	}
	var results []ClassificationResult
	if err := json.Unmarshal(data, &results); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidBatch, err)
	}
	return results, nil
}

// DecodeResult validates and decodes one result object.
func DecodeResult(data []byte) (ClassificationResult, error) {
	if err := validate(singleSchema, data); err != nil {
		return ClassificationResult{}, fmt.Errorf("%w: %v", ErrInvalidBatch, err)
	}
	var result ClassificationResult
	if err := json.Unmarshal(data, &result); err != nil {
		return ClassificationResult{}, fmt.Errorf("%w: %v", ErrInvalidBatch, err)
	}
	return result, nil
}

// DecodeSnapshot parses a persisted aggregate and rejects anything that is
// malformed, inconsistent or mentions classes outside the catalog.
func DecodeSnapshot(data []byte) (SessionStats, error) {
	if err := validate(snapshotSchema, data); err != nil {
		return SessionStats{}, fmt.Errorf("snapshot failed validation: %w", err)
	}
	out := Empty()
	if err := json.Unmarshal(data, &out); err != nil {
		return SessionStats{}, fmt.Errorf("decode snapshot: %w", err)
	}
	if out.ConfidenceLevels == nil {
		out.ConfidenceLevels = []float64{}
	}
	for _, id := range out.ClassCount.Keys() {
		if _, err := materials.Parse(id); err != nil {
			return SessionStats{}, fmt.Errorf("snapshot classCount: %w", err)
		}
	}
	if !out.Consistent() {
		return SessionStats{}, fmt.Errorf("snapshot counters disagree: total=%d levels=%d classes=%d",
			out.TotalProcessed, len(out.ConfidenceLevels), out.ClassCount.Sum())
	}
	return out, nil
}

// EncodeSnapshot serializes the aggregate for durable storage.
func EncodeSnapshot(s SessionStats) ([]byte, error) {
	if s.ConfidenceLevels == nil {
		s.ConfidenceLevels = []float64{}
	}
	return json.Marshal(s)
}
