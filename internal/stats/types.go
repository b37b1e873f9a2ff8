// Package stats owns the session statistics aggregate: every classification
// result seen in the current session is folded into it, and the aggregate is
// mirrored to durable client storage after every mutation.
package stats

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"

	"github.com/mwiater/escombro/internal/materials"
)

// ErrInvalidBatch is returned when a batch holds a malformed result. The
// aggregate is never touched when this error is returned.
var ErrInvalidBatch = errors.New("invalid classification batch")

// Probability is one entry of a result's per-class distribution.
type Probability struct {
	ClassName   string  `json:"class_name"`
	DisplayName string  `json:"display_name,omitempty"`
	Probability float64 `json:"probability"`
}

// ClassificationResult is produced by the backend and treated as immutable.
type ClassificationResult struct {
	PredictedClass string        `json:"predicted_class"`
	Confidence     float64       `json:"confidence"`
	Probabilities  []Probability `json:"probabilities"`

	Filename    string `json:"filename,omitempty"`
	ImageURL    string `json:"image_url,omitempty"`
	Color       string `json:"color,omitempty"`
	Emoji       string `json:"emoji,omitempty"`
	DisplayName string `json:"display_name,omitempty"`
	Timestamp   string `json:"timestamp,omitempty"`
}

// Class returns the catalog entry for the predicted class.
func (r ClassificationResult) Class() (materials.Class, error) {
	return materials.Parse(r.PredictedClass)
}

// Validate checks the fields a fold depends on.
func (r ClassificationResult) Validate() error {
	if r.PredictedClass == "" {
		return errors.New("missing predicted_class")
	}
	if _, err := r.Class(); err != nil {
		return err
	}
	if !validPercent(r.Confidence) {
		return fmt.Errorf("confidence %v outside [0,100]", r.Confidence)
	}
	for _, p := range r.Probabilities {
		if !validPercent(p.Probability) {
			return fmt.Errorf("probability %v for %q outside [0,100]", p.Probability, p.ClassName)
		}
	}
	return nil
}

func validPercent(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0) && v >= 0 && v <= 100
}

// ClassCount counts predictions per class and remembers the order in which
// classes were first seen. The order survives JSON encoding.
type ClassCount struct {
	order  []string
	counts map[string]int
}

// Inc adds one occurrence of id, registering it on first sight.
func (c *ClassCount) Inc(id string) {
	if c.counts == nil {
		c.counts = map[string]int{}
	}
	if _, ok := c.counts[id]; !ok {
		c.order = append(c.order, id)
	}
	c.counts[id]++
}

// Get returns the count for id, 0 when absent.
func (c ClassCount) Get(id string) int { return c.counts[id] }

// Keys returns class ids in first-seen order.
func (c ClassCount) Keys() []string {
	out := make([]string, len(c.order))
	copy(out, c.order)
	return out
}

func (c ClassCount) Len() int { return len(c.order) }

// Sum totals all counts.
func (c ClassCount) Sum() int {
	total := 0
	for _, n := range c.counts {
		total += n
	}
	return total
}

func (c ClassCount) clone() ClassCount {
	out := ClassCount{order: c.Keys(), counts: make(map[string]int, len(c.counts))}
	for k, v := range c.counts {
		out.counts[k] = v
	}
	return out
}

// MarshalJSON writes an object whose keys follow first-seen order.
func (c ClassCount) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range c.order {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		fmt.Fprintf(&buf, ":%d", c.counts[k])
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON reads an object and keeps the document's key order.
func (c *ClassCount) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("classCount: expected object, got %v", tok)
	}
	out := ClassCount{counts: map[string]int{}}
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := keyTok.(string)
		if !ok {
			return fmt.Errorf("classCount: unexpected key %v", keyTok)
		}
		var n int
		if err := dec.Decode(&n); err != nil {
			return fmt.Errorf("classCount[%q]: %w", key, err)
		}
		if _, seen := out.counts[key]; !seen {
			out.order = append(out.order, key)
		}
		out.counts[key] = n
	}
	if _, err := dec.Token(); err != nil {
		return err
	}
	*c = out
	return nil
}

// SessionStats is the aggregate of every result folded in this session.
type SessionStats struct {
	TotalProcessed   int        `json:"totalProcessed"`
	ConfidenceSum    float64    `json:"confidenceSum"`
	ClassCount       ClassCount `json:"classCount"`
	ConfidenceLevels []float64  `json:"confidenceLevels"`
}

// Empty returns the zero aggregate with non-nil collections.
func Empty() SessionStats {
	return SessionStats{
		ClassCount:       ClassCount{counts: map[string]int{}},
		ConfidenceLevels: []float64{},
	}
}

// Clone returns a deep copy.
func (s SessionStats) Clone() SessionStats {
	levels := make([]float64, len(s.ConfidenceLevels))
	copy(levels, s.ConfidenceLevels)
	return SessionStats{
		TotalProcessed:   s.TotalProcessed,
		ConfidenceSum:    s.ConfidenceSum,
		ClassCount:       s.ClassCount.clone(),
		ConfidenceLevels: levels,
	}
}

// Consistent reports whether the three counters agree.
func (s SessionStats) Consistent() bool {
	return s.TotalProcessed == len(s.ConfidenceLevels) && s.TotalProcessed == s.ClassCount.Sum()
}

// fold applies one result. Callers validate first.
func (s *SessionStats) fold(r ClassificationResult) {
	s.TotalProcessed++
	s.ConfidenceSum += r.Confidence
	s.ClassCount.Inc(r.PredictedClass)
	s.ConfidenceLevels = append(s.ConfidenceLevels, r.Confidence/100)
}
