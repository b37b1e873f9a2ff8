package stats

import "github.com/mwiater/escombro/internal/materials"

// MeanConfidence is the average confidence in percent, 0 when empty.
func (s SessionStats) MeanConfidence() float64 {
	if s.TotalProcessed == 0 {
		return 0
	}
	return s.ConfidenceSum / float64(s.TotalProcessed)
}

// MostCommon returns the class with the highest count. Ties go to the class
// that was seen first.
func (s SessionStats) MostCommon() (id string, count int, ok bool) {
	for _, k := range s.ClassCount.order {
		n := s.ClassCount.counts[k]
		if !ok || n > count {
			id, count, ok = k, n, true
		}
	}
	return id, count, ok
}

// ClassShare is one slice of the class distribution chart.
type ClassShare struct {
	Class materials.Class
	Count int
}

// Distribution lists every catalog class, including those never seen.
func (s SessionStats) Distribution() []ClassShare {
	classes := materials.All()
	out := make([]ClassShare, len(classes))
	for i, c := range classes {
		out[i] = ClassShare{Class: c, Count: s.ClassCount.Get(c.ID())}
	}
	return out
}

// Bucket is one bar of the confidence histogram.
type Bucket struct {
	Label string
	Upper float64
	Count int
}

var bucketBounds = []struct {
	label string
	upper float64
}{
	{"0-20%", 0.2},
	{"21-40%", 0.4},
	{"41-60%", 0.6},
	{"61-80%", 0.8},
	{"81-100%", 1.0},
}

// BucketIndex returns the bucket a normalized confidence falls into: the
// first one whose inclusive upper bound is not exceeded.
func BucketIndex(level float64) int {
	for i, b := range bucketBounds {
		if level <= b.upper {
			return i
		}
	}
	return len(bucketBounds) - 1
}

// Histogram counts confidence levels into the five fixed buckets.
func (s SessionStats) Histogram() []Bucket {
	out := make([]Bucket, len(bucketBounds))
	for i, b := range bucketBounds {
		out[i] = Bucket{Label: b.label, Upper: b.upper}
	}
	for _, level := range s.ConfidenceLevels {
		out[BucketIndex(level)].Count++
	}
	return out
}
