// Package models defines the data structures exchanged with the classifier
// and published as events.
package models

import "time"

// Classification is a single label score from the sound classifier.
type Classification struct {
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
}

// ClassificationResult is one classifier output batch.
type ClassificationResult struct {
	Timestamp       time.Time        `json:"timestamp"`
	Classifications []Classification `json:"classifications"`
}

// Find returns the classification for label, if present.
func (r ClassificationResult) Find(label string) (Classification, bool) {
	for _, c := range r.Classifications {
		if c.Label == label {
			return c, true
		}
	}
	return Classification{}, false
}
