// Package report holds the records produced by generation and evaluation
// runs and the success-rate scoring over them.
package report

import (
	"fmt"
	"math"
	"strings"
)

type OutcomeKind string

const (
	KindSuccess OutcomeKind = "success"
	KindEmpty   OutcomeKind = "empty"
	KindError   OutcomeKind = "error"
)

const (
	MarkerYes = "Yes"
	MarkerNo  = "No"
)

// Generation is one generator call. SQL is empty when generation failed.
type Generation struct {
	Question       string  `json:"question"`
	SQL            string  `json:"sql"`
	ElapsedSeconds float64 `json:"elapsed_seconds"`
}

type Outcome struct {
	SQL       string      `json:"sql"`
	Succeeded bool        `json:"succeeded"`
	Kind      OutcomeKind `json:"kind"`
	Content   string      `json:"content"`
}

// Marker is the runnable column value for the outcome.
func (o Outcome) Marker() string {
	if o.Succeeded {
		return MarkerYes
	}
	return MarkerNo + " " + o.Content
}

type Entry struct {
	Generation Generation `json:"generation"`
	Evaluation *Outcome   `json:"evaluation,omitempty"`
}

type BatchReport struct {
	Entries []Entry `json:"entries"`
}

func NewBatchReport(generations []Generation) BatchReport {
	entries := make([]Entry, len(generations))
	for i, gen := range generations {
		entries[i] = Entry{Generation: gen}
	}
	return BatchReport{Entries: entries}
}

// Score counts every entry; entries without an evaluation are failures.
func (r BatchReport) Score() Score {
	score := Score{Total: len(r.Entries)}
	for _, entry := range r.Entries {
		if entry.Evaluation != nil && entry.Evaluation.Succeeded {
			score.Succeeded++
		}
	}
	return score
}

type Score struct {
	Total     int `json:"total"`
	Succeeded int `json:"succeeded"`
}

// Rate is Succeeded/Total, or 0 for an empty batch.
func (s Score) Rate() float64 {
	if s.Total == 0 {
		return 0
	}
	return float64(s.Succeeded) / float64(s.Total)
}

func (s Score) Percent() string {
	return fmt.Sprintf("%.1f%%", s.Rate()*100)
}

func (s Score) String() string {
	return fmt.Sprintf("%d/%d (%s)", s.Succeeded, s.Total, s.Percent())
}

// ScoreMarkers scores a runnable column: only exact "Yes" counts.
func ScoreMarkers(markers []string) Score {
	score := Score{Total: len(markers)}
	for _, marker := range markers {
		if strings.TrimSpace(marker) == MarkerYes {
			score.Succeeded++
		}
	}
	return score
}

// RoundSeconds rounds to two decimals.
func RoundSeconds(seconds float64) float64 {
	return math.Round(seconds*100) / 100
}
