// Package gather runs the crawl and the independent intelligence sources for
// one company concurrently and folds their results into a Bundle.
package gather

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/JakeFAU/webintel/internal/sources"
)

// Status is the JSON discriminator of a SourceOutcome.
type Status string

// Outcome statuses.
const (
	StatusSuccess Status = "success"
	StatusFailure Status = "failure"
)

var errUnspecified = errors.New("source failed")

// SourceOutcome is the result of one source: a payload on success, an error
// on failure. A failed outcome may still carry the partial payload the source
// produced before failing.
type SourceOutcome struct {
	Source       sources.Name
	Payload      sources.Payload
	Err          error
	UsedFallback bool
	Duration     time.Duration
}

// Success builds a successful outcome.
func Success(source sources.Name, payload sources.Payload) SourceOutcome {
	return SourceOutcome{Source: source, Payload: payload}
}

// Failure builds a failed outcome. A nil err is replaced so the outcome never
// reads as a success.
func Failure(source sources.Name, err error) SourceOutcome {
	if err == nil {
		err = errUnspecified
	}
	return SourceOutcome{Source: source, Err: err}
}

// OK reports whether the source succeeded.
func (o SourceOutcome) OK() bool {
	return o.Err == nil
}

// Status returns the outcome's discriminator.
func (o SourceOutcome) Status() Status {
	if o.OK() {
		return StatusSuccess
	}
	return StatusFailure
}

// NothingFound reports whether the source ran cleanly but found nothing.
func (o SourceOutcome) NothingFound() bool {
	return sources.NothingFound(o.Payload, o.Err)
}

type outcomeJSON struct {
	Source       sources.Name    `json:"source"`
	Status       Status          `json:"status"`
	Payload      sources.Payload `json:"payload,omitempty"`
	Error        string          `json:"error,omitempty"`
	UsedFallback bool            `json:"used_fallback"`
	DurationMS   int64           `json:"duration_ms"`
}

// MarshalJSON renders the outcome with its status and error text.
func (o SourceOutcome) MarshalJSON() ([]byte, error) {
	out := outcomeJSON{
		Source:       o.Source,
		Status:       o.Status(),
		Payload:      o.Payload,
		UsedFallback: o.UsedFallback,
		DurationMS:   o.Duration.Milliseconds(),
	}
	if o.Err != nil {
		out.Error = o.Err.Error()
	}
	return json.Marshal(out)
}
