package rotation

import (
	"time"

	"github.com/google/uuid"
)

// Outcome is how processing one secret ended.
type Outcome string

const (
	OutcomeRefreshed Outcome = "refreshed"
	OutcomeArmed     Outcome = "armed"
	OutcomeUnmanaged Outcome = "unmanaged"
	OutcomeSkipped   Outcome = "skipped"
	OutcomeFailed    Outcome = "failed"
)

// Result is the per-secret outcome of a check or refresh.
type Result struct {
	SecretID     string     `json:"secretId" yaml:"secretId"`
	Action       Action     `json:"action,omitempty" yaml:"action,omitempty"`
	Outcome      Outcome    `json:"outcome" yaml:"outcome"`
	NextRotation *time.Time `json:"nextRotationDate,omitempty" yaml:"nextRotationDate,omitempty"`
	Armed        bool       `json:"armed" yaml:"armed"`
	EmailSent    bool       `json:"emailSent" yaml:"emailSent"`
	Message      string     `json:"message,omitempty" yaml:"message,omitempty"`
	Error        string     `json:"error,omitempty" yaml:"error,omitempty"`

	// Err is the underlying failure; Error carries its text for serialization.
	Err error `json:"-" yaml:"-"`
}

func (r *Result) fail(err error) {
	r.Outcome = OutcomeFailed
	r.Err = err
	if err != nil {
		r.Error = err.Error()
	}
}

// Report collects the results of one invocation.
type Report struct {
	RunID      string    `json:"runId" yaml:"runId"`
	StartedAt  time.Time `json:"startedAt" yaml:"startedAt"`
	FinishedAt time.Time `json:"finishedAt" yaml:"finishedAt"`
	Results    []Result  `json:"results" yaml:"results"`
}

// NewReport starts a report with a fresh run ID.
func NewReport(started time.Time) *Report {
	return &Report{
		RunID:     uuid.NewString(),
		StartedAt: started,
	}
}

// Add appends a result.
func (r *Report) Add(res Result) {
	r.Results = append(r.Results, res)
}

// Failed returns the results that ended in failure.
func (r *Report) Failed() []Result {
	var out []Result
	for _, res := range r.Results {
		if res.Outcome == OutcomeFailed {
			out = append(out, res)
		}
	}
	return out
}

// Counts tallies results by outcome.
func (r *Report) Counts() map[Outcome]int {
	counts := make(map[Outcome]int)
	for _, res := range r.Results {
		counts[res.Outcome]++
	}
	return counts
}
