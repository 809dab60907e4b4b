package news

import "time"

// Status classifies the result of one keyword collection cycle.
type Status string

// Outcome statuses.
const (
	StatusSkipped   Status = "skipped"
	StatusCollected Status = "collected"
	StatusFailed    Status = "failed"
)

// Outcome is the typed result of a keyword collection task. Tasks always
// produce one; they never report through panics or a second error channel.
type Outcome struct {
	Keyword   string `json:"keyword"`
	KeywordID string `json:"keyword_id,omitempty"`
	Status    Status `json:"status"`
	// Fetched is the number of items the fan-out returned.
	Fetched int `json:"fetched"`
	// Count is the number of items newly persisted.
	Count  int    `json:"count"`
	Cursor int    `json:"cursor"`
	Reason string `json:"reason,omitempty"`
	Err    error  `json:"-"`
}

// Skipped reports a cycle that did nothing.
func Skipped(keyword, reason string) Outcome {
	return Outcome{Keyword: keyword, Status: StatusSkipped, Reason: reason}
}

// Collected reports a committed cycle. k is the keyword after its cursor advanced.
func Collected(k Keyword, fetched, inserted int) Outcome {
	return Outcome{
		Keyword:   k.Text,
		KeywordID: k.ID,
		Status:    StatusCollected,
		Fetched:   fetched,
		Count:     inserted,
		Cursor:    k.Cursor,
	}
}

// Failed reports a cycle that could not complete.
func Failed(keyword string, err error) Outcome {
	out := Outcome{Keyword: keyword, Status: StatusFailed, Err: err}
	if err != nil {
		out.Reason = err.Error()
	}
	return out
}

// Summary aggregates the outcomes of one CollectAll run.
type Summary struct {
	Outcomes   []Outcome `json:"outcomes"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
}

// Count returns how many outcomes carry the given status.
func (s Summary) Count(status Status) int {
	n := 0
	for _, o := range s.Outcomes {
		if o.Status == status {
			n++
		}
	}
	return n
}

// Items returns the total number of newly persisted items.
func (s Summary) Items() int {
	n := 0
	for _, o := range s.Outcomes {
		n += o.Count
	}
	return n
}

// Duration is the wall time of the run.
func (s Summary) Duration() time.Duration {
	if s.FinishedAt.Before(s.StartedAt) {
		return 0
	}
	return s.FinishedAt.Sub(s.StartedAt)
}
