package collection

// Outcome tags the result of processing one onboarding candidate.
// Summary counters are computed from tags, never from message text.
type Outcome string

const (
	// OutcomeCreated means a new collection was created and a scan triggered.
	OutcomeCreated Outcome = "created"
	// OutcomeUpdated means an existing collection was updated and a scan triggered.
	OutcomeUpdated Outcome = "updated"
	// OutcomeRescanned means an existing collection was force-rescanned.
	OutcomeRescanned Outcome = "rescanned"
	// OutcomeSkipped means the candidate required no work.
	OutcomeSkipped Outcome = "skipped"
	// OutcomeResumed means only missing artifact generation was enqueued.
	OutcomeResumed Outcome = "resumed"
	// OutcomeError means processing the candidate failed.
	OutcomeError Outcome = "error"
)

// CandidateResult records the outcome for one discovered candidate.
type CandidateResult struct {
	Name         string  `json:"name"`
	Path         string  `json:"path"`
	Outcome      Outcome `json:"outcome"`
	Message      string  `json:"message"`
	CollectionID string  `json:"collectionId,omitempty"`
}

// BulkResult is the aggregate outcome of one onboarding run. It is returned
// to the caller and never persisted.
type BulkResult struct {
	Results []CandidateResult `json:"results"`
	Errors  []string          `json:"errors,omitempty"`

	Created   int `json:"created"`
	Updated   int `json:"updated"`
	Rescanned int `json:"rescanned"`
	Scanned   int `json:"scanned"`
	Skipped   int `json:"skipped"`
	Resumed   int `json:"resumed"`
	Failed    int `json:"failed"`
}

// Add appends a candidate result and updates the summary counters.
func (r *BulkResult) Add(res CandidateResult) {
	r.Results = append(r.Results, res)
	switch res.Outcome {
	case OutcomeCreated:
		r.Created++
		r.Scanned++
	case OutcomeUpdated:
		r.Updated++
		r.Scanned++
	case OutcomeRescanned:
		r.Rescanned++
		r.Scanned++
	case OutcomeSkipped:
		r.Skipped++
	case OutcomeResumed:
		r.Resumed++
	case OutcomeError:
		r.Failed++
		r.Errors = append(r.Errors, res.Name+": "+res.Message)
	}
}
