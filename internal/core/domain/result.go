package domain

// Outcome classifies what processing one staged provider did to the cache.
type Outcome string

const (
	// OutcomeCreated means the provider had no prior current snapshot
	OutcomeCreated Outcome = "created"
	// OutcomeUpdated means the provider changed against its current snapshot
	OutcomeUpdated Outcome = "updated"
	// OutcomeUnchanged means the staged record matched the current snapshot
	OutcomeUnchanged Outcome = "unchanged"
)

// ItemResult is the per-provider outcome within a processed batch.
type ItemResult struct {
	UKPRN   int64   `json:"ukprn"`
	Outcome Outcome `json:"outcome,omitempty"`
	Error   string  `json:"error,omitempty"`
}

// BatchResult collects per-provider outcomes for one processed batch. A
// failure on one provider never blocks the rest; failed items are recorded
// and the batch carries on.
type BatchResult struct {
	Items []ItemResult `json:"items"`
}

// Add records a successful outcome for one provider.
func (r *BatchResult) Add(ukprn int64, outcome Outcome) {
	r.Items = append(r.Items, ItemResult{UKPRN: ukprn, Outcome: outcome})
}

// AddError records a failed provider.
func (r *BatchResult) AddError(ukprn int64, err error) {
	r.Items = append(r.Items, ItemResult{UKPRN: ukprn, Error: err.Error()})
}

// Failed returns the items that ended in error.
func (r *BatchResult) Failed() []ItemResult {
	var failed []ItemResult
	for _, it := range r.Items {
		if it.Error != "" {
			failed = append(failed, it)
		}
	}
	return failed
}

// Counts returns how many items were created, updated, unchanged and failed.
func (r *BatchResult) Counts() (created, updated, unchanged, failed int) {
	for _, it := range r.Items {
		switch {
		case it.Error != "":
			failed++
		case it.Outcome == OutcomeCreated:
			created++
		case it.Outcome == OutcomeUpdated:
			updated++
		case it.Outcome == OutcomeUnchanged:
			unchanged++
		}
	}
	return created, updated, unchanged, failed
}
