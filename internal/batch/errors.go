package batch

import "fmt"

// BatchJobError reports a provider-side job failure, tagged with the job
// and its last observed state.
type BatchJobError struct {
	Competitor string
	JobID      string
	State      JobState
	Failed     int
	Total      int
	Err        error
}

func (e *BatchJobError) Error() string {
	if e.Total > 0 {
		return fmt.Sprintf("batch: %s: %d/%d jobs failed (last: %s state %s)",
			e.Competitor, e.Failed, e.Total, e.JobID, e.State)
	}
	return fmt.Sprintf("batch: %s: job %s state %s: %v", e.Competitor, e.JobID, e.State, e.Err)
}

func (e *BatchJobError) Unwrap() error { return e.Err }
