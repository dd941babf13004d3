package batch

import "github.com/sells-group/blogwatch/pkg/anthropic"

// JobState is the coarse classification of one batch job used by the
// lifecycle state machine.
type JobState string

const (
	JobRunning   JobState = "running"
	JobSucceeded JobState = "succeeded"
	JobFailed    JobState = "failed"
)

// stateOf reduces a provider batch response to a lifecycle state. A batch
// that ended with any errored, canceled, or expired requests counts as
// failed: consolidation needs every request answered.
func stateOf(resp *anthropic.BatchResponse) JobState {
	if resp.ProcessingStatus != "ended" {
		return JobRunning
	}
	c := resp.RequestCounts
	if c.Errored > 0 || c.Canceled > 0 || c.Expired > 0 {
		return JobFailed
	}
	return JobSucceeded
}
