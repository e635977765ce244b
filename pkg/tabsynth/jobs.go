package tabsynth

// JobStatus is the lifecycle state of an asynchronous platform job, such as
// generator training or synthetic dataset generation.
type JobStatus string

const (
	StatusNew        JobStatus = "NEW"
	StatusQueued     JobStatus = "QUEUED"
	StatusInProgress JobStatus = "IN_PROGRESS"
	StatusDone       JobStatus = "DONE"
	StatusFailed     JobStatus = "FAILED"
	StatusCanceled   JobStatus = "CANCELED"
)

// Terminal reports whether the job has finished, successfully or not.
func (s JobStatus) Terminal() bool {
	switch s {
	case StatusDone, StatusFailed, StatusCanceled:
		return true
	}
	return false
}

// Progress reports how far along a job is, in job-defined steps.
type Progress struct {
	Value int `json:"value"`
	Max   int `json:"max"`
}
