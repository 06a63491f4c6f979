package models

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

const (
	JobStatusQueued     = "queued"
	JobStatusProcessing = "processing"
	JobStatusCompleted  = "completed"
	JobStatusFailed     = "failed"
)

// DefaultModel is the generator configuration used when a request omits one.
const DefaultModel = "ideogram-v3-quality"

// ErrInvalidTransition is returned when a status change is not allowed by the job lifecycle.
var ErrInvalidTransition = errors.New("invalid job status transition")

var validTransitions = map[string][]string{
	JobStatusQueued:     {JobStatusProcessing},
	JobStatusProcessing: {JobStatusCompleted, JobStatusFailed},
}

// Job tracks one generation request. The API returns its id on POST /generate;
// the client polls GET /status/{id} until status is completed or failed.
//
// QueuePosition is a read-time projection of the pending queue and is never
// stored authoritatively.
type Job struct {
	ID            uuid.UUID  `db:"id"           json:"id"`
	Prompt        string     `db:"prompt"       json:"prompt"`
	Model         string     `db:"model"        json:"model"`
	Status        string     `db:"status"       json:"status"`
	QueuePosition int        `db:"-"            json:"queuePosition,omitempty"`
	Result        *string    `db:"result"       json:"result,omitempty"`
	Error         *string    `db:"error"        json:"error,omitempty"`
	CreatedAt     time.Time  `db:"created_at"   json:"createdAt"`
	StartedAt     *time.Time `db:"started_at"   json:"startedAt,omitempty"`
	CompletedAt   *time.Time `db:"completed_at" json:"completedAt,omitempty"`
	FailedAt      *time.Time `db:"failed_at"    json:"failedAt,omitempty"`
}

// NewJob returns a queued job with a fresh id.
func NewJob(prompt, model string, now time.Time) *Job {
	if model == "" {
		model = DefaultModel
	}
	return &Job{
		ID:        uuid.New(),
		Prompt:    prompt,
		Model:     model,
		Status:    JobStatusQueued,
		CreatedAt: now.UTC(),
	}
}

// IsTerminal reports whether no further transitions can occur.
func (j *Job) IsTerminal() bool {
	return j.Status == JobStatusCompleted || j.Status == JobStatusFailed
}

// Start moves a queued job to processing.
func (j *Job) Start(now time.Time) error {
	if err := j.transition(JobStatusProcessing); err != nil {
		return err
	}
	t := now.UTC()
	j.StartedAt = &t
	j.QueuePosition = 0
	return nil
}

// Complete moves a processing job to completed with the generator's result.
func (j *Job) Complete(now time.Time, result string) error {
	if err := j.transition(JobStatusCompleted); err != nil {
		return err
	}
	t := now.UTC()
	j.CompletedAt = &t
	j.Result = &result
	return nil
}

// Fail moves a processing job to failed with a human-readable reason.
func (j *Job) Fail(now time.Time, reason string) error {
	if err := j.transition(JobStatusFailed); err != nil {
		return err
	}
	t := now.UTC()
	j.FailedAt = &t
	j.Error = &reason
	return nil
}

func (j *Job) transition(to string) error {
	for _, allowed := range validTransitions[j.Status] {
		if allowed == to {
			j.Status = to
			return nil
		}
	}
	return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, j.Status, to)
}

// Clone returns a deep copy so callers never share a record with the store.
func (j *Job) Clone() *Job {
	c := *j
	c.Result = cloneString(j.Result)
	c.Error = cloneString(j.Error)
	c.StartedAt = cloneTime(j.StartedAt)
	c.CompletedAt = cloneTime(j.CompletedAt)
	c.FailedAt = cloneTime(j.FailedAt)
	return &c
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
