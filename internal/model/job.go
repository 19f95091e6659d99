package model

import (
	"sort"
	"strings"
	"time"
)

// JobType identifies which automation flow processes a job
type JobType string

const (
	JobTypeBoletos        JobType = "BOLETOS"
	JobTypeRecursoProprio JobType = "RECURSO_PROPRIO"
)

// Valid reports whether t is a known job type
func (t JobType) Valid() bool {
	return t == JobTypeBoletos || t == JobTypeRecursoProprio
}

// JobStatus is the aggregate lifecycle of a job
type JobStatus string

const (
	JobRunning  JobStatus = "RUNNING"
	JobComplete JobStatus = "COMPLETE"
)

// Job is one submitted batch as recorded in the ledger
type Job struct {
	ID             string       `json:"job_id" bson:"-"`
	Type           JobType      `json:"automation_type" bson:"job_type"`
	Status         JobStatus    `json:"status" bson:"status"`
	ItemCount      int          `json:"total" bson:"item_count"`
	CompletedCount int          `json:"completed" bson:"completed_count"`
	Owner          string       `json:"owner,omitempty" bson:"owner"`
	RetryOf        string       `json:"retry_of,omitempty" bson:"retry_of,omitempty"`
	StartedAt      time.Time    `json:"started_at" bson:"started_at"`
	EndedAt        *time.Time   `json:"ended_at,omitempty" bson:"ended_at,omitempty"`
	HeartbeatAt    time.Time    `json:"heartbeat_at" bson:"heartbeat_at"`
	ClosedBy       string       `json:"closed_by,omitempty" bson:"closed_by,omitempty"` // set when a sweeper reaped the job
	Items          []WorkItem   `json:"-" bson:"items"`
	Results        []ItemResult `json:"results" bson:"results"`
}

// Counts classifies the job results into successes, blank-email warnings
// and technical failures
func (j *Job) Counts() (success, emptyEmail, technical int) {
	for _, r := range j.Results {
		switch {
		case r.Status == ItemSuccess:
			success++
		case r.Status == ItemFailure && r.Reason == ReasonEmptyEmail:
			emptyEmail++
		case r.Status == ItemFailure:
			technical++
		}
	}
	return success, emptyEmail, technical
}

// SortedResults returns a copy of the results ordered by item ID
func (j *Job) SortedResults() []ItemResult {
	out := make([]ItemResult, len(j.Results))
	copy(out, j.Results)
	sort.SliceStable(out, func(a, b int) bool {
		return lessItemID(out[a].ItemID, out[b].ItemID)
	})
	return out
}

// LastSeen is the last time the owner showed signs of life
func (j *Job) LastSeen() time.Time {
	if j.HeartbeatAt.After(j.StartedAt) {
		return j.HeartbeatAt
	}
	return j.StartedAt
}

// lessItemID orders numeric IDs numerically, ignoring leading zeros, and
// falls back to string order
func lessItemID(a, b string) bool {
	if isDigits(a) && isDigits(b) {
		ta, tb := strings.TrimLeft(a, "0"), strings.TrimLeft(b, "0")
		if len(ta) != len(tb) {
			return len(ta) < len(tb)
		}
		if ta != tb {
			return ta < tb
		}
	}
	return a < b
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}

// JobSummary represents a job in list responses
type JobSummary struct {
	JobID          string  `json:"job_id"`
	Type           JobType `json:"automation_type"`
	Status         string  `json:"status"`
	Total          int     `json:"total"`
	Completed      int     `json:"completed"`
	Succeeded      int     `json:"succeeded"`
	EmptyEmail     int     `json:"stats_email"`
	TechnicalFails int     `json:"stats_tecnico"`
	RetryOf        string  `json:"retry_of,omitempty"`
	StartedAt      string  `json:"start_time"`
	EndedAt        string  `json:"end_time,omitempty"`
}

// ToSummary converts Job to JobSummary
func (j *Job) ToSummary() JobSummary {
	success, emptyEmail, technical := j.Counts()

	var startedAt, endedAt string
	if !j.StartedAt.IsZero() {
		startedAt = j.StartedAt.Format(time.RFC3339)
	}
	if j.EndedAt != nil {
		endedAt = j.EndedAt.Format(time.RFC3339)
	}

	return JobSummary{
		JobID:          j.ID,
		Type:           j.Type,
		Status:         string(j.Status),
		Total:          j.ItemCount,
		Completed:      j.CompletedCount,
		Succeeded:      success,
		EmptyEmail:     emptyEmail,
		TechnicalFails: technical,
		RetryOf:        j.RetryOf,
		StartedAt:      startedAt,
		EndedAt:        endedAt,
	}
}

// JobFilter narrows job listings
type JobFilter struct {
	Type   JobType
	Status JobStatus
	Since  time.Time
	Limit  int
}
