package model

import "time"

// ItemStatus is the lifecycle state of a single work item result
type ItemStatus string

const (
	ItemPending ItemStatus = "PENDING"
	ItemSuccess ItemStatus = "SUCCESS"
	ItemFailure ItemStatus = "FAILURE"
)

// FailureReason tags a FAILURE result with a machine-readable class
type FailureReason string

const (
	ReasonNone       FailureReason = ""
	ReasonEmptyEmail FailureReason = "EMPTY_EMAIL"
	ReasonTimeout    FailureReason = "TIMEOUT"
	ReasonError      FailureReason = "ERROR"
	ReasonCrash      FailureReason = "CRASH"
)

// WorkItem is one record submitted for processing. ID is the value typed
// into the ERP filter field (title number or authorization sequence).
type WorkItem struct {
	ID       string            `json:"id" bson:"id"`
	Metadata map[string]string `json:"metadata,omitempty" bson:"metadata,omitempty"`
}

// ItemResult is the terminal outcome of one work item
type ItemResult struct {
	// Key identifies one recording of the result so a repeated write of the
	// same result is applied once
	Key        string            `json:"-" bson:"key,omitempty"`
	ItemID     string            `json:"item_id" bson:"item_id"`
	Status     ItemStatus        `json:"status" bson:"status"`
	Detail     string            `json:"detail" bson:"detail"`
	Reason     FailureReason     `json:"reason,omitempty" bson:"reason,omitempty"`
	Attempts   int               `json:"attempts" bson:"attempts"`
	Extra      map[string]string `json:"extra,omitempty" bson:"extra,omitempty"`
	FinishedAt time.Time         `json:"finished_at" bson:"finished_at"`
}

// Retryable reports whether the result is a technical failure eligible for
// a retry-failures job
func (r ItemResult) Retryable() bool {
	return r.Status == ItemFailure && r.Reason != ReasonEmptyEmail
}

// Item rebuilds the work item this result was produced for
func (r ItemResult) Item() WorkItem {
	item := WorkItem{ID: r.ItemID}
	if len(r.Extra) > 0 {
		item.Metadata = make(map[string]string, len(r.Extra))
		for k, v := range r.Extra {
			item.Metadata[k] = v
		}
	}
	return item
}

// NewFailure builds a FAILURE result for item
func NewFailure(item WorkItem, reason FailureReason, detail string) ItemResult {
	return ItemResult{
		ItemID:     item.ID,
		Status:     ItemFailure,
		Detail:     detail,
		Reason:     reason,
		Extra:      item.Metadata,
		FinishedAt: time.Now().UTC(),
	}
}

// MissingItems returns the items that have no result yet, treating items and
// results as multisets keyed by item ID. Order follows items.
func MissingItems(items []WorkItem, results []ItemResult) []WorkItem {
	seen := make(map[string]int, len(results))
	for _, r := range results {
		seen[r.ItemID]++
	}

	var missing []WorkItem
	for _, item := range items {
		if seen[item.ID] > 0 {
			seen[item.ID]--
			continue
		}
		missing = append(missing, item)
	}
	return missing
}
