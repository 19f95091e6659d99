package webhook

import (
	"fmt"
	"time"

	"github.com/dandantas/tasyrunner/internal/model"
)

// SummaryPayload is the body posted when a job finishes
type SummaryPayload struct {
	Text     string         `json:"text"`
	Metadata map[string]any `json:"metadata"`
	Details  map[string]any `json:"details"`
}

// FormatSummaryPayload builds a chat-friendly summary of job
func FormatSummaryPayload(job *model.Job) SummaryPayload {
	success, emptyEmail, technical := job.Counts()

	icon := "✅"
	if technical > 0 {
		icon = "⚠️"
	}
	text := fmt.Sprintf("%s %s job %s finished: %d/%d succeeded, %d without e-mail, %d technical failures",
		icon, job.Type, job.ID, success, job.ItemCount, emptyEmail, technical)

	var duration int64
	if job.EndedAt != nil {
		duration = job.EndedAt.Sub(job.StartedAt).Milliseconds()
	}

	return SummaryPayload{
		Text: text,
		Metadata: map[string]any{
			"service":         "tasyrunner",
			"job_id":          job.ID,
			"automation_type": job.Type,
			"timestamp":       time.Now().UTC().Format(time.RFC3339),
			"severity":        severity(technical),
		},
		Details: map[string]any{
			"total":         job.ItemCount,
			"completed":     job.CompletedCount,
			"succeeded":     success,
			"stats_email":   emptyEmail,
			"stats_tecnico": technical,
			"retry_of":      job.RetryOf,
			"duration_ms":   duration,
		},
	}
}

func severity(technical int) string {
	if technical > 0 {
		return "warning"
	}
	return "info"
}
