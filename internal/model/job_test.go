package model

import (
	"strings"
	"testing"
	"time"
)

func TestSortedResults(t *testing.T) {
	tests := []struct {
		name string
		ids  []string
		want string
	}{
		{"numeric", []string{"10", "9", "100", "1"}, "1,9,10,100"},
		{"leading zeros", []string{"010", "9", "0011", "2"}, "2,9,010,0011"},
		{"same value different padding", []string{"07", "7", "007"}, "007,07,7"},
		{"letters after digits", []string{"b", "10", "a", "9"}, "9,10,a,b"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			job := &Job{}
			for _, id := range tt.ids {
				job.Results = append(job.Results, ItemResult{ItemID: id})
			}

			sorted := job.SortedResults()
			got := make([]string, len(sorted))
			for i, r := range sorted {
				got[i] = r.ItemID
			}
			if strings.Join(got, ",") != tt.want {
				t.Errorf("expected %s, got %s", tt.want, strings.Join(got, ","))
			}
			if job.Results[0].ItemID != tt.ids[0] {
				t.Errorf("results were sorted in place")
			}
		})
	}
}

func TestLastSeen(t *testing.T) {
	started := time.Date(2024, 5, 10, 8, 0, 0, 0, time.UTC)

	job := &Job{StartedAt: started}
	if !job.LastSeen().Equal(started) {
		t.Errorf("expected start time without a heartbeat, got %v", job.LastSeen())
	}

	job.HeartbeatAt = started.Add(time.Hour)
	if !job.LastSeen().Equal(started.Add(time.Hour)) {
		t.Errorf("expected heartbeat time, got %v", job.LastSeen())
	}
}

func TestMissingItems(t *testing.T) {
	items := []WorkItem{{ID: "1"}, {ID: "2"}, {ID: "2"}, {ID: "3"}}
	results := []ItemResult{{ItemID: "2"}, {ItemID: "3"}}

	missing := MissingItems(items, results)
	if len(missing) != 2 || missing[0].ID != "1" || missing[1].ID != "2" {
		t.Errorf("expected items 1 and 2 missing, got %+v", missing)
	}
}
