package items

import (
	"encoding/json"
	"errors"
	"testing"
)

func rows(t *testing.T, raw string) []json.RawMessage {
	t.Helper()
	var out []json.RawMessage
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		t.Fatalf("bad fixture: %v", err)
	}
	return out
}

func TestDecoder_Scalars(t *testing.T) {
	d, err := NewDecoder(Spec{IDPath: "$.nr_titulo"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got, err := d.Decode(rows(t, `[101, "102", " 103 ", 12345678901, 101]`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []string{"101", "102", "103", "12345678901", "101"}
	if len(got) != len(want) {
		t.Fatalf("expected %d items, got %d", len(want), len(got))
	}
	for i, w := range want {
		if got[i].ID != w {
			t.Errorf("item %d: expected %q, got %q", i, w, got[i].ID)
		}
	}
}

func TestDecoder_Objects(t *testing.T) {
	d, err := NewDecoder(Spec{
		IDPath: "$.nr_sequencia",
		Metadata: map[string]string{
			"nm_paciente":    "$.nm_paciente",
			"nr_atendimento": "$.nr_atendimento",
		},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got, err := d.Decode(rows(t, `[
		{"nr_sequencia": 555, "nm_paciente": "MARIA SILVA", "nr_atendimento": 9001},
		{"nr_sequencia": "556"}
	]`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got[0].ID != "555" || got[0].Metadata["nm_paciente"] != "MARIA SILVA" || got[0].Metadata["nr_atendimento"] != "9001" {
		t.Errorf("unexpected first item %+v", got[0])
	}
	if got[1].ID != "556" || got[1].Metadata != nil {
		t.Errorf("missing metadata should be omitted, got %+v", got[1])
	}
}

func TestDecoder_Errors(t *testing.T) {
	d, _ := NewDecoder(Spec{IDPath: "$.nr_titulo"})

	tests := map[string]string{
		"null":          `[1, null]`,
		"bool":          `[true]`,
		"empty string":  `["  "]`,
		"missing field": `[{"other": 1}]`,
	}
	for name, raw := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := d.Decode(rows(t, raw))
			var rowErr *RowError
			if !errors.As(err, &rowErr) {
				t.Fatalf("expected RowError, got %v", err)
			}
		})
	}
}

func TestNewDecoder_InvalidPath(t *testing.T) {
	if _, err := NewDecoder(Spec{IDPath: "nr_titulo"}); err == nil {
		t.Errorf("expected compile error for a path without root")
	}
}
