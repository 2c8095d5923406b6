package ledger_test

import (
	"testing"
	"time"

	"pipewatch/internal/ledger"
	"pipewatch/internal/policy"
)

func filterFixture() []*ledger.AlertRecord {
	closedAt := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)
	return []*ledger.AlertRecord{
		{ID: "a", PeakLevel: policy.Warning},
		{ID: "b", PeakLevel: policy.Critical},
		{ID: "c", PeakLevel: policy.Critical, ClosedAt: &closedAt},
		{ID: "d", PeakLevel: policy.Warning},
	}
}

func ids(records []*ledger.AlertRecord) []string {
	out := make([]string, 0, len(records))
	for _, r := range records {
		out = append(out, r.ID)
	}
	return out
}

func TestByStatus(t *testing.T) {
	records := filterFixture()

	tests := []struct {
		name   string
		levels []policy.Level
		want   []string
	}{
		{"warnings only", []policy.Level{policy.Warning}, []string{"a", "d"}},
		{"criticals only", []policy.Level{policy.Critical}, []string{"b"}},
		{"closed records surface as normal", []policy.Level{policy.Normal}, []string{"c"}},
		{"warning or critical", []policy.Level{policy.Warning, policy.Critical}, []string{"a", "b", "d"}},
		{"no levels", nil, []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ids(ledger.ByStatus(records, tt.levels...))
			if len(got) != len(tt.want) {
				t.Fatalf("ByStatus() = %v, want %v", got, tt.want)
			}
			for i := range tt.want {
				if got[i] != tt.want[i] {
					t.Errorf("ByStatus()[%d] = %s, want %s", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestActiveOnly(t *testing.T) {
	got := ids(ledger.ActiveOnly(filterFixture()))
	want := []string{"a", "b", "d"}
	if len(got) != len(want) {
		t.Fatalf("ActiveOnly() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("ActiveOnly()[%d] = %s, want %s", i, got[i], want[i])
		}
	}
}
