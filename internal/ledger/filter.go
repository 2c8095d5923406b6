package ledger

import "pipewatch/internal/policy"

// ByStatus filters records to those whose current level is in levels,
// preserving the given order. The current level is the peak for open
// records and Normal for closed ones.
func ByStatus(records []*AlertRecord, levels ...policy.Level) []*AlertRecord {
	want := make(map[policy.Level]struct{}, len(levels))
	for _, lv := range levels {
		want[lv] = struct{}{}
	}

	out := make([]*AlertRecord, 0, len(records))
	for _, rec := range records {
		if _, ok := want[rec.CurrentLevel()]; ok {
			out = append(out, rec)
		}
	}
	return out
}

// ActiveOnly filters records to those still open, preserving order
func ActiveOnly(records []*AlertRecord) []*AlertRecord {
	out := make([]*AlertRecord, 0, len(records))
	for _, rec := range records {
		if !rec.Closed() {
			out = append(out, rec)
		}
	}
	return out
}
