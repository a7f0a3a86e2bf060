package expect

import (
	"errors"
	"fmt"
	"slices"
	"testing"

	"wirelens/pkg/models"
)

type recorder struct {
	testing.TB
	failed bool
}

func (r *recorder) Helper() {}

func (r *recorder) Fatalf(format string, args ...any) {
	r.failed = true
}

func TestHelpers(t *testing.T) {
	pair := models.TextParserResponse{FirstName: "droidconuk", SurnameOrHandle: "NOugatyNiceness"}
	errBase := errors.New("base")

	tests := []struct {
		name string
		run  func(tb testing.TB)
		fail bool
	}{
		{"no error", func(tb testing.TB) { NoError(tb, nil) }, false},
		{"error", func(tb testing.TB) { NoError(tb, errBase) }, true},
		{"wrapped error", func(tb testing.TB) { ErrorIs(tb, fmt.Errorf("op: %w", errBase), errBase) }, false},
		{"other error", func(tb testing.TB) { ErrorIs(tb, errors.New("other"), errBase) }, true},
		{"equal", func(tb testing.TB) { Equal(tb, "status", "success", "success") }, false},
		{"not equal", func(tb testing.TB) { Equal(tb, "status", "warning", "success") }, true},
		{"status", func(tb testing.TB) { StatusIs(tb, "success", "success") }, false},
		{"wrong status", func(tb testing.TB) { StatusIs(tb, "error", "success") }, true},
		{"same response", func(tb testing.TB) { ResponseEquals(tb, pair, pair) }, false},
		{"different response", func(tb testing.TB) { ResponseEquals(tb, pair, models.TextParserResponse{}) }, true},
		{"first candidate", func(tb testing.TB) { FirstCandidateIs(tb, slices.Values([]models.TextParserResponse{pair}), pair) }, false},
		{"no first candidate", func(tb testing.TB) { FirstCandidateIs(tb, slices.Values([]models.TextParserResponse(nil)), pair) }, true},
		{"no candidates", func(tb testing.TB) { NoCandidates(tb, slices.Values([]models.TextParserResponse(nil))) }, false},
		{"unexpected candidate", func(tb testing.TB) { NoCandidates(tb, slices.Values([]models.TextParserResponse{pair})) }, true},
		{"contains", func(tb testing.TB) { TextContains(tb, "Network: x\nPassword: y", "Network", "Password") }, false},
		{"missing", func(tb testing.TB) { TextContains(tb, "Network: x", "Password") }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := &recorder{TB: t}
			tt.run(r)
			if r.failed != tt.fail {
				t.Fatalf("failed = %v, want %v", r.failed, tt.fail)
			}
		})
	}
}
