// Package expect holds small assertion helpers shared by the package tests.
package expect

import (
	"errors"
	"iter"
	"strings"
	"testing"

	"wirelens/pkg/models"
)

// NoError fails the test immediately if err is not nil.
func NoError(tb testing.TB, err error) {
	tb.Helper()
	if err != nil {
		tb.Fatalf("unexpected error: %v", err)
	}
}

// ErrorIs fails the test unless errors.Is(err, target).
func ErrorIs(tb testing.TB, err, target error) {
	tb.Helper()
	if !errors.Is(err, target) {
		tb.Fatalf("error = %v, want %v", err, target)
	}
}

// Equal fails the test unless got == want.
func Equal[T comparable](tb testing.TB, name string, got, want T) {
	tb.Helper()
	if got != want {
		tb.Fatalf("%s = %v, want %v", name, got, want)
	}
}

// StatusIs fails the test unless a result status matches want.
func StatusIs[S ~string](tb testing.TB, got, want S) {
	tb.Helper()
	if got != want {
		tb.Fatalf("status = %q, want %q", got, want)
	}
}

// ResponseEquals fails the test unless both fields of got match want.
func ResponseEquals(tb testing.TB, got, want models.TextParserResponse) {
	tb.Helper()
	if got != want {
		tb.Fatalf("got %s, want %s", got, want)
	}
}

// FirstCandidateIs fails the test unless seq yields want first.
func FirstCandidateIs(tb testing.TB, seq iter.Seq[models.TextParserResponse], want models.TextParserResponse) {
	tb.Helper()
	for got := range seq {
		ResponseEquals(tb, got, want)
		return
	}
	tb.Fatalf("no candidates, want %s", want)
}

// NoCandidates fails the test if seq yields anything.
func NoCandidates(tb testing.TB, seq iter.Seq[models.TextParserResponse]) {
	tb.Helper()
	for got := range seq {
		tb.Fatalf("unexpected candidate %s", got)
	}
}

// TextContains fails the test unless text contains every substring.
func TextContains(tb testing.TB, text string, substrs ...string) {
	tb.Helper()
	for _, s := range substrs {
		if !strings.Contains(text, s) {
			tb.Fatalf("text %q does not contain %q", text, s)
		}
	}
}
