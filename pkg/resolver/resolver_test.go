package resolver

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"ai-trivia-bot/pkg/store"
)

func TestResolveContainment(t *testing.T) {
	snapshot := []store.Entry{
		{Question: "what year opened", Answer: "1992"},
		{Question: "who founded the cafe", Answer: "Barnes"},
	}
	r := New(85)

	tests := []struct {
		name        string
		query       string
		wantMatched bool
		wantMethod  string
		wantAnswer  string
	}{
		{
			name:        "archive key is substring of query",
			query:       "what year opened exactly",
			wantMatched: true,
			wantMethod:  MethodContainment,
			wantAnswer:  "1992",
		},
		{
			name:        "query is substring of archive key",
			query:       "founded the cafe",
			wantMatched: true,
			wantMethod:  MethodContainment,
			wantAnswer:  "Barnes",
		},
		{
			name:        "case insensitive",
			query:       "WHAT YEAR OPENED",
			wantMatched: true,
			wantMethod:  MethodContainment,
			wantAnswer:  "1992",
		},
		{
			name:        "no substring relation falls through",
			query:       "completely unrelated topic",
			wantMatched: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := r.Resolve(tt.query, snapshot)
			if got.Matched != tt.wantMatched {
				t.Fatalf("Matched = %v, want %v", got.Matched, tt.wantMatched)
			}
			if tt.wantMatched {
				assert.Equal(t, tt.wantMethod, got.Method)
				assert.Equal(t, tt.wantAnswer, got.Answer)
			}
		})
	}
}

func TestResolveContainmentTieBreak(t *testing.T) {
	// Both keys contain the query; first in insertion order must win.
	snapshot := []store.Entry{
		{Question: "opening hours weekdays", Answer: "9-5"},
		{Question: "opening hours weekends", Answer: "10-4"},
	}
	got := New(85).Resolve("opening hours", snapshot)

	assert.True(t, got.Matched)
	assert.Equal(t, "opening hours weekdays", got.Question)
}

func TestResolveFuzzyThresholdBoundary(t *testing.T) {
	// "abcx" vs "abcd": one substitution over four runes = score 75 exactly.
	snapshot := []store.Entry{{Question: "abcd", Answer: "yes"}}

	t.Run("score equal to threshold is accepted", func(t *testing.T) {
		got := New(75).Resolve("abcx", snapshot)
		assert.True(t, got.Matched)
		assert.Equal(t, MethodFuzzy, got.Method)
		assert.InDelta(t, 75.0, got.Score, 0.001)
	})

	t.Run("score below threshold is rejected", func(t *testing.T) {
		got := New(76).Resolve("abcx", snapshot)
		assert.False(t, got.Matched)
	})
}

func TestResolveFuzzyParaphrase(t *testing.T) {
	// No substring relation, so this may only match through fuzzy scoring.
	snapshot := []store.Entry{{Question: "what year opened", Answer: "1992"}}
	got := New(60).Resolve("what year was it opened", snapshot)

	assert.True(t, got.Matched)
	assert.Equal(t, MethodFuzzy, got.Method)
	assert.Less(t, got.Score, 100.0)
}

func TestResolveNoMatchIsNotAnError(t *testing.T) {
	snapshot := []store.Entry{{Question: "what year opened", Answer: "1992"}}
	got := New(85).Resolve("how do I reset my password", snapshot)

	assert.False(t, got.Matched)
	assert.Empty(t, got.Answer)
}

func TestResolveEmptyInputs(t *testing.T) {
	r := New(85)

	assert.False(t, r.Resolve("   ", []store.Entry{{Question: "q", Answer: "a"}}).Matched)
	assert.False(t, r.Resolve("anything", nil).Matched)
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"  Hello   World  ", "hello world"},
		{"MiXeD\tCase", "mixed case"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := Normalize(tt.in); got != tt.want {
			t.Errorf("Normalize(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
