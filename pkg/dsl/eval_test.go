package dsl

import (
	"reflect"
	"testing"
)

func TestCandidateFilter_Keep(t *testing.T) {
	f, err := NewCandidateFilter("score > 0.5 && id != 404")
	if err != nil {
		t.Fatalf("NewCandidateFilter() error = %v", err)
	}

	tests := []struct {
		id    int64
		score float64
		want  bool
	}{
		{id: 1, score: 0.9, want: true},
		{id: 1, score: 0.5, want: false},
		{id: 404, score: 0.9, want: false},
	}
	for _, tt := range tests {
		got, err := f.Keep(tt.id, tt.score)
		if err != nil {
			t.Fatalf("Keep(%d, %v) error = %v", tt.id, tt.score, err)
		}
		if got != tt.want {
			t.Errorf("Keep(%d, %v) = %v, want %v", tt.id, tt.score, got, tt.want)
		}
	}
}

func TestCandidateFilter_Apply(t *testing.T) {
	f, err := NewCandidateFilter("score >= 1.0")
	if err != nil {
		t.Fatalf("NewCandidateFilter() error = %v", err)
	}
	scores := map[int64]float64{
		101: 2.0,
		102: 0.5,
		103: 1.0,
	}
	if err := f.Apply(scores); err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	want := map[int64]float64{101: 2.0, 103: 1.0}
	if !reflect.DeepEqual(scores, want) {
		t.Errorf("Apply() left %v, want %v", scores, want)
	}
}

func TestNewCandidateFilter_CompileError(t *testing.T) {
	if _, err := NewCandidateFilter("score >"); err == nil {
		t.Error("NewCandidateFilter() should fail on a syntax error")
	}
	if _, err := NewCandidateFilter("unknown_var > 1"); err == nil {
		t.Error("NewCandidateFilter() should fail on an undeclared variable")
	}
}

func TestCandidateFilter_NonBool(t *testing.T) {
	f, err := NewCandidateFilter("id + 1")
	if err != nil {
		t.Fatalf("NewCandidateFilter() error = %v", err)
	}
	if _, err := f.Keep(1, 0.5); err == nil {
		t.Error("Keep() should fail when the expression is not boolean")
	}
}
