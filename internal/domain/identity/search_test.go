package identity

import (
	"testing"
	"time"

	"github.com/google/uuid"
)

func testPatients() []*Patient {
	return []*Patient{
		{ID: uuid.MustParse("11111111-aaaa-4aaa-8aaa-000000000001"), FirstName: "John", LastName: "Doe", Email: "john.doe@email.com"},
		{ID: uuid.MustParse("22222222-bbbb-4bbb-8bbb-000000000002"), FirstName: "Jane", LastName: "Smith", Email: "jane.smith@email.com"},
		{ID: uuid.MustParse("33333333-cccc-4ccc-8ccc-000000000003"), FirstName: "Mike", LastName: "Johnson", Email: "mike.j@email.com"},
	}
}

func TestFilterPatients_BlankQuery(t *testing.T) {
	for _, q := range []string{"", "   ", "\t\n"} {
		if got := FilterPatients(testPatients(), q); len(got) != 0 {
			t.Errorf("query %q: expected no results, got %d", q, len(got))
		}
	}
}

func TestFilterPatients_MatchesNameEmailAndID(t *testing.T) {
	tests := []struct {
		query string
		want  []string
	}{
		{"john", []string{"John", "Mike"}},
		{"  SMITH ", []string{"Jane"}},
		{"jane.smith@", []string{"Jane"}},
		{"ccc-4ccc", []string{"Mike"}},
		{"john doe", []string{"John"}},
		{"nobody", nil},
	}
	for _, tt := range tests {
		got := FilterPatients(testPatients(), tt.query)
		if len(got) != len(tt.want) {
			t.Errorf("query %q: expected %d results, got %d", tt.query, len(tt.want), len(got))
			continue
		}
		for i, p := range got {
			if p.FirstName != tt.want[i] {
				t.Errorf("query %q: result %d expected %s, got %s", tt.query, i, tt.want[i], p.FirstName)
			}
		}
	}
}

func TestFilterPatients_DoesNotMutateInput(t *testing.T) {
	in := testPatients()
	FilterPatients(in, "jane")
	if len(in) != 3 || in[0].FirstName != "John" {
		t.Error("input slice was modified")
	}
}

func TestAge(t *testing.T) {
	now := time.Date(2024, 6, 15, 0, 0, 0, 0, time.UTC)
	tests := []struct {
		dob  time.Time
		want int
	}{
		{time.Date(1990, 6, 15, 0, 0, 0, 0, time.UTC), 34},
		{time.Date(1990, 6, 16, 0, 0, 0, 0, time.UTC), 33},
		{time.Date(1990, 1, 1, 0, 0, 0, 0, time.UTC), 34},
		{time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC), 0},
	}
	for _, tt := range tests {
		got := Age(&tt.dob, now)
		if got == nil || *got != tt.want {
			t.Errorf("Age(%s) = %v, want %d", tt.dob.Format("2006-01-02"), got, tt.want)
		}
	}
	if Age(nil, now) != nil {
		t.Error("expected nil age for unknown date of birth")
	}
}

func TestSplitName(t *testing.T) {
	tests := []struct{ in, first, last string }{
		{"Jane Q Public", "Jane", "Q Public"},
		{"Cher", "Cher", ""},
		{"  ", "", ""},
	}
	for _, tt := range tests {
		first, last := splitName(tt.in)
		if first != tt.first || last != tt.last {
			t.Errorf("splitName(%q) = %q,%q", tt.in, first, last)
		}
	}
}
