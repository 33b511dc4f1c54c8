package medication

import (
	"testing"
	"time"
)

func TestNewDraft(t *testing.T) {
	d := NewDraft(time.Date(2024, 6, 10, 9, 0, 0, 0, time.UTC), time.UTC)
	if len(d.Medications) != 1 || d.Medications[0] != (Medication{}) {
		t.Errorf("expected one blank medication, got %v", d.Medications)
	}
	if d.StartDate != "2024-06-10" {
		t.Errorf("expected today's start date, got %s", d.StartDate)
	}
}

func TestAddMedication_DoesNotMutate(t *testing.T) {
	in := []Medication{{Name: "A"}}
	out := AddMedication(in)
	if len(out) != 2 || out[1] != (Medication{}) {
		t.Errorf("expected blank entry appended, got %v", out)
	}
	if len(in) != 1 {
		t.Error("input was mutated")
	}
}

func TestRemoveMedication(t *testing.T) {
	single := []Medication{{Name: "A"}}
	if out := RemoveMedication(single, 0); len(out) != 1 || out[0].Name != "A" {
		t.Errorf("removing the last entry should be a no-op, got %v", out)
	}

	in := []Medication{{Name: "A"}, {Name: "B"}, {Name: "C"}}
	out := RemoveMedication(in, 1)
	if len(out) != 2 || out[0].Name != "A" || out[1].Name != "C" {
		t.Errorf("unexpected result %v", out)
	}
	if in[1].Name != "B" || len(in) != 3 {
		t.Error("input was mutated")
	}
	if out := RemoveMedication(in, 7); len(out) != 3 {
		t.Errorf("out of range index should change nothing, got %v", out)
	}
}

func TestUpdateMedication(t *testing.T) {
	in := []Medication{{Name: "A"}, {Name: "B"}}
	out, err := UpdateMedication(in, 1, "dosage", "20mg")
	if err != nil {
		t.Fatal(err)
	}
	if out[1].Dosage != "20mg" || out[1].Name != "B" {
		t.Errorf("unexpected result %v", out[1])
	}
	if in[1].Dosage != "" {
		t.Error("input was mutated")
	}

	if _, err := UpdateMedication(in, 0, "color", "red"); err == nil {
		t.Error("expected error for unknown field")
	}
	if _, err := UpdateMedication(in, 2, "name", "C"); err == nil {
		t.Error("expected error for missing index")
	}
}

func TestApplyDraftEdit(t *testing.T) {
	meds := []Medication{{Name: "A"}}
	out, err := ApplyDraftEdit(DraftEdit{Op: DraftAdd, Medications: meds})
	if err != nil || len(out) != 2 {
		t.Fatalf("add: %v %v", out, err)
	}
	out, err = ApplyDraftEdit(DraftEdit{Op: DraftUpdate, Index: 1, Field: "name", Value: "B", Medications: out})
	if err != nil || out[1].Name != "B" {
		t.Fatalf("update: %v %v", out, err)
	}
	out, err = ApplyDraftEdit(DraftEdit{Op: DraftRemove, Index: 0, Medications: out})
	if err != nil || len(out) != 1 || out[0].Name != "B" {
		t.Fatalf("remove: %v %v", out, err)
	}
}

func TestParseTags(t *testing.T) {
	got := ParseTags(" a, b ,, A,c")
	if len(got) != 3 || got[0] != "a" || got[1] != "b" || got[2] != "c" {
		t.Errorf("unexpected tags %v", got)
	}
	if got := ParseTags(""); got == nil || len(got) != 0 {
		t.Errorf("expected empty non-nil slice, got %#v", got)
	}
}
