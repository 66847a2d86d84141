package domain

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/bytedance/sonic"
)

func TestTaskMarshalIncludesZeroOrder(t *testing.T) {
	task := Task{ID: "t1", Title: "Title", ColumnID: "todo", Order: 0, Priority: PriorityNone}

	payload, err := sonic.Marshal(task)
	if err != nil {
		t.Fatalf("marshal task: %v", err)
	}

	if !strings.Contains(string(payload), "\"order\":0") {
		t.Fatalf("expected order field to be present, got %s", payload)
	}
	if !strings.Contains(string(payload), "\"columnId\":\"todo\"") {
		t.Fatalf("expected columnId field to be present, got %s", payload)
	}
}

func TestParsePriority(t *testing.T) {
	cases := map[string]Priority{
		"high":    PriorityHigh,
		" Medium": PriorityMedium,
		"LOW":     PriorityLow,
		"none":    PriorityNone,
	}
	for in, want := range cases {
		got, ok := ParsePriority(in)
		if !ok || got != want {
			t.Fatalf("ParsePriority(%q) = %q, %v; want %q", in, got, ok, want)
		}
	}
	if _, ok := ParsePriority("urgent"); ok {
		t.Fatal("expected unknown priority to be rejected")
	}
	if Priority("high").Valid() {
		t.Fatal("lower-case priority must not be stored as valid")
	}
}

func TestTaskPatchApply(t *testing.T) {
	due := time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC)
	task := Task{ID: "t1", Title: "Old", Priority: PriorityLow, ColumnID: "c1", Order: 3, DueDate: &due}

	title := "  New title  "
	prio := PriorityHigh
	tags := []string{"backend"}
	patch := TaskPatch{Title: &title, Priority: &prio, Tags: &tags, ClearDueDate: true}
	if patch.Empty() {
		t.Fatal("patch with fields reported empty")
	}
	patch.Apply(&task)

	if task.Title != "New title" {
		t.Fatalf("unexpected title %q", task.Title)
	}
	if task.Priority != PriorityHigh {
		t.Fatalf("unexpected priority %q", task.Priority)
	}
	if task.DueDate != nil {
		t.Fatalf("expected due date to be cleared, got %v", task.DueDate)
	}
	if task.ColumnID != "c1" || task.Order != 3 {
		t.Fatalf("patch must not move the task, got column=%s order=%d", task.ColumnID, task.Order)
	}
	tags[0] = "mutated"
	if task.Tags[0] != "backend" {
		t.Fatal("patch must copy slices")
	}
	if !(TaskPatch{}).Empty() {
		t.Fatal("zero patch should be empty")
	}
}

func TestTaskCloneIsDeep(t *testing.T) {
	due := time.Now()
	orig := Task{ID: "t1", Tags: []string{"a"}, Comments: []Comment{{ID: "c1"}}, DueDate: &due}
	cp := orig.Clone()
	cp.Tags[0] = "b"
	cp.Comments[0].ID = "c2"
	*cp.DueDate = due.Add(time.Hour)
	if orig.Tags[0] != "a" || orig.Comments[0].ID != "c1" || !orig.DueDate.Equal(due) {
		t.Fatalf("clone shares memory with original: %+v", orig)
	}
}

func TestValidateTask(t *testing.T) {
	ok := Task{Title: "Write docs", Priority: PriorityMedium}
	if err := ValidateTask(ok); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	cases := map[string]Task{
		"title":       {Title: "   ", Priority: PriorityNone},
		"description": {Title: "x", Priority: PriorityNone, Description: strings.Repeat("d", DescriptionMax+1)},
		"priority":    {Title: "x", Priority: "URGENT"},
		"tags":        {Title: "x", Priority: PriorityNone, Tags: []string{""}},
	}
	for field, task := range cases {
		err := ValidateTask(task)
		var ve *ValidationError
		if !errors.As(err, &ve) {
			t.Fatalf("%s: expected ValidationError, got %v", field, err)
		}
		if ve.Field != field {
			t.Fatalf("expected field %q, got %q", field, ve.Field)
		}
	}
}

func TestValidateNames(t *testing.T) {
	if err := ValidateProjectName("ab"); err == nil {
		t.Fatal("expected short project name to fail")
	}
	if err := ValidateProjectName("Roadmap"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := ValidateTeamName(strings.Repeat("n", TeamNameMax+1)); err == nil {
		t.Fatal("expected long team name to fail")
	}
	if err := ValidateComment(""); err == nil {
		t.Fatal("expected empty comment to fail")
	}
}

func TestErrorTaxonomy(t *testing.T) {
	nf := NotFound("project", "p1")
	if !errors.Is(nf, ErrNotFound) {
		t.Fatal("NotFoundError should match ErrNotFound")
	}
	if got := nf.Error(); got != "project p1 not found" {
		t.Fatalf("unexpected message %q", got)
	}

	wrapped := Transport("get project", nf)
	if wrapped != nf {
		t.Fatal("Transport must not rewrap taxonomy errors")
	}

	base := errors.New("connection reset")
	te := Transport("put project", base)
	var transportErr *TransportError
	if !errors.As(te, &transportErr) || !errors.Is(te, base) {
		t.Fatalf("expected transport error wrapping base, got %v", te)
	}
	if Transport("noop", nil) != nil {
		t.Fatal("nil error must stay nil")
	}
}
