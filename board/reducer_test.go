package board

import (
	"fmt"
	"math/rand"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kanban-api/domain"
)

func task(id, column string, order int) domain.Task {
	return domain.Task{ID: id, Title: id, Priority: domain.PriorityNone, ColumnID: column, Order: order}
}

func testColumns() []domain.Column {
	return []domain.Column{
		{ID: "todo", Title: "To Do", Order: 0},
		{ID: "doing", Title: "In Progress", Order: 1},
		{ID: "done", Title: "Done", Order: 2},
	}
}

// layout renders a column as "A(0) B(1)" for readable assertions.
func layout(tasks []domain.Task, column string) string {
	s := New(testColumns(), tasks)
	out := ""
	for i, t := range s.TasksInColumn(column) {
		if i > 0 {
			out += " "
		}
		out += fmt.Sprintf("%s(%d)", t.ID, t.Order)
	}
	return out
}

func TestMoveWithinColumnToEnd(t *testing.T) {
	tasks := []domain.Task{task("A", "todo", 0), task("B", "todo", 1), task("C", "todo", 2)}

	out := Move(tasks, testColumns(), "A", "C")

	assert.Equal(t, "B(0) C(1) A(2)", layout(out, "todo"))
	assert.Equal(t, "A(0) B(1) C(2)", layout(tasks, "todo"), "input must not be mutated")
}

func TestMoveWithinColumnUpwards(t *testing.T) {
	tasks := []domain.Task{task("A", "todo", 0), task("B", "todo", 1), task("C", "todo", 2)}

	out := Move(tasks, testColumns(), "C", "A")

	assert.Equal(t, "C(0) A(1) B(2)", layout(out, "todo"))
}

func TestMoveAcrossColumnsOntoColumn(t *testing.T) {
	tasks := []domain.Task{task("A", "todo", 0), task("B", "todo", 1), task("C", "doing", 0)}

	out := Move(tasks, testColumns(), "A", "doing")

	assert.Equal(t, "B(0)", layout(out, "todo"))
	assert.Equal(t, "C(0) A(1)", layout(out, "doing"))
	require.NoError(t, New(testColumns(), out).Validate())
}

func TestMoveAcrossColumnsOntoTask(t *testing.T) {
	tasks := []domain.Task{
		task("A", "todo", 0), task("B", "todo", 1),
		task("C", "doing", 0), task("D", "doing", 1),
	}

	out := Move(tasks, testColumns(), "A", "C")

	assert.Equal(t, "B(0)", layout(out, "todo"))
	assert.Equal(t, "A(0) C(1) D(2)", layout(out, "doing"))
	require.NoError(t, New(testColumns(), out).Validate())
}

func TestMoveOntoEmptyColumn(t *testing.T) {
	tasks := []domain.Task{task("A", "todo", 0)}

	out := Move(tasks, testColumns(), "A", "done")

	assert.Equal(t, "", layout(out, "todo"))
	assert.Equal(t, "A(0)", layout(out, "done"))
}

func TestMoveNoOps(t *testing.T) {
	tasks := []domain.Task{task("A", "todo", 0), task("B", "todo", 1), task("C", "doing", 0)}
	snapshot := domain.CloneTasks(tasks)

	cases := map[string][2]string{
		"onto itself":          {"A", "A"},
		"unknown target":       {"A", "nope"},
		"unknown active":       {"nope", "B"},
		"own column":           {"A", "todo"},
		"sole occupant column": {"C", "doing"},
		"empty ids":            {"", ""},
		"column as active":     {"todo", "A"},
	}
	for name, c := range cases {
		t.Run(name, func(t *testing.T) {
			out := Move(tasks, testColumns(), c[0], c[1])
			if diff := cmp.Diff(snapshot, out); diff != "" {
				t.Fatalf("no-op changed tasks (-want +got):\n%s", diff)
			}
		})
	}
}

func TestMoveKeepsTiesStable(t *testing.T) {
	// Duplicate orders from a legacy document keep slice order and are densified.
	tasks := []domain.Task{task("A", "todo", 0), task("B", "todo", 0), task("C", "todo", 1)}

	out := Move(tasks, testColumns(), "C", "A")

	assert.Equal(t, "C(0) A(1) B(2)", layout(out, "todo"))
}

func TestMoveRandomSequencesPreserveInvariants(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	cols := testColumns()
	var tasks []domain.Task
	for i := 0; i < 12; i++ {
		col := cols[i%len(cols)].ID
		tasks = append(tasks, task(fmt.Sprintf("T%d", i), col, i/len(cols)))
	}
	require.NoError(t, New(cols, tasks).Validate())

	ids := make([]string, 0, len(tasks)+len(cols)+1)
	for _, tk := range tasks {
		ids = append(ids, tk.ID)
	}
	for _, c := range cols {
		ids = append(ids, c.ID)
	}
	ids = append(ids, "ghost")

	for step := 0; step < 500; step++ {
		active := tasks[rng.Intn(len(tasks))].ID
		over := ids[rng.Intn(len(ids))]
		before := domain.CloneTasks(tasks)

		tasks = Move(tasks, cols, active, over)

		require.NoError(t, New(cols, tasks).Validate(), "step %d: %s onto %s", step, active, over)
		require.Len(t, tasks, len(before))
		for i := range tasks {
			assert.Equal(t, before[i].ID, tasks[i].ID, "slice positions are stable")
		}
	}
}

func TestNormalizeRepairsOrdersAndOrphans(t *testing.T) {
	tasks := []domain.Task{
		task("A", "todo", 4),
		task("B", "todo", 9),
		task("X", "gone", 0),
		task("C", "doing", 7),
	}

	out := Normalize(tasks, testColumns())

	assert.Equal(t, "A(0) B(1) X(2)", layout(out, "todo"))
	assert.Equal(t, "C(0)", layout(out, "doing"))
	require.NoError(t, New(testColumns(), out).Validate())
	assert.Equal(t, 4, tasks[0].Order, "input must not be mutated")
}

func TestNormalizeWithoutColumns(t *testing.T) {
	tasks := []domain.Task{task("A", "todo", 3)}
	out := Normalize(tasks, nil)
	assert.Equal(t, tasks, out)
}
