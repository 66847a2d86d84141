package board

import (
	"slices"
	"sort"

	"kanban-api/domain"
)

// Move computes the task list after dragging activeID and dropping it on
// overID, which names either a column (append to its end) or another task
// (take that task's position). The input slice is never modified; when the
// gesture is a no-op the input is returned as is.
func Move(tasks []domain.Task, columns []domain.Column, activeID, overID string) []domain.Task {
	out, _ := move(tasks, columns, activeID, overID)
	return out
}

func move(tasks []domain.Task, columns []domain.Column, activeID, overID string) ([]domain.Task, bool) {
	if activeID == "" || overID == "" || activeID == overID {
		return tasks, false
	}
	ai := taskIndex(tasks, activeID)
	if ai < 0 {
		return tasks, false
	}
	if oi := taskIndex(tasks, overID); oi >= 0 {
		return moveOntoTask(tasks, ai, oi), true
	}
	if columnIndex(columns, overID) >= 0 {
		if tasks[ai].ColumnID == overID {
			return tasks, false
		}
		return moveOntoColumn(tasks, ai, overID), true
	}
	return tasks, false
}

func moveOntoTask(tasks []domain.Task, ai, oi int) []domain.Task {
	src := tasks[ai].ColumnID
	dst := tasks[oi].ColumnID
	out := domain.CloneTasks(tasks)

	if src == dst {
		seq := columnSequence(tasks, src)
		from := slices.Index(seq, ai)
		to := slices.Index(seq, oi)
		seq = slices.Delete(seq, from, from+1)
		seq = slices.Insert(seq, to, ai)
		renumber(out, seq, src)
		return out
	}

	srcSeq := slices.DeleteFunc(columnSequence(tasks, src), func(i int) bool { return i == ai })
	dstSeq := columnSequence(tasks, dst)
	at := slices.Index(dstSeq, oi)
	dstSeq = slices.Insert(dstSeq, at, ai)
	renumber(out, srcSeq, src)
	renumber(out, dstSeq, dst)
	return out
}

func moveOntoColumn(tasks []domain.Task, ai int, dst string) []domain.Task {
	src := tasks[ai].ColumnID
	out := domain.CloneTasks(tasks)

	srcSeq := slices.DeleteFunc(columnSequence(tasks, src), func(i int) bool { return i == ai })
	dstSeq := append(columnSequence(tasks, dst), ai)
	renumber(out, srcSeq, src)
	renumber(out, dstSeq, dst)
	return out
}

// Normalize renumbers every column to the dense sequence 0..n-1, keeping the
// existing relative order, and moves tasks that reference an unknown column
// to the end of the first column. It is the repair step applied to stored
// documents; without columns the tasks are returned unchanged.
func Normalize(tasks []domain.Task, columns []domain.Column) []domain.Task {
	out := domain.CloneTasks(tasks)
	if len(columns) == 0 || len(tasks) == 0 {
		return out
	}
	sorted := slices.Clone(columns)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Order < sorted[j].Order })

	var orphans []int
	for i := range tasks {
		if columnIndex(columns, tasks[i].ColumnID) < 0 {
			orphans = append(orphans, i)
		}
	}
	sort.SliceStable(orphans, func(i, j int) bool { return tasks[orphans[i]].Order < tasks[orphans[j]].Order })

	for ci, c := range sorted {
		seq := columnSequence(tasks, c.ID)
		if ci == 0 {
			seq = append(seq, orphans...)
		}
		renumber(out, seq, c.ID)
	}
	return out
}

// columnSequence returns the indexes of the tasks in columnID sorted by order,
// ties broken by slice position.
func columnSequence(tasks []domain.Task, columnID string) []int {
	var seq []int
	for i := range tasks {
		if tasks[i].ColumnID == columnID {
			seq = append(seq, i)
		}
	}
	sort.SliceStable(seq, func(i, j int) bool { return tasks[seq[i]].Order < tasks[seq[j]].Order })
	return seq
}

func renumber(out []domain.Task, seq []int, columnID string) {
	for pos, i := range seq {
		out[i].ColumnID = columnID
		out[i].Order = pos
	}
}

func taskIndex(tasks []domain.Task, id string) int {
	for i := range tasks {
		if tasks[i].ID == id {
			return i
		}
	}
	return -1
}

func columnIndex(columns []domain.Column, id string) int {
	for i := range columns {
		if columns[i].ID == id {
			return i
		}
	}
	return -1
}
