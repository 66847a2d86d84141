package storage

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"go.mongodb.org/mongo-driver/bson"

	"kanban-api/domain"
)

func TestProjectFilterMatch(t *testing.T) {
	owned := domain.Project{ID: "a", OwnerID: "u1"}
	shared := domain.Project{ID: "b", OwnerID: "u2", MemberIDs: []string{"u1"}}
	teamed := domain.Project{ID: "c", OwnerID: "u2", TeamID: "t1"}
	other := domain.Project{ID: "d", OwnerID: "u2", TeamID: "t2"}

	f := ProjectFilter{UserID: "u1", UserTeamIDs: []string{"t1"}}
	var got []string
	for _, p := range []domain.Project{owned, shared, teamed, other} {
		if f.Match(p) {
			got = append(got, p.ID)
		}
	}
	if !reflect.DeepEqual(got, []string{"a", "b", "c"}) {
		t.Fatalf("unexpected matches: %v", got)
	}

	team := ProjectFilter{TeamID: "t2"}
	if !team.Match(other) || team.Match(teamed) {
		t.Fatal("team filter mismatch")
	}
	if !(ProjectFilter{}).Match(other) {
		t.Fatal("empty filter must match everything")
	}
}

func TestProjectQueryMirrorsFilter(t *testing.T) {
	q := projectQuery(ProjectFilter{TeamID: "t1", UserID: "u1", UserTeamIDs: []string{"t1"}})
	want := bson.M{
		"teamId": "t1",
		"$or": bson.A{
			bson.M{"ownerId": "u1"},
			bson.M{"memberIds": "u1"},
			bson.M{"teamId": bson.M{"$in": []string{"t1"}}},
		},
	}
	if !reflect.DeepEqual(q, want) {
		t.Fatalf("unexpected query: %#v", q)
	}
	if len(projectQuery(ProjectFilter{})) != 0 {
		t.Fatal("empty filter should produce an empty query")
	}
}

func TestMemoryIsolatesStoredDocuments(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	p := domain.Project{ID: "p1", OwnerID: "u1", MemberIDs: []string{"u2"}}
	if err := m.PutProject(ctx, p); err != nil {
		t.Fatalf("put: %v", err)
	}
	p.MemberIDs[0] = "changed"

	got, _ := m.GetProject(ctx, "p1")
	if got.MemberIDs[0] != "u2" {
		t.Fatalf("stored document shares memory with caller: %v", got.MemberIDs)
	}
	got.MemberIDs[0] = "changed again"
	again, _ := m.GetProject(ctx, "p1")
	if again.MemberIDs[0] != "u2" {
		t.Fatalf("returned document shares memory with store: %v", again.MemberIDs)
	}

	if err := m.DeleteProject(ctx, "p1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := m.DeleteProject(ctx, "p1"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestMemoryHonoursCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := NewMemory().GetUser(ctx, "u1"); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context error, got %v", err)
	}
}
