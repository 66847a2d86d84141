package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
	"unicode/utf16"
	"unicode/utf8"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/bytedance/sonic"

	"kanban-api/domain"
)

func TestProjectEntityEncodesNestedCollectionsAsStrings(t *testing.T) {
	created := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	p := domain.Project{
		ID:      "p1",
		Name:    "Launch",
		OwnerID: "u1",
		Columns: []domain.Column{{ID: "c1", Title: "To Do", TaskIDs: []string{"t1"}}},
		Tasks: []domain.Task{{
			ID: "t1", Title: "Ship", Priority: domain.PriorityHigh, ColumnID: "c1",
			Comments: []domain.Comment{{ID: "k1", Content: "hi", CreatedAt: created}},
		}},
		CreatedAt: created,
		UpdatedAt: created,
	}

	payload, err := encodeProject(p)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	var raw map[string]any
	if err := sonic.Unmarshal(payload, &raw); err != nil {
		t.Fatalf("decode raw: %v", err)
	}
	if raw["PartitionKey"] != "p1" || raw["RowKey"] != "p1" {
		t.Fatalf("unexpected keys: %v", raw)
	}
	if raw["CreatedAt@odata.type"] != edmDateTime {
		t.Fatalf("missing EDM type annotation: %v", raw)
	}
	tasks, ok := raw["Tasks_0"].(string)
	if !ok || !strings.Contains(tasks, `"priority":"HIGH"`) {
		t.Fatalf("tasks not stored as JSON string: %v", raw["Tasks_0"])
	}
	if raw["MemberIds"] != "[]" {
		t.Fatalf("nil members should encode as empty array, got %v", raw["MemberIds"])
	}

	got, err := decodeProject(payload)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.ID != "p1" || len(got.Tasks) != 1 || got.Tasks[0].Comments[0].Content != "hi" || !got.CreatedAt.Equal(created) {
		t.Fatalf("unexpected decoded project: %+v", got)
	}
}

func TestDecodeProjectRejectsCorruptProperty(t *testing.T) {
	payload := []byte(`{"PartitionKey":"p1","RowKey":"p1","OwnerId":"u1","MemberIds":"[]","Columns":"[","Tasks":"[]"}`)
	if _, err := decodeProject(payload); !errors.Is(err, domain.ErrInvalidDocument) {
		t.Fatalf("expected invalid document, got %v", err)
	}
}

func TestDecodeTeamFromServiceShape(t *testing.T) {
	payload := []byte(`{"odata.etag":"W/\"x\"","PartitionKey":"t1","RowKey":"t1","Timestamp":"2024-01-01T00:00:00.0000000Z",` +
		`"Name":"Core","OwnerId":"u1","MemberIds":"[\"u1\",\"u2\"]",` +
		`"CreatedAt@odata.type":"Edm.DateTime","CreatedAt":"2024-01-01T10:00:00.1234567Z"}`)
	team, err := decodeTeam(payload)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if team.ID != "t1" || !team.HasMember("u2") || team.CreatedAt.Hour() != 10 {
		t.Fatalf("unexpected team: %+v", team)
	}
}

func TestODataEscape(t *testing.T) {
	if got := odataEscape("o'brien"); got != "o''brien" {
		t.Fatalf("unexpected escape: %s", got)
	}
}

func largeProject(tasks int, description string) domain.Project {
	p := domain.Project{ID: "p1", Name: "Launch", OwnerID: "u1", Columns: []domain.Column{{ID: "c1", Title: "To Do"}}}
	for i := 0; i < tasks; i++ {
		p.Tasks = append(p.Tasks, domain.Task{
			ID:          fmt.Sprintf("t%d", i),
			Title:       fmt.Sprintf("Task %d", i),
			Description: description,
			ColumnID:    "c1",
			Order:       i,
			Priority:    domain.PriorityMedium,
		})
	}
	return p
}

func TestProjectEntitySplitsLargeTaskLists(t *testing.T) {
	// Multi-byte and astral characters must not be cut in half.
	description := strings.Repeat("é☃😀 plan the rollout ", 250)
	p := largeProject(30, description)

	payload, err := encodeProject(p)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	var raw map[string]any
	if err := sonic.Unmarshal(payload, &raw); err != nil {
		t.Fatalf("decode raw: %v", err)
	}
	parts, _ := raw["TasksParts"].(float64)
	if parts < 2 {
		t.Fatalf("expected the task list split across properties, got %v parts", raw["TasksParts"])
	}
	for k, v := range raw {
		s, ok := v.(string)
		if !ok {
			continue
		}
		if units := len(utf16.Encode([]rune(s))); units > maxPropertyUnits {
			t.Fatalf("property %s holds %d UTF-16 units", k, units)
		}
	}

	got, err := decodeProject(payload)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(got.Tasks) != len(p.Tasks) {
		t.Fatalf("expected %d tasks, got %d", len(p.Tasks), len(got.Tasks))
	}
	for i := range p.Tasks {
		if got.Tasks[i].ID != p.Tasks[i].ID || got.Tasks[i].Description != description {
			t.Fatalf("task %d did not survive the round trip: %+v", i, got.Tasks[i])
		}
	}
}

func TestEncodeProjectRejectsOversizedBoards(t *testing.T) {
	p := largeProject(120, strings.Repeat("x", 5000))
	if _, err := encodeProject(p); !errors.Is(err, domain.ErrDocumentTooLarge) {
		t.Fatalf("expected document too large, got %v", err)
	}
}

func TestDecodeProjectMissingTaskPart(t *testing.T) {
	payload := []byte(`{"PartitionKey":"p1","RowKey":"p1","OwnerId":"u1","MemberIds":"[]","Columns":"[]","TasksParts":2,"Tasks_0":"[]"}`)
	if _, err := decodeProject(payload); !errors.Is(err, domain.ErrInvalidDocument) {
		t.Fatalf("expected invalid document, got %v", err)
	}
}

func TestSplitPropertyKeepsCharactersWhole(t *testing.T) {
	s := strings.Repeat("a😀", 10)
	parts := splitProperty(s, 3)
	if strings.Join(parts, "") != s {
		t.Fatalf("parts do not reassemble: %q", parts)
	}
	for _, p := range parts {
		if !utf8.ValidString(p) || len(utf16.Encode([]rune(p))) > 3 {
			t.Fatalf("bad part %q", p)
		}
	}
}

func TestClassifyWriteError(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want error
	}{
		{"propertyTooLarge", &azcore.ResponseError{StatusCode: http.StatusBadRequest, ErrorCode: "PropertyValueTooLarge"}, domain.ErrDocumentTooLarge},
		{"badRequest", &azcore.ResponseError{StatusCode: http.StatusBadRequest, ErrorCode: "InvalidInput"}, domain.ErrWriteRejected},
		{"throttled", &azcore.ResponseError{StatusCode: http.StatusTooManyRequests}, nil},
		{"unavailable", &azcore.ResponseError{StatusCode: http.StatusServiceUnavailable}, nil},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := classifyWriteError(tc.err)
			if tc.want == nil {
				if errors.Is(got, domain.ErrDocumentTooLarge) || errors.Is(got, domain.ErrWriteRejected) {
					t.Fatalf("transient error marked permanent: %v", got)
				}
				return
			}
			if !errors.Is(got, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, got)
			}
		})
	}
}

// tablesServer answers every request with the given entity list.
func tablesServer(t *testing.T, entities ...string) *Tables {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json;odata=nometadata")
		_, _ = io.WriteString(w, `{"value":[`+strings.Join(entities, ",")+`]}`)
	}))
	t.Cleanup(srv.Close)

	conn := "DefaultEndpointsProtocol=http;AccountName=devstoreaccount1;" +
		"AccountKey=Eby8vdM02xNOcqFlqUwJPLlmEtlCDXJ1OUzFT50uSRZ6IFsuFq2UVErCz4I6tq/K1SZFPTOtr/KBHBeksoGMGw==;" +
		"TableEndpoint=" + srv.URL + "/devstoreaccount1;"
	tb, err := NewTables(conn, "projects", "teams", "users")
	if err != nil {
		t.Fatalf("new tables: %v", err)
	}
	return tb
}

func TestListProjectsSkipsUndecodableEntities(t *testing.T) {
	good := `{"PartitionKey":"p1","RowKey":"p1","Name":"Launch","OwnerId":"u1","MemberIds":"[]","Columns":"[]","Tasks":"[]"}`
	bad := `{"PartitionKey":"p2","RowKey":"p2","Name":"Broken","OwnerId":"u1","MemberIds":"[]","Columns":"[]","Tasks":"{not json"}`
	tb := tablesServer(t, good, bad)

	ps, err := NewGateway(tb).Projects(context.Background(), ProjectFilter{UserID: "u1"})
	if err != nil {
		t.Fatalf("list projects: %v", err)
	}
	if len(ps) != 1 || ps[0].ID != "p1" {
		t.Fatalf("expected only the readable project, got %+v", ps)
	}
}

func TestListTeamsSkipsUndecodableEntities(t *testing.T) {
	good := `{"PartitionKey":"t1","RowKey":"t1","Name":"Core","OwnerId":"u1","MemberIds":"[\"u1\"]"}`
	bad := `{"PartitionKey":"t2","RowKey":"t2","Name":"Broken","OwnerId":"u1","MemberIds":"[u1"}`
	tb := tablesServer(t, good, bad)

	teams, err := tb.ListTeams(context.Background(), "u1")
	if err != nil {
		t.Fatalf("list teams: %v", err)
	}
	if len(teams) != 1 || teams[0].ID != "t1" {
		t.Fatalf("expected only the readable team, got %+v", teams)
	}
}
