package storage

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"
	"unicode/utf16"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/Azure/azure-sdk-for-go/sdk/data/aztables"
	"github.com/bytedance/sonic"
	log "github.com/sirupsen/logrus"

	"kanban-api/domain"
)

const edmDateTime = "Edm.DateTime"

const (
	// maxPropertyUnits keeps each string property under the service's 64 KiB
	// (UTF-16) limit.
	maxPropertyUnits = 32000
	// maxTaskParts keeps a project entity under the 1 MiB entity limit.
	maxTaskParts = 15
)

// TablesClientOptions returns the retry policy shared by every table client.
func TablesClientOptions() *aztables.ClientOptions {
	return &aztables.ClientOptions{
		ClientOptions: azcore.ClientOptions{
			Retry: policy.RetryOptions{
				MaxRetries:    3,
				TryTimeout:    time.Minute * 3,
				RetryDelay:    time.Second * 1,
				MaxRetryDelay: time.Second * 15,
				StatusCodes:   []int{408, 429, 500, 502, 503, 504},
			},
		},
	}
}

// IsStatus reports whether err is an Azure response error with the given HTTP status.
func IsStatus(err error, status int) bool {
	var respErr *azcore.ResponseError
	return errors.As(err, &respErr) && respErr.StatusCode == status
}

// Tables stores each aggregate as a single Azure Tables entity keyed by its id.
// Nested collections are JSON-encoded string properties; a project's task list
// is split across Tasks_0..Tasks_n when it outgrows one property.
type Tables struct {
	projects *aztables.Client
	teams    *aztables.Client
	users    *aztables.Client
}

// NewTables creates a Tables backend from the given connection string.
func NewTables(connStr, projectsTable, teamsTable, usersTable string) (*Tables, error) {
	svc, err := aztables.NewServiceClientFromConnectionString(connStr, TablesClientOptions())
	if err != nil {
		return nil, err
	}
	return &Tables{
		projects: svc.NewClient(projectsTable),
		teams:    svc.NewClient(teamsTable),
		users:    svc.NewClient(usersTable),
	}, nil
}

type entityKeys struct {
	PartitionKey string `json:"PartitionKey"`
	RowKey       string `json:"RowKey"`
}

func keysFor(id string) entityKeys {
	return entityKeys{PartitionKey: id, RowKey: id}
}

type timestamps struct {
	CreatedAt     time.Time `json:"CreatedAt"`
	CreatedAtType string    `json:"CreatedAt@odata.type,omitempty"`
	UpdatedAt     time.Time `json:"UpdatedAt"`
	UpdatedAtType string    `json:"UpdatedAt@odata.type,omitempty"`
}

func stamp(created, updated time.Time) timestamps {
	return timestamps{CreatedAt: created.UTC(), CreatedAtType: edmDateTime, UpdatedAt: updated.UTC(), UpdatedAtType: edmDateTime}
}

type projectEntity struct {
	entityKeys
	timestamps
	Name        string `json:"Name"`
	Description string `json:"Description,omitempty"`
	TeamID      string `json:"TeamId,omitempty"`
	OwnerID     string `json:"OwnerId"`
	MemberIDs   string `json:"MemberIds"`
	Columns     string `json:"Columns"`
	// Tasks holds the whole list for documents written before it was split.
	Tasks       string `json:"Tasks,omitempty"`
	TasksParts  int    `json:"TasksParts,omitempty"`
}

type teamEntity struct {
	entityKeys
	timestamps
	Name        string `json:"Name"`
	Description string `json:"Description,omitempty"`
	OwnerID     string `json:"OwnerId"`
	MemberIDs   string `json:"MemberIds"`
}

type userEntity struct {
	entityKeys
	timestamps
	DisplayName string `json:"DisplayName"`
	Email       string `json:"Email,omitempty"`
	AvatarURL   string `json:"AvatarUrl,omitempty"`
	Title       string `json:"Title,omitempty"`
}

func encodeProject(p domain.Project) ([]byte, error) {
	members, err := sonic.MarshalString(nonNil(p.MemberIDs))
	if err != nil {
		return nil, err
	}
	cols, err := sonic.MarshalString(p.Columns)
	if err != nil {
		return nil, err
	}
	tasks, err := sonic.MarshalString(nonNilTasks(p.Tasks))
	if err != nil {
		return nil, err
	}
	parts := splitProperty(tasks, maxPropertyUnits)
	if len(parts) > maxTaskParts {
		return nil, fmt.Errorf("%w: project %s needs %d task properties", domain.ErrDocumentTooLarge, p.ID, len(parts))
	}
	base, err := sonic.Marshal(projectEntity{
		entityKeys:  keysFor(p.ID),
		timestamps:  stamp(p.CreatedAt, p.UpdatedAt),
		Name:        p.Name,
		Description: p.Description,
		TeamID:      p.TeamID,
		OwnerID:     p.OwnerID,
		MemberIDs:   members,
		Columns:     cols,
		TasksParts:  len(parts),
	})
	if err != nil {
		return nil, err
	}
	props := map[string]any{}
	if err := sonic.Unmarshal(base, &props); err != nil {
		return nil, err
	}
	for i, part := range parts {
		props[taskPartName(i)] = part
	}
	return sonic.Marshal(props)
}

func decodeProject(data []byte) (domain.Project, error) {
	var ent projectEntity
	if err := sonic.Unmarshal(data, &ent); err != nil {
		return domain.Project{}, err
	}
	p := domain.Project{
		ID:          ent.RowKey,
		Name:        ent.Name,
		Description: ent.Description,
		TeamID:      ent.TeamID,
		OwnerID:     ent.OwnerID,
		CreatedAt:   ent.CreatedAt,
		UpdatedAt:   ent.UpdatedAt,
	}
	if err := unmarshalProperty("MemberIds", ent.MemberIDs, &p.MemberIDs); err != nil {
		return domain.Project{}, err
	}
	if err := unmarshalProperty("Columns", ent.Columns, &p.Columns); err != nil {
		return domain.Project{}, err
	}
	tasks := ent.Tasks
	if ent.TasksParts > 0 {
		joined, err := joinTaskParts(data, ent.TasksParts)
		if err != nil {
			return domain.Project{}, err
		}
		tasks = joined
	}
	if err := unmarshalProperty("Tasks", tasks, &p.Tasks); err != nil {
		return domain.Project{}, err
	}
	return p, nil
}

func taskPartName(i int) string {
	return "Tasks_" + strconv.Itoa(i)
}

func joinTaskParts(data []byte, n int) (string, error) {
	var props map[string]any
	if err := sonic.Unmarshal(data, &props); err != nil {
		return "", err
	}
	var b strings.Builder
	for i := 0; i < n; i++ {
		part, ok := props[taskPartName(i)].(string)
		if !ok {
			return "", fmt.Errorf("%w: missing %s", domain.ErrInvalidDocument, taskPartName(i))
		}
		b.WriteString(part)
	}
	return b.String(), nil
}

// splitProperty cuts s into pieces of at most limit UTF-16 code units without
// splitting a character. The pieces concatenate back to s.
func splitProperty(s string, limit int) []string {
	var parts []string
	start, units := 0, 0
	for i, r := range s {
		n := utf16.RuneLen(r)
		if n < 0 {
			n = 1
		}
		if units+n > limit {
			parts = append(parts, s[start:i])
			start, units = i, 0
		}
		units += n
	}
	return append(parts, s[start:])
}

func encodeTeam(t domain.Team) ([]byte, error) {
	members, err := sonic.MarshalString(nonNil(t.MemberIDs))
	if err != nil {
		return nil, err
	}
	return sonic.Marshal(teamEntity{
		entityKeys:  keysFor(t.ID),
		timestamps:  stamp(t.CreatedAt, t.UpdatedAt),
		Name:        t.Name,
		Description: t.Description,
		OwnerID:     t.OwnerID,
		MemberIDs:   members,
	})
}

func decodeTeam(data []byte) (domain.Team, error) {
	var ent teamEntity
	if err := sonic.Unmarshal(data, &ent); err != nil {
		return domain.Team{}, err
	}
	t := domain.Team{
		ID:          ent.RowKey,
		Name:        ent.Name,
		Description: ent.Description,
		OwnerID:     ent.OwnerID,
		CreatedAt:   ent.CreatedAt,
		UpdatedAt:   ent.UpdatedAt,
	}
	if err := unmarshalProperty("MemberIds", ent.MemberIDs, &t.MemberIDs); err != nil {
		return domain.Team{}, err
	}
	return t, nil
}

func encodeUser(u domain.User) ([]byte, error) {
	return sonic.Marshal(userEntity{
		entityKeys:  keysFor(u.ID),
		timestamps:  stamp(u.CreatedAt, u.UpdatedAt),
		DisplayName: u.DisplayName,
		Email:       u.Email,
		AvatarURL:   u.AvatarURL,
		Title:       u.Title,
	})
}

func decodeUser(data []byte) (domain.User, error) {
	var ent userEntity
	if err := sonic.Unmarshal(data, &ent); err != nil {
		return domain.User{}, err
	}
	return domain.User{
		ID:          ent.RowKey,
		DisplayName: ent.DisplayName,
		Email:       ent.Email,
		AvatarURL:   ent.AvatarURL,
		Title:       ent.Title,
		CreatedAt:   ent.CreatedAt,
		UpdatedAt:   ent.UpdatedAt,
	}, nil
}

func unmarshalProperty(name, raw string, v any) error {
	if raw == "" {
		return nil
	}
	if err := sonic.UnmarshalString(raw, v); err != nil {
		return errors.Join(domain.ErrInvalidDocument, errors.New(name+": "+err.Error()))
	}
	return nil
}

func nonNilTasks(t []domain.Task) []domain.Task {
	if t == nil {
		return []domain.Task{}
	}
	return t
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func (t *Tables) get(ctx context.Context, c *aztables.Client, kind, id string) ([]byte, error) {
	resp, err := c.GetEntity(ctx, id, id, nil)
	if err != nil {
		if IsStatus(err, http.StatusNotFound) {
			return nil, domain.NotFound(kind, id)
		}
		return nil, err
	}
	return resp.Value, nil
}

func (t *Tables) upsert(ctx context.Context, c *aztables.Client, payload []byte) error {
	_, err := c.UpsertEntity(ctx, payload, &aztables.UpsertEntityOptions{UpdateMode: aztables.UpdateModeReplace})
	return classifyWriteError(err)
}

// classifyWriteError marks client errors from a write as permanent so callers
// do not retry a request the service will keep refusing.
func classifyWriteError(err error) error {
	var respErr *azcore.ResponseError
	if err == nil || !errors.As(err, &respErr) {
		return err
	}
	switch respErr.ErrorCode {
	case "PropertyValueTooLarge", "EntityTooLarge", "RequestBodyTooLarge":
		return errors.Join(domain.ErrDocumentTooLarge, err)
	}
	switch code := respErr.StatusCode; {
	case code == http.StatusRequestTimeout || code == http.StatusTooManyRequests:
		return err
	case code == http.StatusRequestEntityTooLarge:
		return errors.Join(domain.ErrDocumentTooLarge, err)
	case code >= 400 && code < 500:
		return errors.Join(domain.ErrWriteRejected, err)
	}
	return err
}

func (t *Tables) remove(ctx context.Context, c *aztables.Client, kind, id string) error {
	et := azcore.ETagAny
	_, err := c.DeleteEntity(ctx, id, id, &aztables.DeleteEntityOptions{IfMatch: &et})
	if err != nil && IsStatus(err, http.StatusNotFound) {
		return domain.NotFound(kind, id)
	}
	return err
}

func (t *Tables) list(ctx context.Context, c *aztables.Client, filter string, each func([]byte) error) error {
	opts := &aztables.ListEntitiesOptions{}
	if filter != "" {
		opts.Filter = &filter
	}
	pager := c.NewListEntitiesPager(opts)
	for pager.More() {
		resp, err := pager.NextPage(ctx)
		if err != nil {
			return err
		}
		for _, e := range resp.Entities {
			if err := each(e); err != nil {
				return err
			}
		}
	}
	return nil
}

func (t *Tables) GetProject(ctx context.Context, id string) (domain.Project, error) {
	data, err := t.get(ctx, t.projects, "project", id)
	if err != nil {
		return domain.Project{}, err
	}
	return decodeProject(data)
}

func (t *Tables) PutProject(ctx context.Context, p domain.Project) error {
	payload, err := encodeProject(p)
	if err != nil {
		return err
	}
	return t.upsert(ctx, t.projects, payload)
}

func (t *Tables) DeleteProject(ctx context.Context, id string) error {
	return t.remove(ctx, t.projects, "project", id)
}

// ListProjects pushes the team filter to the service; membership lives in a
// JSON property and is matched client-side.
func (t *Tables) ListProjects(ctx context.Context, f ProjectFilter) ([]domain.Project, error) {
	filter := ""
	if f.TeamID != "" {
		filter = "TeamId eq '" + odataEscape(f.TeamID) + "'"
	}
	out := []domain.Project{}
	err := t.list(ctx, t.projects, filter, func(data []byte) error {
		p, err := decodeProject(data)
		if err != nil {
			log.WithField("rowKey", rowKeyOf(data)).WithError(err).Error("skipping undecodable project entity")
			return nil
		}
		if f.Match(p) {
			out = append(out, p)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (t *Tables) GetTeam(ctx context.Context, id string) (domain.Team, error) {
	data, err := t.get(ctx, t.teams, "team", id)
	if err != nil {
		return domain.Team{}, err
	}
	return decodeTeam(data)
}

func (t *Tables) PutTeam(ctx context.Context, team domain.Team) error {
	payload, err := encodeTeam(team)
	if err != nil {
		return err
	}
	return t.upsert(ctx, t.teams, payload)
}

func (t *Tables) DeleteTeam(ctx context.Context, id string) error {
	return t.remove(ctx, t.teams, "team", id)
}

func (t *Tables) ListTeams(ctx context.Context, userID string) ([]domain.Team, error) {
	out := []domain.Team{}
	err := t.list(ctx, t.teams, "", func(data []byte) error {
		team, err := decodeTeam(data)
		if err != nil {
			log.WithField("rowKey", rowKeyOf(data)).WithError(err).Error("skipping undecodable team entity")
			return nil
		}
		if userID == "" || team.HasMember(userID) {
			out = append(out, team)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (t *Tables) GetUser(ctx context.Context, id string) (domain.User, error) {
	data, err := t.get(ctx, t.users, "user", id)
	if err != nil {
		return domain.User{}, err
	}
	return decodeUser(data)
}

func (t *Tables) PutUser(ctx context.Context, u domain.User) error {
	payload, err := encodeUser(u)
	if err != nil {
		return err
	}
	return t.upsert(ctx, t.users, payload)
}

func rowKeyOf(data []byte) string {
	var keys entityKeys
	_ = sonic.Unmarshal(data, &keys)
	return keys.RowKey
}

func odataEscape(s string) string {
	return strings.ReplaceAll(s, "'", "''")
}
