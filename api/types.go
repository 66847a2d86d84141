package api

import (
	"context"

	"kanban-api/activity"
	"kanban-api/ai"
	"kanban-api/domain"
	"kanban-api/storage"
)

// Store is the data gateway the handlers use.
type Store interface {
	CreateProject(ctx context.Context, ownerID string, in storage.ProjectInput) (domain.Project, error)
	Project(ctx context.Context, id string) (domain.Project, error)
	Projects(ctx context.Context, f storage.ProjectFilter) ([]domain.Project, error)
	UpdateProject(ctx context.Context, id string, patch domain.ProjectPatch) (domain.Project, error)
	DeleteProject(ctx context.Context, id string) error

	AddColumn(ctx context.Context, projectID, title string) (domain.Column, error)
	UpdateColumn(ctx context.Context, projectID, columnID string, patch domain.ColumnPatch) (domain.Column, error)
	DeleteColumn(ctx context.Context, projectID, columnID string) error

	AddTask(ctx context.Context, projectID string, t domain.Task) (domain.Task, error)
	UpdateTask(ctx context.Context, projectID, taskID string, patch domain.TaskPatch) (domain.Task, error)
	DeleteTask(ctx context.Context, projectID, taskID string) error
	SavePlacements(ctx context.Context, projectID string, tasks []domain.Task) (domain.Project, error)
	AddComment(ctx context.Context, projectID, taskID string, c domain.Comment) (domain.Comment, error)
	Comments(ctx context.Context, projectID, taskID string) ([]domain.Comment, error)

	CreateTeam(ctx context.Context, ownerID, name, description string) (domain.Team, error)
	Team(ctx context.Context, id string) (domain.Team, error)
	Teams(ctx context.Context, userID string) ([]domain.Team, error)
	UpdateTeam(ctx context.Context, id string, patch domain.TeamPatch) (domain.Team, error)
	DeleteTeam(ctx context.Context, id string) error
	AddTeamMember(ctx context.Context, id, userID string) (domain.Team, error)
	RemoveTeamMember(ctx context.Context, id, userID string) (domain.Team, error)

	User(ctx context.Context, id string) (domain.User, error)
	SaveUser(ctx context.Context, u domain.User) (domain.User, error)
}

// Assistant runs the AI prompt flows.
type Assistant interface {
	GenerateTasks(ctx context.Context, brief string) ([]ai.TaskDraft, error)
	DraftTask(ctx context.Context, title, brief string) (ai.TaskDraft, error)
	RewriteDescription(ctx context.Context, title, text string) (ai.Rewrite, error)
	RewriteComment(ctx context.Context, title, text string) (ai.Rewrite, error)
	SuggestPriority(ctx context.Context, title, description string, dependents []string) (ai.PrioritySuggestion, error)
}

// Authenticator turns an Authorization header into the caller's identity.
type Authenticator interface {
	Authenticate(header string) (Identity, error)
}

// Deduper prevents a mutation from being applied twice.
type Deduper interface {
	// Add records the key and returns true if it was newly added.
	Add(ctx context.Context, userID, key string) (bool, error)
	// Remove deletes a previously added key, used when the mutation failed.
	Remove(ctx context.Context, userID, key string) error
}

// Dispatcher accepts activity events without blocking the request.
type Dispatcher interface {
	Dispatch(ev activity.Event)
}
