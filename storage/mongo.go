package storage

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"kanban-api/domain"
)

// Mongo stores aggregates as native documents in three collections.
type Mongo struct {
	client   *mongo.Client
	projects *mongo.Collection
	teams    *mongo.Collection
	users    *mongo.Collection
}

// NewMongo connects to uri and uses the given database.
func NewMongo(ctx context.Context, uri, database string) (*Mongo, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, err
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, err
	}
	db := client.Database(database)
	return &Mongo{
		client:   client,
		projects: db.Collection("projects"),
		teams:    db.Collection("teams"),
		users:    db.Collection("users"),
	}, nil
}

// Close disconnects the underlying client.
func (m *Mongo) Close(ctx context.Context) error {
	return m.client.Disconnect(ctx)
}

func findOne[T any](ctx context.Context, c *mongo.Collection, kind, id string) (T, error) {
	var out T
	err := c.FindOne(ctx, bson.M{"_id": id}).Decode(&out)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return out, domain.NotFound(kind, id)
	}
	return out, err
}

func replaceOne(ctx context.Context, c *mongo.Collection, id string, doc any) error {
	_, err := c.ReplaceOne(ctx, bson.M{"_id": id}, doc, options.Replace().SetUpsert(true))
	return err
}

func deleteOne(ctx context.Context, c *mongo.Collection, kind, id string) error {
	res, err := c.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return domain.NotFound(kind, id)
	}
	return nil
}

func findAll[T any](ctx context.Context, c *mongo.Collection, filter bson.M) ([]T, error) {
	cur, err := c.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}}))
	if err != nil {
		return nil, err
	}
	out := []T{}
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (m *Mongo) GetProject(ctx context.Context, id string) (domain.Project, error) {
	return findOne[domain.Project](ctx, m.projects, "project", id)
}

func (m *Mongo) PutProject(ctx context.Context, p domain.Project) error {
	return replaceOne(ctx, m.projects, p.ID, p)
}

func (m *Mongo) DeleteProject(ctx context.Context, id string) error {
	return deleteOne(ctx, m.projects, "project", id)
}

func (m *Mongo) ListProjects(ctx context.Context, f ProjectFilter) ([]domain.Project, error) {
	return findAll[domain.Project](ctx, m.projects, projectQuery(f))
}

// projectQuery mirrors ProjectFilter.Match as a server-side query.
func projectQuery(f ProjectFilter) bson.M {
	q := bson.M{}
	if f.TeamID != "" {
		q["teamId"] = f.TeamID
	}
	if f.UserID != "" {
		or := bson.A{
			bson.M{"ownerId": f.UserID},
			bson.M{"memberIds": f.UserID},
		}
		if len(f.UserTeamIDs) > 0 {
			or = append(or, bson.M{"teamId": bson.M{"$in": f.UserTeamIDs}})
		}
		q["$or"] = or
	}
	return q
}

func (m *Mongo) GetTeam(ctx context.Context, id string) (domain.Team, error) {
	return findOne[domain.Team](ctx, m.teams, "team", id)
}

func (m *Mongo) PutTeam(ctx context.Context, t domain.Team) error {
	return replaceOne(ctx, m.teams, t.ID, t)
}

func (m *Mongo) DeleteTeam(ctx context.Context, id string) error {
	return deleteOne(ctx, m.teams, "team", id)
}

func (m *Mongo) ListTeams(ctx context.Context, userID string) ([]domain.Team, error) {
	filter := bson.M{}
	if userID != "" {
		filter["$or"] = bson.A{bson.M{"ownerId": userID}, bson.M{"memberIds": userID}}
	}
	return findAll[domain.Team](ctx, m.teams, filter)
}

func (m *Mongo) GetUser(ctx context.Context, id string) (domain.User, error) {
	return findOne[domain.User](ctx, m.users, "user", id)
}

func (m *Mongo) PutUser(ctx context.Context, u domain.User) error {
	return replaceOne(ctx, m.users, u.ID, u)
}
