package activity

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/data/aztables"
	"github.com/bytedance/sonic"

	"kanban-api/storage"
)

// TableStore persists feeds in Azure Tables: one partition per project, row
// keys ordered newest first.
type TableStore struct {
	client *aztables.Client
}

// NewTableStore creates a store for the given table.
func NewTableStore(connStr, table string) (*TableStore, error) {
	svc, err := aztables.NewServiceClientFromConnectionString(connStr, storage.TablesClientOptions())
	if err != nil {
		return nil, err
	}
	return &TableStore{client: svc.NewClient(table)}, nil
}

type eventEntity struct {
	PartitionKey string    `json:"PartitionKey"`
	RowKey       string    `json:"RowKey"`
	EventID      string    `json:"EventId"`
	ActorID      string    `json:"ActorId"`
	Type         string    `json:"Type"`
	EntityID     string    `json:"EntityId,omitempty"`
	Summary      string    `json:"Summary"`
	Time         time.Time `json:"Time"`
	TimeType     string    `json:"Time@odata.type"`
}

// rowKey sorts lexically in reverse chronological order; the id suffix keeps
// events from the same instant distinct.
func rowKey(ev Event) string {
	return fmt.Sprintf("%019d_%s", math.MaxInt64-ev.Time.UnixNano(), ev.ID)
}

func (s *TableStore) Record(ctx context.Context, ev Event) error {
	payload, err := sonic.Marshal(eventEntity{
		PartitionKey: ev.ProjectID,
		RowKey:       rowKey(ev),
		EventID:      ev.ID,
		ActorID:      ev.ActorID,
		Type:         ev.Type,
		EntityID:     ev.EntityID,
		Summary:      ev.Summary,
		Time:         ev.Time.UTC(),
		TimeType:     "Edm.DateTime",
	})
	if err != nil {
		return err
	}
	_, err = s.client.UpsertEntity(ctx, payload, nil)
	return err
}

func (s *TableStore) List(ctx context.Context, projectID string, limit int) ([]Event, error) {
	limit = ClampLimit(limit)
	filter := "PartitionKey eq '" + strings.ReplaceAll(projectID, "'", "''") + "'"
	top := int32(limit)
	pager := s.client.NewListEntitiesPager(&aztables.ListEntitiesOptions{Filter: &filter, Top: &top})
	out := []Event{}
	for pager.More() && len(out) < limit {
		resp, err := pager.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		for _, raw := range resp.Entities {
			var ent eventEntity
			if err := sonic.Unmarshal(raw, &ent); err != nil {
				return nil, err
			}
			out = append(out, Event{
				ID:        ent.EventID,
				ProjectID: ent.PartitionKey,
				ActorID:   ent.ActorID,
				Type:      ent.Type,
				EntityID:  ent.EntityID,
				Summary:   ent.Summary,
				Time:      ent.Time,
			})
			if len(out) == limit {
				break
			}
		}
	}
	return out, nil
}
