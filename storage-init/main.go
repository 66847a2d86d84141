package main

import (
	"context"
	"errors"
	"os"
	"strconv"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/data/aztables"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azqueue"
	log "github.com/sirupsen/logrus"

	"kanban-api/storage"
)

// resources lists what the API and the activity worker expect to exist.
type resources struct {
	Tables []string
	Queues []string
}

func resourcesFromEnv(getenv func(string) string) resources {
	var r resources
	for _, key := range []string{"PROJECTS_TABLE", "TEAMS_TABLE", "USERS_TABLE", "ACTIVITY_TABLE"} {
		if name := getenv(key); name != "" {
			r.Tables = append(r.Tables, name)
		}
	}
	if name := getenv("ACTIVITY_QUEUE"); name != "" {
		r.Queues = append(r.Queues, name)
	}
	return r
}

func main() {
	if dbg, err := strconv.ParseBool(os.Getenv("DEBUG")); err == nil && dbg {
		log.SetLevel(log.DebugLevel)
	}
	log.Info("storage init starting")

	connStr := os.Getenv("STORAGE_CONNECTION_STRING")
	if connStr == "" {
		log.Fatal("missing STORAGE_CONNECTION_STRING")
	}

	res := resourcesFromEnv(os.Getenv)
	ctx := context.Background()

	if err := createTables(ctx, connStr, res.Tables); err != nil {
		log.Fatalf("create tables: %v", err)
	}
	if err := createQueues(ctx, connStr, res.Queues); err != nil {
		log.Fatalf("create queues: %v", err)
	}

	log.WithFields(log.Fields{"tables": res.Tables, "queues": res.Queues}).Info("storage init complete")
}

func alreadyExists(err error, code string) bool {
	var respErr *azcore.ResponseError
	return errors.As(err, &respErr) && respErr.ErrorCode == code
}

func createTables(ctx context.Context, connStr string, names []string) error {
	svc, err := aztables.NewServiceClientFromConnectionString(connStr, storage.TablesClientOptions())
	if err != nil {
		return err
	}
	for _, name := range names {
		if _, err := svc.NewClient(name).CreateTable(ctx, nil); err != nil && !alreadyExists(err, string(aztables.TableAlreadyExists)) {
			return err
		}
		log.WithField("table", name).Debug("table ready")
	}
	return nil
}

func createQueues(ctx context.Context, connStr string, names []string) error {
	for _, name := range names {
		q, err := azqueue.NewQueueClientFromConnectionString(connStr, name, nil)
		if err != nil {
			return err
		}
		if _, err := q.Create(ctx, nil); err != nil && !alreadyExists(err, "QueueAlreadyExists") {
			return err
		}
		log.WithField("queue", name).Debug("queue ready")
	}
	return nil
}
