package storage

import (
	"context"
	"errors"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/data/aztables"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azqueue"
	log "github.com/sirupsen/logrus"
)

const queueAlreadyExists = "QueueAlreadyExists"

// Provision creates the read-model tables and the queues. Existing ones are
// left untouched; empty names are skipped.
func Provision(ctx context.Context, connStr string, tables, queues []string) error {
	if err := createTables(ctx, connStr, tables); err != nil {
		return err
	}
	return createQueues(ctx, connStr, queues)
}

func alreadyExists(err error, code string) bool {
	var respErr *azcore.ResponseError
	return errors.As(err, &respErr) && respErr.ErrorCode == code
}

func createTables(ctx context.Context, connStr string, names []string) error {
	svc, err := aztables.NewServiceClientFromConnectionString(connStr, tablesClientOptions())
	if err != nil {
		return err
	}
	for _, name := range names {
		if name == "" {
			continue
		}
		if _, err := svc.NewClient(name).CreateTable(ctx, nil); err != nil {
			if !alreadyExists(err, string(aztables.TableAlreadyExists)) {
				return err
			}
			log.WithField("table", name).Debug("table already exists")
			continue
		}
		log.WithField("table", name).Info("table created")
	}
	return nil
}

func createQueues(ctx context.Context, connStr string, names []string) error {
	for _, name := range names {
		if name == "" {
			continue
		}
		q, err := azqueue.NewQueueClientFromConnectionString(connStr, name, queueClientOptions())
		if err != nil {
			return err
		}
		if _, err := q.Create(ctx, nil); err != nil {
			if !alreadyExists(err, queueAlreadyExists) {
				return err
			}
			log.WithField("queue", name).Debug("queue already exists")
			continue
		}
		log.WithField("queue", name).Info("queue created")
	}
	return nil
}
