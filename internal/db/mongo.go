package db

import (
	"context"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

type NewMongoParams struct {
	URI            string
	DBName         string
	ConnectTimeout time.Duration
}

// NewMongoDatabase connects to mongo and returns the database handle
// together with a disconnect function
func NewMongoDatabase(ctx context.Context, params NewMongoParams) (*mongo.Database, func(context.Context) error, error) {
	if params.ConnectTimeout <= 0 {
		params.ConnectTimeout = 10 * time.Second
	}

	connectCtx, cancel := context.WithTimeout(ctx, params.ConnectTimeout)
	defer cancel()

	client, err := mongo.Connect(connectCtx, options.Client().ApplyURI(params.URI))
	if err != nil {
		return nil, nil, fmt.Errorf("mongo connect: %w", err)
	}

	if err := client.Ping(connectCtx, readpref.Primary()); err != nil {
		log.Warnf("failed to ping mongo: %s", err)
	}

	return client.Database(params.DBName), client.Disconnect, nil
}
