package store

import (
	"context"

	"go.mongodb.org/mongo-driver/mongo"
)

// MongoTxRunner runs a function inside a multi-document transaction. The
// driver's WithTransaction already retries transient commit faults a bounded
// number of times, which is all the retry the checkout flow requires.
type MongoTxRunner struct {
	client *mongo.Client
}

func NewMongoTxRunner(client *mongo.Client) *MongoTxRunner {
	return &MongoTxRunner{client: client}
}

func (r *MongoTxRunner) WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	session, err := r.client.StartSession()
	if err != nil {
		return err
	}
	defer session.EndSession(ctx)

	_, err = session.WithTransaction(ctx, func(sessCtx mongo.SessionContext) (interface{}, error) {
		return nil, fn(sessCtx)
	})
	return err
}
