package session

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoRepository persists session records in the collab_sessions
// collection. The record layout matches the Session struct exactly and is
// the system of record surviving process restarts.
type MongoRepository struct {
	col *mongo.Collection
}

func NewMongoRepository(col *mongo.Collection) *MongoRepository {
	// lookups by document happen on every create; keep them indexed
	idx := mongo.IndexModel{Keys: bson.D{{Key: "documentId", Value: 1}, {Key: "status", Value: 1}}}
	_, _ = col.Indexes().CreateOne(context.Background(), idx)
	return &MongoRepository{col: col}
}

func (r *MongoRepository) Create(ctx context.Context, s *Session) error {
	if _, err := r.col.InsertOne(ctx, s); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrAlreadyExists
		}
		return fmt.Errorf("insert session: %w", err)
	}
	return nil
}

func (r *MongoRepository) Get(ctx context.Context, id string) (*Session, error) {
	var s Session
	if err := r.col.FindOne(ctx, bson.M{"_id": id}).Decode(&s); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, nil
		}
		return nil, err
	}
	return &s, nil
}

func (r *MongoRepository) GetActiveByDocument(ctx context.Context, documentID string) (*Session, error) {
	var s Session
	filter := bson.M{"documentId": documentID, "status": StatusActive}
	if err := r.col.FindOne(ctx, filter).Decode(&s); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, nil
		}
		return nil, err
	}
	return &s, nil
}

func (r *MongoRepository) Update(ctx context.Context, s *Session) error {
	opts := options.Replace().SetUpsert(false)
	res, err := r.col.ReplaceOne(ctx, bson.M{"_id": s.ID}, s, opts)
	if err != nil {
		return fmt.Errorf("update session: %w", err)
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("update session %s: not found", s.ID)
	}
	return nil
}

func (r *MongoRepository) ListActive(ctx context.Context) ([]*Session, error) {
	cur, err := r.col.Find(ctx, bson.M{"status": StatusActive})
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	out := []*Session{}
	for cur.Next(ctx) {
		var s Session
		if err := cur.Decode(&s); err != nil {
			return nil, err
		}
		out = append(out, &s)
	}
	return out, cur.Err()
}
