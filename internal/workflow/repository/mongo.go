package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/flowdeck/flowdeck/backend/collab-service/internal/workflow"
)

// MongoRepo implements the workflow registry on a Mongo collection.
type MongoRepo struct {
	col *mongo.Collection
}

func NewMongoRepo(col *mongo.Collection) *MongoRepo {
	return &MongoRepo{col: col}
}

func (m *MongoRepo) Create(ctx context.Context, w *workflow.Workflow) (string, error) {
	if w.ID == "" {
		w.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	w.CreatedAt = now
	w.UpdatedAt = now
	if _, err := m.col.InsertOne(ctx, w); err != nil {
		return "", err
	}
	return w.ID, nil
}

func (m *MongoRepo) Get(ctx context.Context, id string) (*workflow.Workflow, error) {
	var w workflow.Workflow
	if err := m.col.FindOne(ctx, bson.M{"_id": id}).Decode(&w); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &w, nil
}

func (m *MongoRepo) List(ctx context.Context) ([]*workflow.Workflow, error) {
	cur, err := m.col.Find(ctx, bson.M{})
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	out := []*workflow.Workflow{}
	for cur.Next(ctx) {
		var w workflow.Workflow
		if err := cur.Decode(&w); err != nil {
			return nil, err
		}
		out = append(out, &w)
	}
	return out, cur.Err()
}

func (m *MongoRepo) SetCollaborators(ctx context.Context, id string, collaborators []workflow.Collaborator) error {
	set := bson.M{"collaborators": collaborators, "updatedAt": time.Now().UTC()}
	res, err := m.col.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": set})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (m *MongoRepo) Delete(ctx context.Context, id string) error {
	res, err := m.col.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}
