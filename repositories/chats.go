package repositories

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"ai-chat/db"
	"ai-chat/models"
)

type ChatRepository struct {
	col *mongo.Collection
}

func NewChatRepository(d *mongo.Database) *ChatRepository {
	return &ChatRepository{col: d.Collection(db.CollectionChats)}
}

// Insert inserts a new chat document. ID must already be set.
func (r *ChatRepository) Insert(ctx context.Context, c *models.Chat) error {
	now := time.Now().UTC()
	if c.CreatedAt.IsZero() {
		c.CreatedAt = now
	}
	if c.UpdatedAt.IsZero() {
		c.UpdatedAt = c.CreatedAt
	}
	_, err := r.col.InsertOne(ctx, c)
	return err
}

// List returns all chats, newest first.
func (r *ChatRepository) List(ctx context.Context) ([]models.Chat, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	cur, err := r.col.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	chats := []models.Chat{}
	if err := cur.All(ctx, &chats); err != nil {
		return nil, err
	}
	return chats, nil
}

func (r *ChatRepository) GetByID(ctx context.Context, id string) (*models.Chat, error) {
	var c models.Chat
	if err := r.col.FindOne(ctx, bson.M{"_id": id}).Decode(&c); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &c, nil
}

// UpdateTitle sets title and updated_at
func (r *ChatRepository) UpdateTitle(ctx context.Context, id, title string) error {
	res, err := r.col.UpdateByID(ctx, id, bson.M{
		"$set": bson.M{"title": title, "updated_at": time.Now().UTC()},
	})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes the chat document. Messages are removed by the caller
// since mongo has no cascading delete.
func (r *ChatRepository) Delete(ctx context.Context, id string) error {
	res, err := r.col.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}
