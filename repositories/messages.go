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

type MessageRepository struct {
	col *mongo.Collection
}

func NewMessageRepository(d *mongo.Database) *MessageRepository {
	return &MessageRepository{col: d.Collection(db.CollectionMessages)}
}

func (r *MessageRepository) Insert(ctx context.Context, m *models.Message) error {
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}
	_, err := r.col.InsertOne(ctx, m)
	return err
}

func (r *MessageRepository) ListByChatID(ctx context.Context, chatID string) ([]models.Message, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created", Value: -1}})
	cur, err := r.col.Find(ctx, bson.M{"chat_id": chatID}, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	msgs := []models.Message{}
	if err := cur.All(ctx, &msgs); err != nil {
		return nil, err
	}
	return msgs, nil
}

func (r *MessageRepository) FirstByChatID(ctx context.Context, chatID string, role models.Role) (*models.Message, error) {
	opts := options.FindOne().SetSort(bson.D{{Key: "created", Value: 1}})
	var m models.Message
	if err := r.col.FindOne(ctx, bson.M{"chat_id": chatID, "role": role}, opts).Decode(&m); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &m, nil
}

func (r *MessageRepository) DeleteByChatID(ctx context.Context, chatID string) error {
	_, err := r.col.DeleteMany(ctx, bson.M{"chat_id": chatID})
	return err
}
