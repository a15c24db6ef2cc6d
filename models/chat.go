package models

import "time"

// Chat is a conversation container.
// Collection: chats
type Chat struct {
	ID        string    `bson:"_id" json:"id"`
	Title     *string   `bson:"title,omitempty" json:"title"`
	CreatedAt time.Time `bson:"created_at" json:"createdAt"`
	UpdatedAt time.Time `bson:"updated_at" json:"updatedAt"`
}
