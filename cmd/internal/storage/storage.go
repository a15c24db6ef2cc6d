// Package storage opens the chat stores selected by configuration. It is
// shared by the API server and the title worker.
package storage

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/mongo/readpref"

	"ai-chat/config"
	"ai-chat/db"
	"ai-chat/repositories"
)

type Stores struct {
	Driver   string
	Chats    repositories.ChatStore
	Messages repositories.MessageStore
	Ping     func(ctx context.Context) error
	Close    func(ctx context.Context) error
}

func Open(ctx context.Context, cfg config.StorageConfig) (*Stores, error) {
	switch cfg.Driver {
	case "mongo":
		if err := db.Init(ctx, cfg.MongoURI, cfg.MongoDBName); err != nil {
			return nil, fmt.Errorf("init mongo: %w", err)
		}
		d := db.Database()
		return &Stores{
			Driver:   cfg.Driver,
			Chats:    repositories.NewChatRepository(d),
			Messages: repositories.NewMessageRepository(d),
			Ping:     func(ctx context.Context) error { return db.Client().Ping(ctx, readpref.Primary()) },
			Close:    db.Disconnect,
		}, nil
	case "sqlite":
		conn, err := db.OpenSQLite(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("open sqlite: %w", err)
		}
		return &Stores{
			Driver:   cfg.Driver,
			Chats:    repositories.NewSQLChatRepository(conn),
			Messages: repositories.NewSQLMessageRepository(conn),
			Ping:     conn.PingContext,
			Close:    func(context.Context) error { return conn.Close() },
		}, nil
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
	}
}
