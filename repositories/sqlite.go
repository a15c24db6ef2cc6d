package repositories

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"ai-chat/models"
)

// SQLChatRepository stores chats in the relational schema created by db.OpenSQLite.
type SQLChatRepository struct {
	db *sql.DB
}

func NewSQLChatRepository(conn *sql.DB) *SQLChatRepository {
	return &SQLChatRepository{db: conn}
}

func toMillis(t time.Time) int64 { return t.UTC().UnixMilli() }

func fromMillis(ms int64) time.Time { return time.UnixMilli(ms).UTC() }

func (r *SQLChatRepository) Insert(ctx context.Context, c *models.Chat) error {
	now := time.Now().UTC()
	if c.CreatedAt.IsZero() {
		c.CreatedAt = now
	}
	if c.UpdatedAt.IsZero() {
		c.UpdatedAt = c.CreatedAt
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO chats (id, title, created_at, updated_at) VALUES (?, ?, ?, ?)`,
		c.ID, nullString(c.Title), toMillis(c.CreatedAt), toMillis(c.UpdatedAt))
	return err
}

func (r *SQLChatRepository) List(ctx context.Context) ([]models.Chat, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, title, created_at, updated_at FROM chats ORDER BY created_at DESC, rowid DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	chats := []models.Chat{}
	for rows.Next() {
		c, err := scanChat(rows)
		if err != nil {
			return nil, err
		}
		chats = append(chats, *c)
	}
	return chats, rows.Err()
}

func (r *SQLChatRepository) GetByID(ctx context.Context, id string) (*models.Chat, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, title, created_at, updated_at FROM chats WHERE id = ?`, id)
	c, err := scanChat(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return c, err
}

func (r *SQLChatRepository) UpdateTitle(ctx context.Context, id, title string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE chats SET title = ?, updated_at = ? WHERE id = ?`,
		title, toMillis(time.Now()), id)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

// Delete removes the chat; messages follow through ON DELETE CASCADE.
func (r *SQLChatRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM chats WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

// SQLMessageRepository stores messages in the relational schema.
type SQLMessageRepository struct {
	db *sql.DB
}

func NewSQLMessageRepository(conn *sql.DB) *SQLMessageRepository {
	return &SQLMessageRepository{db: conn}
}

func (r *SQLMessageRepository) Insert(ctx context.Context, m *models.Message) error {
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO messages (id, chat_id, role, content, input_tokens, output_tokens, created)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		m.ID, m.ChatID, string(m.Role), m.Content,
		nullInt(m.InputTokens), nullInt(m.OutputTokens), toMillis(m.CreatedAt))
	return err
}

const messageColumns = `id, chat_id, role, content, input_tokens, output_tokens, created`

func (r *SQLMessageRepository) ListByChatID(ctx context.Context, chatID string) ([]models.Message, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+messageColumns+` FROM messages WHERE chat_id = ? ORDER BY created DESC, rowid DESC`, chatID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	msgs := []models.Message{}
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		msgs = append(msgs, *m)
	}
	return msgs, rows.Err()
}

func (r *SQLMessageRepository) FirstByChatID(ctx context.Context, chatID string, role models.Role) (*models.Message, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+messageColumns+` FROM messages WHERE chat_id = ? AND role = ? ORDER BY created ASC, rowid ASC LIMIT 1`,
		chatID, string(role))
	m, err := scanMessage(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return m, err
}

func (r *SQLMessageRepository) DeleteByChatID(ctx context.Context, chatID string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM messages WHERE chat_id = ?`, chatID)
	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanChat(s rowScanner) (*models.Chat, error) {
	var (
		c                models.Chat
		title            sql.NullString
		created, updated int64
	)
	if err := s.Scan(&c.ID, &title, &created, &updated); err != nil {
		return nil, err
	}
	if title.Valid {
		c.Title = &title.String
	}
	c.CreatedAt = fromMillis(created)
	c.UpdatedAt = fromMillis(updated)
	return &c, nil
}

func scanMessage(s rowScanner) (*models.Message, error) {
	var (
		m             models.Message
		role          string
		input, output sql.NullInt64
		created       int64
	)
	if err := s.Scan(&m.ID, &m.ChatID, &role, &m.Content, &input, &output, &created); err != nil {
		return nil, err
	}
	m.Role = models.Role(role)
	if input.Valid {
		m.InputTokens = &input.Int64
	}
	if output.Valid {
		m.OutputTokens = &output.Int64
	}
	m.CreatedAt = fromMillis(created)
	return &m, nil
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func nullInt(n *int64) sql.NullInt64 {
	if n == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *n, Valid: true}
}

func requireAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
