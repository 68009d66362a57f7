package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"

	"spurly/generator"
)

const schema = `
CREATE TABLE IF NOT EXISTS user_profiles (
	id TEXT PRIMARY KEY,
	data TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS connection_profiles (
	user_id TEXT NOT NULL,
	id TEXT NOT NULL,
	data TEXT NOT NULL,
	PRIMARY KEY (user_id, id)
);

CREATE TABLE IF NOT EXISTS active_connections (
	user_id TEXT PRIMARY KEY,
	connection_id TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS conversations (
	id TEXT NOT NULL,
	user_id TEXT NOT NULL,
	connection_id TEXT NOT NULL DEFAULT '',
	situation TEXT NOT NULL DEFAULT '',
	topic TEXT NOT NULL DEFAULT '',
	turns TEXT NOT NULL,
	created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
	PRIMARY KEY (user_id, id)
);

CREATE TABLE IF NOT EXISTS saved_spurs (
	spur_id TEXT NOT NULL,
	user_id TEXT NOT NULL,
	conversation_id TEXT NOT NULL DEFAULT '',
	variant TEXT NOT NULL,
	situation TEXT NOT NULL DEFAULT '',
	topic TEXT NOT NULL DEFAULT '',
	text TEXT NOT NULL,
	saved_at TIMESTAMP NOT NULL,
	PRIMARY KEY (user_id, spur_id)
);
`

// SQLite is a Store backed by a SQLite database file.
type SQLite struct {
	db  *sqlx.DB
	now func() time.Time
}

// NewSQLite opens (creating if needed) the database at path and applies the schema.
func NewSQLite(path string) (*SQLite, error) {
	db, err := sqlx.Connect("sqlite3", path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to connect to SQLite")
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "failed to enable WAL mode")
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "failed to apply schema")
	}
	return &SQLite{db: db, now: func() time.Time { return time.Now().UTC() }}, nil
}

type conversationRow struct {
	ID           string    `db:"id"`
	UserID       string    `db:"user_id"`
	ConnectionID string    `db:"connection_id"`
	Situation    string    `db:"situation"`
	Topic        string    `db:"topic"`
	Turns        string    `db:"turns"`
	CreatedAt    time.Time `db:"created_at"`
}

func (s *SQLite) UserProfile(ctx context.Context, userID string) (*generator.Profile, error) {
	var data string
	err := s.db.GetContext(ctx, &data, `SELECT data FROM user_profiles WHERE id = ?`, userID)
	if err != nil {
		return nil, notFound(err, "user %s", userID)
	}
	return decodeProfile(data)
}

func (s *SQLite) ConnectionProfile(ctx context.Context, userID, connectionID string) (*generator.Profile, error) {
	var data string
	err := s.db.GetContext(ctx, &data,
		`SELECT data FROM connection_profiles WHERE user_id = ? AND id = ?`, userID, connectionID)
	if err != nil {
		return nil, notFound(err, "connection %s", connectionID)
	}
	return decodeProfile(data)
}

func (s *SQLite) ActiveConnection(ctx context.Context, userID string) (string, error) {
	var id string
	err := s.db.GetContext(ctx, &id, `SELECT connection_id FROM active_connections WHERE user_id = ?`, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	return id, err
}

func (s *SQLite) Conversation(ctx context.Context, userID, conversationID string) (*generator.Conversation, error) {
	var row conversationRow
	err := s.db.GetContext(ctx, &row,
		`SELECT id, user_id, connection_id, situation, topic, turns, created_at
		 FROM conversations WHERE id = ? AND user_id = ?`, conversationID, userID)
	if err != nil {
		return nil, notFound(err, "conversation %s", conversationID)
	}
	c := &generator.Conversation{
		ID:           row.ID,
		UserID:       row.UserID,
		ConnectionID: row.ConnectionID,
		Situation:    row.Situation,
		Topic:        row.Topic,
		CreatedAt:    row.CreatedAt,
	}
	if err := json.Unmarshal([]byte(row.Turns), &c.Turns); err != nil {
		return nil, errors.Wrapf(err, "decode turns of conversation %s", conversationID)
	}
	return c, nil
}

func (s *SQLite) PutUserProfile(ctx context.Context, p *generator.Profile) error {
	if p == nil || p.ID == "" {
		return errors.New("user profile requires an id")
	}
	data, err := json.Marshal(p)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO user_profiles (id, data) VALUES (?, ?)
		 ON CONFLICT(id) DO UPDATE SET data = excluded.data`, p.ID, string(data))
	return errors.Wrap(err, "save user profile")
}

func (s *SQLite) PutConnectionProfile(ctx context.Context, userID string, p *generator.Profile) error {
	if p == nil || p.ID == "" || userID == "" {
		return errors.New("connection profile requires a user id and an id")
	}
	cp := *p
	cp.OwnerID = userID
	data, err := json.Marshal(cp)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO connection_profiles (user_id, id, data) VALUES (?, ?, ?)
		 ON CONFLICT(user_id, id) DO UPDATE SET data = excluded.data`, userID, p.ID, string(data))
	return errors.Wrap(err, "save connection profile")
}

func (s *SQLite) SetActiveConnection(ctx context.Context, userID, connectionID string) error {
	if connectionID == "" {
		_, err := s.db.ExecContext(ctx, `DELETE FROM active_connections WHERE user_id = ?`, userID)
		return err
	}
	if _, err := s.ConnectionProfile(ctx, userID, connectionID); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO active_connections (user_id, connection_id) VALUES (?, ?)
		 ON CONFLICT(user_id) DO UPDATE SET connection_id = excluded.connection_id`, userID, connectionID)
	return errors.Wrap(err, "set active connection")
}

func (s *SQLite) PutConversation(ctx context.Context, c *generator.Conversation) error {
	if c == nil || c.ID == "" || c.UserID == "" {
		return errors.New("conversation requires an id and a user id")
	}
	turns, err := json.Marshal(c.Turns)
	if err != nil {
		return err
	}
	created := c.CreatedAt
	if created.IsZero() {
		created = s.now()
	}
	_, err = s.db.NamedExecContext(ctx,
		`INSERT INTO conversations (id, user_id, connection_id, situation, topic, turns, created_at)
		 VALUES (:id, :user_id, :connection_id, :situation, :topic, :turns, :created_at)
		 ON CONFLICT(user_id, id) DO UPDATE SET
			connection_id = excluded.connection_id,
			situation = excluded.situation,
			topic = excluded.topic,
			turns = excluded.turns`,
		conversationRow{
			ID:           c.ID,
			UserID:       c.UserID,
			ConnectionID: c.ConnectionID,
			Situation:    c.Situation,
			Topic:        c.Topic,
			Turns:        string(turns),
			CreatedAt:    created,
		})
	return errors.Wrap(err, "save conversation")
}

func (s *SQLite) SaveSpur(ctx context.Context, sp generator.Spur) (SavedSpur, error) {
	if sp.UserID == "" || sp.SpurID == "" {
		return SavedSpur{}, errors.New("saved spur requires a user id and a spur id")
	}
	saved := SavedSpur{
		SpurID:         sp.SpurID,
		UserID:         sp.UserID,
		ConversationID: sp.ConversationID,
		Variant:        sp.Variant,
		Situation:      sp.Situation,
		Topic:          sp.Topic,
		Text:           sp.Text,
		SavedAt:        s.now(),
	}
	_, err := s.db.NamedExecContext(ctx,
		`INSERT INTO saved_spurs (spur_id, user_id, conversation_id, variant, situation, topic, text, saved_at)
		 VALUES (:spur_id, :user_id, :conversation_id, :variant, :situation, :topic, :text, :saved_at)
		 ON CONFLICT(user_id, spur_id) DO UPDATE SET
			conversation_id = excluded.conversation_id,
			variant = excluded.variant,
			situation = excluded.situation,
			topic = excluded.topic,
			text = excluded.text,
			saved_at = excluded.saved_at`, saved)
	if err != nil {
		return SavedSpur{}, errors.Wrap(err, "save spur")
	}
	return saved, nil
}

func (s *SQLite) SavedSpurs(ctx context.Context, userID string, f SavedFilter) ([]SavedSpur, error) {
	where := []string{"user_id = ?"}
	args := []interface{}{userID}
	if f.Variant != "" {
		where = append(where, "variant = ?")
		args = append(args, f.Variant)
	}
	if f.Situation != "" {
		where = append(where, "situation = ?")
		args = append(args, f.Situation)
	}
	if !f.From.IsZero() {
		where = append(where, "saved_at >= ?")
		args = append(args, f.From)
	}
	if !f.To.IsZero() {
		where = append(where, "saved_at <= ?")
		args = append(args, f.To)
	}
	order := "DESC"
	if f.Ascending {
		order = "ASC"
	}
	query := `SELECT spur_id, user_id, conversation_id, variant, situation, topic, text, saved_at FROM saved_spurs WHERE ` +
		strings.Join(where, " AND ") + ` ORDER BY saved_at ` + order

	var rows []SavedSpur
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, errors.Wrap(err, "list saved spurs")
	}
	out := rows[:0]
	for _, r := range rows {
		if matchKeyword(r.Text, f.Keyword) {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *SQLite) DeleteSavedSpur(ctx context.Context, userID, spurID string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM saved_spurs WHERE spur_id = ? AND user_id = ?`, spurID, userID)
	if err != nil {
		return errors.Wrap(err, "delete saved spur")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errors.Wrapf(generator.ErrNotFound, "saved spur %s", spurID)
	}
	return nil
}

func (s *SQLite) Close() error { return s.db.Close() }

func decodeProfile(data string) (*generator.Profile, error) {
	var p generator.Profile
	if err := json.Unmarshal([]byte(data), &p); err != nil {
		return nil, errors.Wrap(err, "decode profile")
	}
	return &p, nil
}

func notFound(err error, format string, args ...interface{}) error {
	if errors.Is(err, sql.ErrNoRows) {
		return errors.Wrapf(generator.ErrNotFound, format, args...)
	}
	return errors.Wrapf(err, format, args...)
}
