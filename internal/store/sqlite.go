package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/cardstash/cardstash/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS cards (
	id         TEXT PRIMARY KEY,
	user_id    TEXT NOT NULL,
	url        TEXT NOT NULL DEFAULT '',
	content    TEXT NOT NULL DEFAULT '',
	title      TEXT NOT NULL DEFAULT '',
	image_url  TEXT NOT NULL DEFAULT '',
	type       TEXT NOT NULL DEFAULT 'link',
	tags       TEXT NOT NULL DEFAULT '[]',
	metadata   TEXT NOT NULL DEFAULT '{}',
	created_at DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at DATETIME NOT NULL DEFAULT (datetime('now')),
	deleted_at DATETIME
);

CREATE INDEX IF NOT EXISTS idx_cards_user_id ON cards(user_id);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) CreateCard(ctx context.Context, card *model.Card) (*model.Card, error) {
	created := *card
	if created.ID == "" {
		created.ID = uuid.New().String()
	}
	if created.Type == "" {
		created.Type = model.CardTypeLink
	}
	if created.Tags == nil {
		created.Tags = []string{}
	}
	if created.Metadata == nil {
		created.Metadata = map[string]any{}
	}
	now := time.Now().UTC()
	created.CreatedAt = now
	created.UpdatedAt = now

	tagsJSON, err := json.Marshal(created.Tags)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: marshal tags")
	}
	metaJSON, err := json.Marshal(created.Metadata)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: marshal metadata")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO cards (id, user_id, url, content, title, image_url, type, tags, metadata, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		created.ID, created.UserID, created.URL, created.Content, created.Title,
		created.ImageURL, string(created.Type), string(tagsJSON), string(metaJSON), now, now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: insert card")
	}
	return &created, nil
}

func (s *SQLiteStore) GetCard(ctx context.Context, cardID string) (*model.Card, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, user_id, url, content, title, image_url, type, tags, metadata, created_at, updated_at, deleted_at
		FROM cards WHERE id = ? AND deleted_at IS NULL`,
		cardID,
	)
	card, err := scanSQLiteCard(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, eris.Wrapf(err, "sqlite: get card %s", cardID)
	}
	return card, nil
}

// UpdateCard applies a partial update. SQLite has no server-side JSON
// merge worth using here, so the metadata patch is applied
// read-modify-write inside a transaction.
func (s *SQLiteStore) UpdateCard(ctx context.Context, cardID string, patch CardPatch) error {
	if patch.IsZero() {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin tx")
	}
	defer func() { _ = tx.Rollback() }()

	sets := []string{"updated_at = ?"}
	args := []any{time.Now().UTC()}

	if patch.Content != nil {
		sets = append(sets, "content = ?")
		args = append(args, *patch.Content)
	}
	if patch.Title != nil {
		sets = append(sets, "title = ?")
		args = append(args, *patch.Title)
	}
	if patch.ImageURL != nil {
		sets = append(sets, "image_url = ?")
		args = append(args, *patch.ImageURL)
	}
	if patch.Type != nil {
		sets = append(sets, "type = ?")
		args = append(args, string(*patch.Type))
	}
	if patch.Tags != nil {
		tagsJSON, err := json.Marshal(patch.Tags)
		if err != nil {
			return eris.Wrap(err, "sqlite: marshal tags")
		}
		sets = append(sets, "tags = ?")
		args = append(args, string(tagsJSON))
	}
	if len(patch.MergeMetadata) > 0 {
		var metaJSON string
		row := tx.QueryRowContext(ctx,
			`SELECT metadata FROM cards WHERE id = ? AND deleted_at IS NULL`, cardID)
		if err := row.Scan(&metaJSON); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrNotFound
			}
			return eris.Wrapf(err, "sqlite: read metadata %s", cardID)
		}
		var existing map[string]any
		if err := json.Unmarshal([]byte(metaJSON), &existing); err != nil {
			return eris.Wrap(err, "sqlite: unmarshal metadata")
		}
		merged, err := json.Marshal(mergeMetadata(existing, patch.MergeMetadata))
		if err != nil {
			return eris.Wrap(err, "sqlite: marshal merged metadata")
		}
		sets = append(sets, "metadata = ?")
		args = append(args, string(merged))
	}

	query := fmt.Sprintf(
		`UPDATE cards SET %s WHERE id = ? AND deleted_at IS NULL`,
		strings.Join(sets, ", "))
	args = append(args, cardID)

	res, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update card %s", cardID)
	}
	if err := checkRowsAffected(res, "card", cardID); err != nil {
		return err
	}
	return eris.Wrap(tx.Commit(), "sqlite: commit update")
}

func (s *SQLiteStore) SoftDeleteCard(ctx context.Context, cardID string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE cards SET deleted_at = ?, updated_at = ? WHERE id = ? AND deleted_at IS NULL`,
		time.Now().UTC(), time.Now().UTC(), cardID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: soft delete card %s", cardID)
	}
	return checkRowsAffected(res, "card", cardID)
}

func (s *SQLiteStore) ListDistinctTags(ctx context.Context, userID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT DISTINCT value FROM cards, json_each(cards.tags)
		WHERE user_id = ? AND deleted_at IS NULL ORDER BY value`,
		userID,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: list tags for %s", userID)
	}
	defer rows.Close()

	var tags []string
	for rows.Next() {
		var tag string
		if err := rows.Scan(&tag); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan tag")
		}
		tags = append(tags, tag)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "sqlite: iterate tags")
	}
	return tags, nil
}

func scanSQLiteCard(row *sql.Row) (*model.Card, error) {
	var (
		card               model.Card
		cardType           string
		tagsJSON, metaJSON string
	)
	err := row.Scan(&card.ID, &card.UserID, &card.URL, &card.Content, &card.Title,
		&card.ImageURL, &cardType, &tagsJSON, &metaJSON,
		&card.CreatedAt, &card.UpdatedAt, &card.DeletedAt)
	if err != nil {
		return nil, err
	}
	card.Type = model.CardType(cardType)
	if err := json.Unmarshal([]byte(tagsJSON), &card.Tags); err != nil {
		return nil, eris.Wrap(err, "unmarshal tags")
	}
	if err := json.Unmarshal([]byte(metaJSON), &card.Metadata); err != nil {
		return nil, eris.Wrap(err, "unmarshal metadata")
	}
	return &card, nil
}

func checkRowsAffected(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrapf(err, "sqlite: rows affected for %s %s", entity, id)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
