package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/cardstash/cardstash/internal/model"
	"github.com/cardstash/cardstash/internal/resilience"
)

// Pool is the subset of pgxpool.Pool the store uses. pgxmock satisfies
// it in tests.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Ping(ctx context.Context) error
	Close()
}

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool Pool
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// preparedStatements lists queries to prepare on each new connection for
// faster execution of the most frequently used store operations.
var preparedStatements = map[string]string{
	"get_card":         sqlGetCard,
	"soft_delete_card": sqlSoftDeleteCard,
	"list_tags":        sqlListDistinctTags,
}

const (
	sqlGetCard          = `SELECT id, user_id, url, content, title, image_url, type, tags, metadata, created_at, updated_at, deleted_at FROM cards WHERE id = $1 AND deleted_at IS NULL`
	sqlSoftDeleteCard   = `UPDATE cards SET deleted_at = now(), updated_at = now() WHERE id = $1 AND deleted_at IS NULL`
	sqlListDistinctTags = `SELECT DISTINCT jsonb_array_elements_text(tags) AS tag FROM cards WHERE user_id = $1 AND deleted_at IS NULL ORDER BY tag`
)

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	// Prepare frequently-used statements on each new connection.
	pgxCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		for name, sql := range preparedStatements {
			if _, err := conn.Prepare(ctx, name, sql); err != nil {
				return eris.Wrapf(err, "postgres: prepare %s", name)
			}
		}
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}

	// The database may still be coming up when the service starts.
	pingCfg := resilience.DefaultRetryConfig()
	pingCfg.ShouldRetry = resilience.IsTransient
	if _, err := resilience.Do(ctx, pingCfg, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, pool.Ping(ctx)
	}); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS cards (
	id         TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	user_id    TEXT NOT NULL,
	url        TEXT NOT NULL DEFAULT '',
	content    TEXT NOT NULL DEFAULT '',
	title      TEXT NOT NULL DEFAULT '',
	image_url  TEXT NOT NULL DEFAULT '',
	type       TEXT NOT NULL DEFAULT 'link',
	tags       JSONB NOT NULL DEFAULT '[]',
	metadata   JSONB NOT NULL DEFAULT '{}',
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	deleted_at TIMESTAMPTZ
);

CREATE INDEX IF NOT EXISTS idx_cards_user_id ON cards(user_id);
CREATE INDEX IF NOT EXISTS idx_cards_user_live ON cards(user_id) WHERE deleted_at IS NULL;
CREATE INDEX IF NOT EXISTS idx_cards_processing ON cards((metadata->>'processing')) WHERE deleted_at IS NULL;
`

func (s *PostgresStore) Ping(ctx context.Context) error {
	return eris.Wrap(s.pool.Ping(ctx), "postgres: ping")
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresStore) CreateCard(ctx context.Context, card *model.Card) (*model.Card, error) {
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
		return nil, eris.Wrap(err, "postgres: marshal tags")
	}
	metaJSON, err := json.Marshal(created.Metadata)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: marshal metadata")
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO cards (id, user_id, url, content, title, image_url, type, tags, metadata, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		created.ID, created.UserID, created.URL, created.Content, created.Title,
		created.ImageURL, string(created.Type), tagsJSON, metaJSON, now, now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: insert card")
	}
	return &created, nil
}

func (s *PostgresStore) GetCard(ctx context.Context, cardID string) (*model.Card, error) {
	row := s.pool.QueryRow(ctx, sqlGetCard, cardID)
	card, err := scanCard(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, eris.Wrapf(err, "postgres: get card %s", cardID)
	}
	return card, nil
}

// UpdateCard applies a partial update. The metadata patch is merged
// server-side so concurrent writers touching different keys do not
// clobber each other; null values delete keys.
func (s *PostgresStore) UpdateCard(ctx context.Context, cardID string, patch CardPatch) error {
	if patch.IsZero() {
		return nil
	}

	sets := []string{"updated_at = now()"}
	args := []any{}
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if patch.Content != nil {
		sets = append(sets, "content = "+arg(*patch.Content))
	}
	if patch.Title != nil {
		sets = append(sets, "title = "+arg(*patch.Title))
	}
	if patch.ImageURL != nil {
		sets = append(sets, "image_url = "+arg(*patch.ImageURL))
	}
	if patch.Type != nil {
		sets = append(sets, "type = "+arg(string(*patch.Type)))
	}
	if patch.Tags != nil {
		tagsJSON, err := json.Marshal(patch.Tags)
		if err != nil {
			return eris.Wrap(err, "postgres: marshal tags")
		}
		sets = append(sets, "tags = "+arg(tagsJSON)+"::jsonb")
	}
	if len(patch.MergeMetadata) > 0 {
		metaJSON, err := json.Marshal(patch.MergeMetadata)
		if err != nil {
			return eris.Wrap(err, "postgres: marshal metadata patch")
		}
		sets = append(sets, "metadata = jsonb_strip_nulls(metadata || "+arg(metaJSON)+"::jsonb)")
	}

	query := "UPDATE cards SET " + strings.Join(sets, ", ") +
		" WHERE id = " + arg(cardID) + " AND deleted_at IS NULL"
	tag, err := s.pool.Exec(ctx, query, args...)
	if err != nil {
		return eris.Wrapf(err, "postgres: update card %s", cardID)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) SoftDeleteCard(ctx context.Context, cardID string) error {
	tag, err := s.pool.Exec(ctx, sqlSoftDeleteCard, cardID)
	if err != nil {
		return eris.Wrapf(err, "postgres: soft delete card %s", cardID)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) ListDistinctTags(ctx context.Context, userID string) ([]string, error) {
	rows, err := s.pool.Query(ctx, sqlListDistinctTags, userID)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: list tags for %s", userID)
	}
	defer rows.Close()

	var tags []string
	for rows.Next() {
		var tag string
		if err := rows.Scan(&tag); err != nil {
			return nil, eris.Wrap(err, "postgres: scan tag")
		}
		tags = append(tags, tag)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "postgres: iterate tags")
	}
	return tags, nil
}

func scanCard(row pgx.Row) (*model.Card, error) {
	var (
		card               model.Card
		cardType           string
		tagsJSON, metaJSON []byte
	)
	err := row.Scan(&card.ID, &card.UserID, &card.URL, &card.Content, &card.Title,
		&card.ImageURL, &cardType, &tagsJSON, &metaJSON,
		&card.CreatedAt, &card.UpdatedAt, &card.DeletedAt)
	if err != nil {
		return nil, err
	}
	card.Type = model.CardType(cardType)
	if err := json.Unmarshal(tagsJSON, &card.Tags); err != nil {
		return nil, eris.Wrap(err, "unmarshal tags")
	}
	if err := json.Unmarshal(metaJSON, &card.Metadata); err != nil {
		return nil, eris.Wrap(err, "unmarshal metadata")
	}
	return &card, nil
}
