package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"legis/types"
)

var ErrNotFound = errors.New("not found")

type DBStorer interface {
	ListActs(context.Context) ([]types.Act, error)
	ListCategories(context.Context) ([]types.Category, error)
	GetActByID(context.Context, int64) (*types.Act, error)
	UpdateAct(context.Context, int64, map[string]any) (*types.Act, error)
	SaveAct(context.Context, string, types.Act) (int64, error)
	FindCategoryByKeywords(context.Context, []string) (string, error)
}

// columns UpdateAct may write
var updatableColumns = map[string]struct{}{
	"content":          {},
	"simple_title":     {},
	"impact_section":   {},
	"confidence_score": {},
}

const actColumns = `id, COALESCE(title, ''), act_number, simple_title, content, impact_section,
	COALESCE(item_type, ''), announcement_date, promulgation, keywords, category, votes,
	confidence_score::float8, COALESCE(file, ''), updated_at`

// pgxPool is the part of *pgxpool.Pool the store uses.
type pgxPool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Ping(ctx context.Context) error
	Close()
}

type PostgresStore struct {
	pool   pgxPool
	logger *slog.Logger
}

func NewPostgresStore(ctx context.Context, connStr string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		return nil, err
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return &PostgresStore{
		pool:   pool,
		logger: slog.Default().With("component", "store"),
	}, nil
}

func scanAct(row pgx.Row) (*types.Act, error) {
	var (
		act       types.Act
		itemType  string
		announced *time.Time
		votesRaw  []byte
	)
	err := row.Scan(
		&act.ID,
		&act.Title,
		&act.ActNumber,
		&act.SimpleTitle,
		&act.Content,
		&act.ImpactSection,
		&itemType,
		&announced,
		&act.Promulgation,
		&act.Keywords,
		&act.Category,
		&votesRaw,
		&act.ConfidenceScore,
		&act.File,
		&act.UpdatedAt)
	if err != nil {
		return nil, err
	}

	act.ItemType = types.ItemType(itemType)
	if announced != nil {
		act.AnnouncementDate = *announced
	}
	if act.Keywords == nil {
		act.Keywords = []string{}
	}
	if len(votesRaw) > 0 && string(votesRaw) != "null" {
		var v types.Votes
		if err := json.Unmarshal(votesRaw, &v); err != nil {
			return nil, fmt.Errorf("decode votes of act %d: %w", act.ID, err)
		}
		act.Votes = &v
	}
	return &act, nil
}

func (p *PostgresStore) ListActs(ctx context.Context) ([]types.Act, error) {
	rows, err := p.pool.Query(ctx, "SELECT "+actColumns+" FROM acts ORDER BY announcement_date DESC NULLS LAST, id")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	acts := []types.Act{}
	for rows.Next() {
		act, err := scanAct(rows)
		if err != nil {
			return nil, err
		}
		acts = append(acts, *act)
	}
	return acts, rows.Err()
}

func (p *PostgresStore) GetActByID(ctx context.Context, id int64) (*types.Act, error) {
	row := p.pool.QueryRow(ctx, "SELECT "+actColumns+" FROM acts WHERE id = $1", id)
	act, err := scanAct(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("act %d: %w", id, ErrNotFound)
	}
	return act, err
}

// UpdateAct writes the given columns of one act and bumps updated_at.
// Keys must be column names listed in updatableColumns.
func (p *PostgresStore) UpdateAct(ctx context.Context, id int64, fields map[string]any) (*types.Act, error) {
	if len(fields) == 0 {
		return nil, errors.New("no fields to update")
	}

	keys := make([]string, 0, len(fields))
	for k := range fields {
		if _, ok := updatableColumns[k]; !ok {
			return nil, fmt.Errorf("column %q is not updatable", k)
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	sets := make([]string, 0, len(keys)+1)
	args := make([]any, 0, len(keys)+1)
	for i, k := range keys {
		sets = append(sets, fmt.Sprintf("%s = $%d", k, i+1))
		args = append(args, fields[k])
	}
	sets = append(sets, "updated_at = NOW()")
	args = append(args, id)

	query := fmt.Sprintf("UPDATE acts SET %s WHERE id = $%d RETURNING %s",
		strings.Join(sets, ", "), len(args), actColumns)

	act, err := scanAct(p.pool.QueryRow(ctx, query, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("act %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	p.logger.Info("act updated", "id", id, "columns", keys)
	return act, nil
}

// SaveAct inserts an act or refreshes the one stored under the same
// idempotency key, returning its id. Admin-edited columns are kept.
func (p *PostgresStore) SaveAct(ctx context.Context, key string, act types.Act) (int64, error) {
	var votes []byte
	if act.Votes != nil {
		b, err := json.Marshal(act.Votes)
		if err != nil {
			return 0, fmt.Errorf("encode votes: %w", err)
		}
		votes = b
	}

	query := `INSERT INTO acts (idempotency_key, title, act_number, simple_title, content, item_type,
			announcement_date, promulgation, keywords, category, votes, confidence_score, file,
			impact_section, created_at, updated_at, ingested_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, NOW(), NOW(), NOW())
		ON CONFLICT (idempotency_key) DO UPDATE SET
			title = EXCLUDED.title,
			act_number = EXCLUDED.act_number,
			item_type = EXCLUDED.item_type,
			announcement_date = EXCLUDED.announcement_date,
			promulgation = EXCLUDED.promulgation,
			keywords = EXCLUDED.keywords,
			category = EXCLUDED.category,
			votes = EXCLUDED.votes,
			file = EXCLUDED.file,
			updated_at = NOW(),
			ingested_at = NOW()
		RETURNING id`

	var id int64
	err := p.pool.QueryRow(
		ctx,
		query,
		key,
		act.Title,
		act.ActNumber,
		act.SimpleTitle,
		act.Content,
		string(act.ItemType),
		act.AnnouncementDate,
		act.Promulgation,
		act.Keywords,
		act.Category,
		votes,
		act.ConfidenceScore,
		act.File,
		act.ImpactSection,
	).Scan(&id)
	return id, err
}

func (p *PostgresStore) ListCategories(ctx context.Context) ([]types.Category, error) {
	rows, err := p.pool.Query(ctx, "SELECT category, keywords FROM category WHERE category IS NOT NULL ORDER BY category")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	categories := []types.Category{}
	for rows.Next() {
		var (
			c   types.Category
			raw []byte
		)
		if err := rows.Scan(&c.Category, &raw); err != nil {
			return nil, err
		}
		if len(raw) > 0 {
			if err := json.Unmarshal(raw, &c.Keywords); err != nil {
				// older rows hold a bare string instead of an array
				c.Keywords = []string{strings.Trim(string(raw), `"`)}
			}
		}
		categories = append(categories, c)
	}
	return categories, rows.Err()
}

// FindCategoryByKeywords returns the first category sharing a keyword with
// the given list, or "" when none does.
func (p *PostgresStore) FindCategoryByKeywords(ctx context.Context, keywords []string) (string, error) {
	if len(keywords) == 0 {
		return "", nil
	}
	query := `
		SELECT category FROM category
		WHERE jsonb_typeof(keywords) = 'array' AND EXISTS (
			SELECT 1 FROM jsonb_array_elements_text(keywords) AS keyword
			WHERE keyword = ANY($1)
		)
		ORDER BY id
		LIMIT 1`

	var category string
	err := p.pool.QueryRow(ctx, query, keywords).Scan(&category)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", nil
	}
	return category, err
}

func (p *PostgresStore) createTables(ctx context.Context) error {

	query := `
	CREATE TABLE IF NOT EXISTS acts (
		id BIGSERIAL PRIMARY KEY,
		title TEXT,
		act_number TEXT,
		simple_title TEXT,
		content TEXT,
		refs JSONB,
		texts JSONB,
		item_type TEXT,
		announcement_date DATE,
		change_date DATE,
		promulgation DATE,
		item_status TEXT,
		comments TEXT,
		keywords TEXT[] NOT NULL DEFAULT '{}',
		file TEXT,
		votes JSONB,
		category TEXT,
		idempotency_key TEXT UNIQUE,
		impact_section TEXT,
		confidence_score NUMERIC(4, 3) CHECK (confidence_score BETWEEN 0 AND 1),
		needs_reprocess BOOLEAN NOT NULL DEFAULT FALSE,
		created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
		ingested_at TIMESTAMP WITH TIME ZONE
	);

	CREATE INDEX IF NOT EXISTS idx_acts_item_type ON acts(item_type);
	CREATE INDEX IF NOT EXISTS idx_acts_announcement_date ON acts(announcement_date);

	CREATE TABLE IF NOT EXISTS category (
		id SERIAL PRIMARY KEY,
		category TEXT UNIQUE,
		keywords JSONB NOT NULL DEFAULT '[]'
	);
    `
	_, err := p.pool.Exec(ctx, query)
	return err
}

func (p *PostgresStore) Init(ctx context.Context) error {
	return p.createTables(ctx)
}

func (p *PostgresStore) Close() error {
	if p.pool != nil {
		p.pool.Close()
		p.logger.Info("postgres connection pool is closed")
	}
	return nil
}

func (p *PostgresStore) Ping(ctx context.Context) error {
	return p.pool.Ping(ctx)
}
