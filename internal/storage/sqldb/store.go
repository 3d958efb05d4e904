// Package sqldb records staged images in a SQL database through sqlx.
// SQLite (modernc.org/sqlite) and PostgreSQL (pgx) are supported.
package sqldb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/tjfontaine/roomstage/internal/core/domain"
	"github.com/tjfontaine/roomstage/internal/core/ports"
	"github.com/tjfontaine/roomstage/internal/storage/dialect"
)

// Store is a SQL implementation of ports.ResultStore.
type Store struct {
	db      *sqlx.DB
	dialect dialect.Dialect
}

var _ ports.ResultStore = (*Store)(nil)

// Config holds database connection configuration.
type Config struct {
	Driver string // sqlite or pgx
	DSN    string
}

// New opens the database and ensures the schema exists.
func New(cfg Config) (*Store, error) {
	d, err := dialect.FromDriverName(cfg.Driver)
	if err != nil {
		return nil, fmt.Errorf("unsupported database driver: %w", err)
	}

	db, err := sqlx.Open(d.DriverName(), cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	for _, stmt := range d.PragmaStatements() {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to execute pragma: %w", err)
		}
	}

	store := &Store{db: db, dialect: d}

	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return store, nil
}

// NewSQLite opens a SQLite store at dsn.
func NewSQLite(dsn string) (*Store, error) {
	return New(Config{Driver: "sqlite", DSN: dsn})
}

// DB returns the underlying sqlx.DB.
func (s *Store) DB() *sqlx.DB {
	return s.db
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) initSchema() error {
	ts := s.dialect.TimestampType()
	now := s.dialect.CurrentTimestamp()

	statements := []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS staged_images (
			id %s,
			user_id TEXT NOT NULL,
			original_image_url TEXT NOT NULL,
			staged_image_url TEXT NOT NULL,
			prompt TEXT NOT NULL,
			room_type TEXT NOT NULL,
			style TEXT NOT NULL,
			staging_furniture TEXT NOT NULL DEFAULT '[]',
			staging_decor TEXT NOT NULL DEFAULT '[]',
			staging_lighting TEXT NOT NULL DEFAULT '[]',
			staging_colors TEXT NOT NULL DEFAULT '[]',
			staging_materials TEXT NOT NULL DEFAULT '[]',
			staging_accessories TEXT NOT NULL DEFAULT '[]',
			created_at %s NOT NULL DEFAULT %s,
			updated_at %s NOT NULL DEFAULT %s
		)`, s.dialect.IDColumn(), ts, wrapDefault(now), ts, wrapDefault(now)),
		`CREATE INDEX IF NOT EXISTS idx_staged_images_user ON staged_images(user_id, created_at)`,
	}

	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// wrapDefault parenthesizes function-call defaults, which SQLite requires.
func wrapDefault(expr string) string {
	if expr == "CURRENT_TIMESTAMP" {
		return expr
	}
	return "(" + expr + ")"
}

// Record inserts one row. The id and timestamps come from column defaults.
func (s *Store) Record(ctx context.Context, in domain.RecordInput) (string, time.Time, error) {
	query := s.dialect.Rebind(`INSERT INTO staged_images (
		user_id, original_image_url, staged_image_url, prompt, room_type, style,
		staging_furniture, staging_decor, staging_lighting, staging_colors,
		staging_materials, staging_accessories
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	RETURNING id, created_at`)

	b := in.Breakdown
	var (
		id        string
		createdAt dbTime
	)
	err := s.db.QueryRowxContext(ctx, query,
		in.OwnerID, in.OriginalURL, in.StagedURL, in.Prompt, in.RoomType, in.Style,
		labels(b.Furniture), labels(b.Decor), labels(b.Lighting), labels(b.Colors),
		labels(b.Materials), labels(b.Accessories),
	).Scan(&id, &createdAt)
	if err != nil {
		return "", time.Time{}, domain.ErrPersistence(err)
	}

	return id, createdAt.Time, nil
}

type stagedImageRow struct {
	ID          string `db:"id"`
	UserID      string `db:"user_id"`
	OriginalURL string `db:"original_image_url"`
	StagedURL   string `db:"staged_image_url"`
	Prompt      string `db:"prompt"`
	RoomType    string `db:"room_type"`
	Style       string `db:"style"`
	Furniture   labels `db:"staging_furniture"`
	Decor       labels `db:"staging_decor"`
	Lighting    labels `db:"staging_lighting"`
	Colors      labels `db:"staging_colors"`
	Materials   labels `db:"staging_materials"`
	Accessories labels `db:"staging_accessories"`
	CreatedAt   dbTime `db:"created_at"`
	UpdatedAt   dbTime `db:"updated_at"`
}

// GetResult returns the row with id if it belongs to ownerID.
func (s *Store) GetResult(ctx context.Context, ownerID, id string) (*domain.StagedImageRecord, error) {
	query := s.dialect.Rebind(`SELECT
		id, user_id, original_image_url, staged_image_url, prompt, room_type, style,
		staging_furniture, staging_decor, staging_lighting, staging_colors,
		staging_materials, staging_accessories, created_at, updated_at
	FROM staged_images WHERE id = ? AND user_id = ?`)

	var row stagedImageRow
	if err := s.db.GetContext(ctx, &row, query, id, ownerID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound("Staged image not found")
		}
		return nil, fmt.Errorf("failed to load staged image: %w", err)
	}

	return &domain.StagedImageRecord{
		ID:          row.ID,
		OwnerID:     row.UserID,
		OriginalURL: row.OriginalURL,
		StagedURL:   row.StagedURL,
		Prompt:      row.Prompt,
		RoomType:    row.RoomType,
		Style:       row.Style,
		Furniture:   row.Furniture,
		Decor:       row.Decor,
		Lighting:    row.Lighting,
		Colors:      row.Colors,
		Materials:   row.Materials,
		Accessories: row.Accessories,
		CreatedAt:   row.CreatedAt.Time,
		UpdatedAt:   row.UpdatedAt.Time,
	}, nil
}
