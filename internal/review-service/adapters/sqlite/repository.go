// Package sqlite stores reviews in SQLite. WAL mode is enabled on Open so
// the gRPC readers never block the event consumer writing.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jcmexdev/product-catalog/internal/catalog"
	"github.com/jcmexdev/product-catalog/internal/review-service/app"

	// Pure-Go driver, registered as "sqlite".
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS reviews (
    product_key TEXT    NOT NULL,
    review_id   INTEGER NOT NULL,
    author      TEXT    NOT NULL DEFAULT '',
    subject     TEXT    NOT NULL DEFAULT '',
    content     TEXT    NOT NULL DEFAULT '',
    updated_at  TEXT    NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%fZ', 'now')),

    -- One row per review; replayed CREATE events update in place.
    PRIMARY KEY (product_key, review_id)
);
`

type Repository struct {
	db *sql.DB
}

var _ app.Repository = (*Repository)(nil)

// Open opens (or creates) the database at path and applies the schema.
//
//	repo, err := sqlite.Open("./data/reviews.db")
func Open(path string) (*Repository, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open %q: %w", path, err)
	}
	// Single writer connection.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite: apply schema: %w", err)
	}
	return &Repository{db: db}, nil
}

func (r *Repository) Close() error {
	return r.db.Close()
}

func (r *Repository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// Save upserts every review inside one transaction.
func (r *Repository) Save(ctx context.Context, productKey string, reviews []catalog.Review) error {
	const q = `
		INSERT INTO reviews (product_key, review_id, author, subject, content)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (product_key, review_id) DO UPDATE SET
			author     = excluded.author,
			subject    = excluded.subject,
			content    = excluded.content,
			updated_at = strftime('%Y-%m-%dT%H:%M:%fZ', 'now')`

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return unavailable("begin", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, rv := range reviews {
		if rv.ProductKey != productKey {
			return fmt.Errorf("sqlite: review key %q does not match %q", rv.ProductKey, productKey)
		}
		if _, err := tx.ExecContext(ctx, q, rv.ProductKey, rv.ReviewID, rv.Author, rv.Subject, rv.Content); err != nil {
			return unavailable(fmt.Sprintf("save review %s/%d", productKey, rv.ReviewID), err)
		}
	}
	if err := tx.Commit(); err != nil {
		return unavailable("commit", err)
	}
	return nil
}

func (r *Repository) FindAll(ctx context.Context, productKey string) ([]catalog.Review, error) {
	const q = `
		SELECT product_key, review_id, author, subject, content
		FROM   reviews
		WHERE  product_key = ?
		ORDER  BY review_id`

	rows, err := r.db.QueryContext(ctx, q, productKey)
	if err != nil {
		return nil, unavailable("query reviews", err)
	}
	defer rows.Close()

	out := make([]catalog.Review, 0)
	for rows.Next() {
		var rv catalog.Review
		if err := rows.Scan(&rv.ProductKey, &rv.ReviewID, &rv.Author, &rv.Subject, &rv.Content); err != nil {
			return nil, fmt.Errorf("sqlite: scan review: %w", err)
		}
		out = append(out, rv)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("iterate reviews", err)
	}
	return out, nil
}

func (r *Repository) DeleteAll(ctx context.Context, productKey string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM reviews WHERE product_key = ?`, productKey); err != nil {
		return unavailable("delete reviews", err)
	}
	return nil
}

func unavailable(op string, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return fmt.Errorf("%w: sqlite: %s: %v", catalog.ErrUnavailable, op, err)
}
