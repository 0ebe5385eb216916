// Package repository contains data access logic separated from HTTP handlers.
// This file defines the Movie model and repository methods for the per-user
// movie catalog. Every query is filtered by the owning user id, so a movie
// that exists but belongs to someone else is indistinguishable from one that
// does not exist at all.
package repository

import (
	"context"      // context allows passing deadlines and cancellation signals to DB operations
	"database/sql" // sql provides generic database operations and drivers
	"errors"       // errors is used to define custom error values
	"strings"      // strings builds the dynamic SET clause for partial updates
	"time"         // time holds the record timestamps
)

// Movie represents a catalog entry persisted in the database. Each movie
// belongs to a single user. Poster is a pointer so that "no poster" survives
// the round trip to JSON as null rather than an empty string.
type Movie struct {
	ID             uint64    `json:"id"`
	UserID         uint64    `json:"userId"`
	Title          string    `json:"title"`
	PublishingYear int       `json:"publishingYear"`
	Poster         *string   `json:"poster"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

// MoviePatch carries the fields of a partial update. A nil field means the
// client did not supply it and the stored value is kept; a non-nil field is
// applied as-is. Presence is decided by the handler from the request body,
// never from zero values, so publishingYear=0 or an empty title reach the
// validator instead of being silently skipped.
type MoviePatch struct {
	Title          *string
	PublishingYear *int
	Poster         *string
}

// ErrMovieNotFound is returned when a movie does not exist for the given
// owner. Ownership mismatches deliberately map to the same error so that
// handlers answer 404 either way.
var ErrMovieNotFound = errors.New("movie not found")

// MovieRepo encapsulates all database queries related to movies.
type MovieRepo struct {
	db *sql.DB
}

// NewMovieRepo constructs a MovieRepo with the provided DB handle.
func NewMovieRepo(db *sql.DB) *MovieRepo {
	return &MovieRepo{db: db}
}

// Create inserts a new movie. On success the movie's ID field is populated
// with the auto-generated value and a follow-up SELECT fills the timestamp
// fields so that callers receive a fully populated record.
func (r *MovieRepo) Create(ctx context.Context, m *Movie) error {
	const qInsert = "INSERT INTO movies (user_id, title, publishing_year, poster) VALUES (?, ?, ?, ?)"
	res, err := r.db.ExecContext(ctx, qInsert, m.UserID, m.Title, m.PublishingYear, m.Poster)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	m.ID = uint64(id)

	const qSelect = "SELECT created_at, updated_at FROM movies WHERE id = ?"
	return r.db.QueryRowContext(ctx, qSelect, m.ID).Scan(&m.CreatedAt, &m.UpdatedAt)
}

// GetByIDAndOwner fetches a movie by id but only if it belongs to the
// specified user. If the movie doesn't exist or is owned by someone else,
// ErrMovieNotFound is returned.
func (r *MovieRepo) GetByIDAndOwner(ctx context.Context, id, userID uint64) (*Movie, error) {
	const q = `SELECT id, user_id, title, publishing_year, poster, created_at, updated_at
	           FROM movies WHERE id = ? AND user_id = ?`
	var m Movie
	if err := r.db.QueryRowContext(ctx, q, id, userID).Scan(
		&m.ID, &m.UserID, &m.Title, &m.PublishingYear, &m.Poster, &m.CreatedAt, &m.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrMovieNotFound
		}
		return nil, err
	}
	return &m, nil
}

// ListByOwner returns one page of the user's movies ordered by descending
// creation time, together with the total number of movies the user owns.
// page is 1-based; the offset is (page-1)*limit.
func (r *MovieRepo) ListByOwner(ctx context.Context, userID uint64, page, limit int) ([]*Movie, int, error) {
	var total int
	if err := r.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM movies WHERE user_id = ?", userID).Scan(&total); err != nil {
		return nil, 0, err
	}

	const q = `SELECT id, user_id, title, publishing_year, poster, created_at, updated_at
	           FROM movies WHERE user_id = ?
	           ORDER BY created_at DESC, id DESC
	           LIMIT ? OFFSET ?`
	rows, err := r.db.QueryContext(ctx, q, userID, limit, (page-1)*limit)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	out := []*Movie{}
	for rows.Next() {
		m := new(Movie)
		if err := rows.Scan(&m.ID, &m.UserID, &m.Title, &m.PublishingYear, &m.Poster,
			&m.CreatedAt, &m.UpdatedAt); err != nil {
			return nil, 0, err
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

// Update applies the non-nil fields of patch to the movie owned by userID.
// updated_at is always refreshed. It returns ErrMovieNotFound when no row
// matches (absent or not owned) and is a no-op error-free call when the
// patch carries no fields.
func (r *MovieRepo) Update(ctx context.Context, id, userID uint64, p MoviePatch) error {
	sets := []string{}
	args := []any{}
	if p.Title != nil {
		sets = append(sets, "title = ?")
		args = append(args, *p.Title)
	}
	if p.PublishingYear != nil {
		sets = append(sets, "publishing_year = ?")
		args = append(args, *p.PublishingYear)
	}
	if p.Poster != nil {
		sets = append(sets, "poster = ?")
		args = append(args, *p.Poster)
	}
	if len(sets) == 0 {
		// Nothing to change; existence was already checked by the caller.
		return nil
	}
	sets = append(sets, "updated_at = CURRENT_TIMESTAMP(3)")

	q := "UPDATE movies SET " + strings.Join(sets, ", ") + " WHERE id = ? AND user_id = ?"
	args = append(args, id, userID)
	res, err := r.db.ExecContext(ctx, q, args...)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrMovieNotFound
	}
	return nil
}

// DeleteByIDAndOwner removes a movie provided it belongs to the user.
// It returns ErrMovieNotFound when no row is affected.
func (r *MovieRepo) DeleteByIDAndOwner(ctx context.Context, id, userID uint64) error {
	res, err := r.db.ExecContext(ctx,
		"DELETE FROM movies WHERE id = ? AND user_id = ?", id, userID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrMovieNotFound
	}
	return nil
}

// Pages computes the page count for a total row count and page size:
// ceil(total/limit), with 0 pages for an empty result set.
func Pages(total, limit int) int {
	if limit <= 0 || total <= 0 {
		return 0
	}
	return (total + limit - 1) / limit
}
