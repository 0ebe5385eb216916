package handler

// In-memory fakes backing the handler tests. MySQL cannot run inside a test
// process, so these implement the store interfaces with the same observable
// behavior the repositories have: sentinel errors, owner filtering, newest
// first ordering and offset pagination.

import (
	"context"
	"database/sql"
	"fmt"
	"mime/multipart"
	"sort"
	"strings"
	"time"

	"github.com/iliyamo/movie-catalog/internal/repository"
	"github.com/iliyamo/movie-catalog/internal/utils"
)

type fakeUserStore struct {
	nextID  uint64
	byEmail map[string]repository.User
}

func newFakeUserStore() *fakeUserStore {
	return &fakeUserStore{byEmail: map[string]repository.User{}}
}

func (f *fakeUserStore) Create(_ context.Context, email, password string, cost int) (uint64, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if _, ok := f.byEmail[email]; ok {
		return 0, repository.ErrEmailExists
	}
	hash, err := utils.HashPassword(password, cost)
	if err != nil {
		return 0, err
	}
	f.nextID++
	now := time.Now().UTC()
	f.byEmail[email] = repository.User{
		ID: f.nextID, Email: email, PasswordHash: hash, CreatedAt: now, UpdatedAt: now,
	}
	return f.nextID, nil
}

func (f *fakeUserStore) GetByEmail(_ context.Context, email string) (repository.User, error) {
	u, ok := f.byEmail[strings.ToLower(strings.TrimSpace(email))]
	if !ok {
		return repository.User{}, sql.ErrNoRows
	}
	return u, nil
}

func (f *fakeUserStore) GetByID(_ context.Context, id uint64) (repository.User, error) {
	for _, u := range f.byEmail {
		if u.ID == id {
			return u, nil
		}
	}
	return repository.User{}, sql.ErrNoRows
}

type fakeMovieStore struct {
	nextID uint64
	movies map[uint64]*repository.Movie
	clock  time.Time
}

func newFakeMovieStore() *fakeMovieStore {
	return &fakeMovieStore{
		movies: map[uint64]*repository.Movie{},
		clock:  time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

// tick advances the fake clock so created/updated timestamps are strictly
// increasing without sleeping in tests.
func (f *fakeMovieStore) tick() time.Time {
	f.clock = f.clock.Add(time.Millisecond)
	return f.clock
}

func (f *fakeMovieStore) Create(_ context.Context, m *repository.Movie) error {
	f.nextID++
	m.ID = f.nextID
	now := f.tick()
	m.CreatedAt = now
	m.UpdatedAt = now
	cp := *m
	f.movies[m.ID] = &cp
	return nil
}

func (f *fakeMovieStore) GetByIDAndOwner(_ context.Context, id, userID uint64) (*repository.Movie, error) {
	m, ok := f.movies[id]
	if !ok || m.UserID != userID {
		return nil, repository.ErrMovieNotFound
	}
	cp := *m
	return &cp, nil
}

func (f *fakeMovieStore) ListByOwner(_ context.Context, userID uint64, page, limit int) ([]*repository.Movie, int, error) {
	owned := []*repository.Movie{}
	for _, m := range f.movies {
		if m.UserID == userID {
			cp := *m
			owned = append(owned, &cp)
		}
	}
	sort.Slice(owned, func(i, j int) bool {
		if !owned[i].CreatedAt.Equal(owned[j].CreatedAt) {
			return owned[i].CreatedAt.After(owned[j].CreatedAt)
		}
		return owned[i].ID > owned[j].ID
	})
	total := len(owned)
	start := (page - 1) * limit
	if start >= total {
		return []*repository.Movie{}, total, nil
	}
	end := start + limit
	if end > total {
		end = total
	}
	return owned[start:end], total, nil
}

func (f *fakeMovieStore) Update(_ context.Context, id, userID uint64, p repository.MoviePatch) error {
	m, ok := f.movies[id]
	if !ok || m.UserID != userID {
		return repository.ErrMovieNotFound
	}
	if p.Title != nil {
		m.Title = *p.Title
	}
	if p.PublishingYear != nil {
		m.PublishingYear = *p.PublishingYear
	}
	if p.Poster != nil {
		m.Poster = p.Poster
	}
	m.UpdatedAt = f.tick()
	return nil
}

func (f *fakeMovieStore) DeleteByIDAndOwner(_ context.Context, id, userID uint64) error {
	m, ok := f.movies[id]
	if !ok || m.UserID != userID {
		return repository.ErrMovieNotFound
	}
	delete(f.movies, id)
	return nil
}

type fakePosterStore struct {
	saveErr error
	n       int
	saved   []string
	removed []string
}

func (f *fakePosterStore) SavePoster(_ *multipart.FileHeader) (string, error) {
	if f.saveErr != nil {
		return "", f.saveErr
	}
	f.n++
	name := fmt.Sprintf("poster-%d.png", f.n)
	f.saved = append(f.saved, name)
	return name, nil
}

func (f *fakePosterStore) Remove(name string) error {
	f.removed = append(f.removed, name)
	return nil
}
