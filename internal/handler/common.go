package handler // handler defines http handlers

import (
    "context"        // context is part of the store interfaces
    "errors"         // errors provides the sentinel used in getUserID
    "mime/multipart" // multipart file headers flow from echo into the poster store
    "net/http"       // status codes for the validation response
    "regexp"         // regexp validates email shape
    "strconv"        // strconv converts string identifiers to numeric types
    "time"           // time derives the upper publishing-year bound

    "github.com/labstack/echo/v4" // echo defines request context types

    "github.com/iliyamo/movie-catalog/internal/repository" // repository holds the data access layer
)

// Store interfaces consumed by the handlers. The MySQL repositories satisfy
// them in production; tests substitute in-memory fakes since the database
// cannot be embedded in a test process.

// UserStore persists and looks up user accounts.
type UserStore interface {
    Create(ctx context.Context, email, password string, cost int) (uint64, error)
    GetByEmail(ctx context.Context, email string) (repository.User, error)
    GetByID(ctx context.Context, id uint64) (repository.User, error)
}

// MovieStore persists the per-user movie catalog.
type MovieStore interface {
    Create(ctx context.Context, m *repository.Movie) error
    GetByIDAndOwner(ctx context.Context, id, userID uint64) (*repository.Movie, error)
    ListByOwner(ctx context.Context, userID uint64, page, limit int) ([]*repository.Movie, int, error)
    Update(ctx context.Context, id, userID uint64, p repository.MoviePatch) error
    DeleteByIDAndOwner(ctx context.Context, id, userID uint64) error
}

// PosterStore saves and removes uploaded poster files.
type PosterStore interface {
    SavePoster(fh *multipart.FileHeader) (string, error)
    Remove(name string) error
}

// fieldError is one entry of the `errors` array in a 400 response, matching
// the field-level message shape the web client renders inline.
type fieldError struct {
    Field   string `json:"field"`
    Message string `json:"message"`
}

// badRequest answers 400 with the accumulated field errors.
func badRequest(c echo.Context, errs []fieldError) error {
    return c.JSON(http.StatusBadRequest, echo.Map{"errors": errs})
}

// Publishing year bounds: nothing on film predates 1888, and a few years of
// headroom covers announced releases.
const minPublishingYear = 1888

func maxPublishingYear() int { return time.Now().Year() + 5 }

// emailRe is deliberately loose; the unique index is the real gatekeeper,
// this only rejects obviously malformed addresses.
var emailRe = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// getUserID extracts the user_id the JWT middleware stored in the context.
func getUserID(c echo.Context) (uint64, error) {
    v := c.Get("user_id")
    switch t := v.(type) {
    case uint64:
        return t, nil
    case int:
        return uint64(t), nil
    case int64:
        return uint64(t), nil
    case float64:
        return uint64(t), nil
    case string:
        if n, err := strconv.ParseUint(t, 10, 64); err == nil {
            return n, nil
        }
    }
    return 0, errors.New("invalid user_id in context")
}
