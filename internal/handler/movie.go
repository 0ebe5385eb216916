package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/movie-catalog/internal/queue"
	"github.com/iliyamo/movie-catalog/internal/repository"
	"github.com/iliyamo/movie-catalog/internal/upload"
)

// Pagination defaults for the list endpoint; limit is capped so a client
// cannot request the whole table in one page.
const (
	defaultPage  = 1
	defaultLimit = 8
	maxLimit     = 100
)

// MovieHandler bundles the stores and the event publisher for the movie
// endpoints. Publish may be nil (tests, broker-less deployments); when set
// it is called best-effort after each successful mutation.
type MovieHandler struct {
	Movies  MovieStore
	Posters PosterStore
	Publish func(ctx context.Context, ev queue.MovieEvent) error
}

func NewMovieHandler(movies MovieStore, posters PosterStore) *MovieHandler {
	if movies == nil || posters == nil {
		panic("nil store passed to NewMovieHandler")
	}
	return &MovieHandler{Movies: movies, Posters: posters}
}

type paginationPart struct {
	Page  int `json:"page"`
	Limit int `json:"limit"`
	Total int `json:"total"`
	Pages int `json:"pages"`
}

// List handles GET /api/movies and returns one page of the caller's
// catalog, newest first. page and limit fall back to their defaults when
// absent or non-numeric.
func (h *MovieHandler) List(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}

	page, err := strconv.Atoi(c.QueryParam("page"))
	if err != nil || page < 1 {
		page = defaultPage
	}
	limit, err := strconv.Atoi(c.QueryParam("limit"))
	if err != nil || limit < 1 {
		limit = defaultLimit
	}
	if limit > maxLimit {
		limit = maxLimit
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	movies, total, err := h.Movies.ListByOwner(ctx, uid, page, limit)
	if err != nil {
		c.Logger().Errorf("list movies: %v", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "could not fetch movies"})
	}

	return c.JSON(http.StatusOK, echo.Map{
		"success": true,
		"data":    movies,
		"pagination": paginationPart{
			Page:  page,
			Limit: limit,
			Total: total,
			Pages: repository.Pages(total, limit),
		},
	})
}

// Get handles GET /api/movies/:id. A movie owned by another user answers
// 404 exactly like a missing one.
func (h *MovieHandler) Get(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	m, err := h.Movies.GetByIDAndOwner(ctx, id, uid)
	if err != nil {
		if errors.Is(err, repository.ErrMovieNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "movie not found"})
		}
		c.Logger().Errorf("get movie: %v", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "could not fetch movie"})
	}

	return c.JSON(http.StatusOK, echo.Map{"success": true, "data": m})
}

// Create handles POST /api/movies (multipart: title, publishingYear and an
// optional poster file). The owning user always comes from the token, never
// from the request body.
func (h *MovieHandler) Create(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}

	title := strings.TrimSpace(c.FormValue("title"))
	yearStr := strings.TrimSpace(c.FormValue("publishingYear"))

	var errs []fieldError
	if title == "" {
		errs = append(errs, fieldError{Field: "title", Message: "title is required"})
	}
	year, convErr := strconv.Atoi(yearStr)
	if convErr != nil {
		errs = append(errs, fieldError{Field: "publishingYear", Message: "a valid year is required"})
	} else if year < minPublishingYear || year > maxPublishingYear() {
		errs = append(errs, fieldError{Field: "publishingYear", Message: yearBoundsMessage()})
	}
	if len(errs) > 0 {
		return badRequest(c, errs)
	}

	var posterRef *string
	if fh, err := c.FormFile("poster"); err == nil && fh != nil {
		name, err := h.Posters.SavePoster(fh)
		if err != nil {
			if fe, ok := posterFieldError(err); ok {
				return badRequest(c, []fieldError{fe})
			}
			c.Logger().Errorf("create movie: save poster: %v", err)
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "could not store poster"})
		}
		posterRef = &name
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	m := &repository.Movie{
		UserID:         uid,
		Title:          title,
		PublishingYear: year,
		Poster:         posterRef,
	}
	if err := h.Movies.Create(ctx, m); err != nil {
		c.Logger().Errorf("create movie: %v", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "could not create movie"})
	}

	h.publish(ctx, queue.MovieCreated, m)
	return c.JSON(http.StatusCreated, echo.Map{"success": true, "data": m})
}

// Update handles PUT /api/movies/:id (multipart, every field optional).
// A field is applied only when the form actually carries it; a carried but
// invalid value (an empty title, publishingYear=0) is a validation error
// rather than a silent skip. A new poster replaces the stored file.
func (h *MovieHandler) Update(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	existing, err := h.Movies.GetByIDAndOwner(ctx, id, uid)
	if err != nil {
		if errors.Is(err, repository.ErrMovieNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "movie not found"})
		}
		c.Logger().Errorf("update movie: fetch: %v", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "could not fetch movie"})
	}

	form, err := c.MultipartForm()
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}

	var patch repository.MoviePatch
	var errs []fieldError

	if vals, ok := form.Value["title"]; ok && len(vals) > 0 {
		title := strings.TrimSpace(vals[0])
		if title == "" {
			errs = append(errs, fieldError{Field: "title", Message: "title cannot be empty"})
		} else {
			patch.Title = &title
		}
	}
	if vals, ok := form.Value["publishingYear"]; ok && len(vals) > 0 {
		year, convErr := strconv.Atoi(strings.TrimSpace(vals[0]))
		if convErr != nil {
			errs = append(errs, fieldError{Field: "publishingYear", Message: "a valid year is required"})
		} else if year < minPublishingYear || year > maxPublishingYear() {
			errs = append(errs, fieldError{Field: "publishingYear", Message: yearBoundsMessage()})
		} else {
			patch.PublishingYear = &year
		}
	}
	if len(errs) > 0 {
		return badRequest(c, errs)
	}

	if files, ok := form.File["poster"]; ok && len(files) > 0 {
		name, err := h.Posters.SavePoster(files[0])
		if err != nil {
			if fe, ok := posterFieldError(err); ok {
				return badRequest(c, []fieldError{fe})
			}
			c.Logger().Errorf("update movie: save poster: %v", err)
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "could not store poster"})
		}
		patch.Poster = &name
	}

	if err := h.Movies.Update(ctx, id, uid, patch); err != nil {
		if errors.Is(err, repository.ErrMovieNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "movie not found"})
		}
		c.Logger().Errorf("update movie: %v", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "could not update movie"})
	}

	// The replaced poster file has no referent anymore; drop it.
	if patch.Poster != nil && existing.Poster != nil && *existing.Poster != *patch.Poster {
		if err := h.Posters.Remove(*existing.Poster); err != nil {
			c.Logger().Warnf("update movie: remove old poster %s: %v", *existing.Poster, err)
		}
	}

	updated, err := h.Movies.GetByIDAndOwner(ctx, id, uid)
	if err != nil {
		c.Logger().Errorf("update movie: reload: %v", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "could not fetch movie"})
	}

	h.publish(ctx, queue.MovieUpdated, updated)
	return c.JSON(http.StatusOK, echo.Map{"success": true, "data": updated})
}

// Delete handles DELETE /api/movies/:id. The poster file is removed along
// with the record; a failed file removal is logged, not surfaced.
func (h *MovieHandler) Delete(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	existing, err := h.Movies.GetByIDAndOwner(ctx, id, uid)
	if err != nil {
		if errors.Is(err, repository.ErrMovieNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "movie not found"})
		}
		c.Logger().Errorf("delete movie: fetch: %v", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "could not fetch movie"})
	}

	if err := h.Movies.DeleteByIDAndOwner(ctx, id, uid); err != nil {
		if errors.Is(err, repository.ErrMovieNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "movie not found"})
		}
		c.Logger().Errorf("delete movie: %v", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "could not delete movie"})
	}

	if existing.Poster != nil {
		if err := h.Posters.Remove(*existing.Poster); err != nil {
			c.Logger().Warnf("delete movie: remove poster %s: %v", *existing.Poster, err)
		}
	}

	h.publish(ctx, queue.MovieDeleted, existing)
	return c.JSON(http.StatusOK, echo.Map{"success": true, "message": "movie deleted"})
}

// publish emits a lifecycle event when a publisher is wired. Failures are
// already logged by the publisher and never affect the response.
func (h *MovieHandler) publish(ctx context.Context, action string, m *repository.Movie) {
	if h.Publish == nil {
		return
	}
	ev := queue.MovieEvent{
		Action:         action,
		MovieID:        m.ID,
		UserID:         m.UserID,
		Title:          m.Title,
		PublishingYear: m.PublishingYear,
		OccurredAt:     time.Now().UTC().Format(time.RFC3339),
	}
	if m.Poster != nil {
		ev.Poster = *m.Poster
	}
	_ = h.Publish(ctx, ev)
}

// posterFieldError maps upload validation sentinels to a 400 field error.
func posterFieldError(err error) (fieldError, bool) {
	switch {
	case errors.Is(err, upload.ErrNotImage):
		return fieldError{Field: "poster", Message: "poster must be an image file"}, true
	case errors.Is(err, upload.ErrTooLarge):
		return fieldError{Field: "poster", Message: "poster must be 5MB or smaller"}, true
	}
	return fieldError{}, false
}

func yearBoundsMessage() string {
	return "publishing year must be between " + strconv.Itoa(minPublishingYear) +
		" and " + strconv.Itoa(maxPublishingYear())
}
