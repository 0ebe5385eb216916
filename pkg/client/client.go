// Package client is a typed Go client for the movie-catalog REST API. The
// web UI consumes the API exclusively through it, and it doubles as the
// integration surface for other Go programs.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// Client carries the base URL, an optional bearer token and the underlying
// HTTP client. It is cheap to construct; the web UI builds one per request
// with the token taken from the session.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

// New creates a Client for the API at baseURL (e.g. "http://localhost:8080").
func New(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// WithToken returns a copy of the client that authenticates with the given
// bearer token.
func (c *Client) WithToken(token string) *Client {
	cp := *c
	cp.token = token
	return &cp
}

// Token returns the bearer token the client currently sends.
func (c *Client) Token() string { return c.token }

// ----- wire types -----

// User is the account part of auth responses.
type User struct {
	ID    uint64 `json:"id"`
	Email string `json:"email"`
}

// Movie mirrors the server's movie representation.
type Movie struct {
	ID             uint64    `json:"id"`
	UserID         uint64    `json:"userId"`
	Title          string    `json:"title"`
	PublishingYear int       `json:"publishingYear"`
	Poster         *string   `json:"poster"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

// Pagination describes one page of a movie listing.
type Pagination struct {
	Page  int `json:"page"`
	Limit int `json:"limit"`
	Total int `json:"total"`
	Pages int `json:"pages"`
}

// MovieList is the payload of GET /api/movies.
type MovieList struct {
	Movies     []Movie
	Pagination Pagination
}

// AuthResult is the payload of register/login.
type AuthResult struct {
	Token string `json:"token"`
	User  User   `json:"user"`
}

// PosterUpload names a poster file streamed into a create or update call.
type PosterUpload struct {
	Filename string
	Reader   io.Reader
}

// APIError is any non-2xx answer from the server. Fields holds the
// field-level validation messages of a 400, keyed by field name.
type APIError struct {
	Status  int
	Message string
	Fields  map[string]string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("api: %d %s", e.Status, e.Message)
	}
	return fmt.Sprintf("api: status %d", e.Status)
}

// IsNotFound reports whether err is a 404 from the API.
func IsNotFound(err error) bool {
	var ae *APIError
	return asAPIError(err, &ae) && ae.Status == http.StatusNotFound
}

// IsUnauthorized reports whether err is a 401 from the API, meaning the
// session token is missing, invalid or expired.
func IsUnauthorized(err error) bool {
	var ae *APIError
	return asAPIError(err, &ae) && ae.Status == http.StatusUnauthorized
}

func asAPIError(err error, target **APIError) bool {
	ae, ok := err.(*APIError)
	if ok {
		*target = ae
	}
	return ok
}

// ----- auth -----

// Register creates an account and returns the issued token and user.
func (c *Client) Register(ctx context.Context, email, password string) (*AuthResult, error) {
	var out AuthResult
	if err := c.doJSON(ctx, http.MethodPost, "/api/auth/register",
		map[string]string{"email": email, "password": password}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Login exchanges credentials for a token and user.
func (c *Client) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	var out AuthResult
	if err := c.doJSON(ctx, http.MethodPost, "/api/auth/login",
		map[string]string{"email": email, "password": password}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Me returns the user the client's token belongs to.
func (c *Client) Me(ctx context.Context) (*User, error) {
	var out struct {
		User User `json:"user"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/api/auth/me", nil, &out); err != nil {
		return nil, err
	}
	return &out.User, nil
}

// ----- movies -----

// ListMovies fetches one page of the caller's catalog. Zero page or limit
// let the server apply its defaults.
func (c *Client) ListMovies(ctx context.Context, page, limit int) (*MovieList, error) {
	path := "/api/movies"
	q := []string{}
	if page > 0 {
		q = append(q, "page="+strconv.Itoa(page))
	}
	if limit > 0 {
		q = append(q, "limit="+strconv.Itoa(limit))
	}
	if len(q) > 0 {
		path += "?" + strings.Join(q, "&")
	}
	var out struct {
		Data       []Movie    `json:"data"`
		Pagination Pagination `json:"pagination"`
	}
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return &MovieList{Movies: out.Data, Pagination: out.Pagination}, nil
}

// GetMovie fetches a single movie by id.
func (c *Client) GetMovie(ctx context.Context, id uint64) (*Movie, error) {
	var out struct {
		Data Movie `json:"data"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/api/movies/"+strconv.FormatUint(id, 10), nil, &out); err != nil {
		return nil, err
	}
	return &out.Data, nil
}

// CreateMovie creates a catalog entry; poster may be nil.
func (c *Client) CreateMovie(ctx context.Context, title string, publishingYear int, poster *PosterUpload) (*Movie, error) {
	fields := map[string]string{
		"title":          title,
		"publishingYear": strconv.Itoa(publishingYear),
	}
	var out struct {
		Data Movie `json:"data"`
	}
	if err := c.doMultipart(ctx, http.MethodPost, "/api/movies", fields, poster, &out); err != nil {
		return nil, err
	}
	return &out.Data, nil
}

// MovieChanges names the fields an UpdateMovie call carries; nil fields are
// left untouched on the server.
type MovieChanges struct {
	Title          *string
	PublishingYear *int
}

// UpdateMovie applies a partial update; poster may be nil to keep the
// stored file.
func (c *Client) UpdateMovie(ctx context.Context, id uint64, changes MovieChanges, poster *PosterUpload) (*Movie, error) {
	fields := map[string]string{}
	if changes.Title != nil {
		fields["title"] = *changes.Title
	}
	if changes.PublishingYear != nil {
		fields["publishingYear"] = strconv.Itoa(*changes.PublishingYear)
	}
	var out struct {
		Data Movie `json:"data"`
	}
	path := "/api/movies/" + strconv.FormatUint(id, 10)
	if err := c.doMultipart(ctx, http.MethodPut, path, fields, poster, &out); err != nil {
		return nil, err
	}
	return &out.Data, nil
}

// DeleteMovie removes a movie and its poster.
func (c *Client) DeleteMovie(ctx context.Context, id uint64) error {
	return c.doJSON(ctx, http.MethodDelete, "/api/movies/"+strconv.FormatUint(id, 10), nil, nil)
}

// ----- transport -----

func (c *Client) doJSON(ctx context.Context, method, path string, body, out any) error {
	var rd io.Reader
	if body != nil {
		bs, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		rd = bytes.NewReader(bs)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rd)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.send(req, out)
}

// doMultipart builds the multipart body in memory; posters are capped at
// 5MB server-side, so buffering stays small.
func (c *Client) doMultipart(ctx context.Context, method, path string, fields map[string]string, poster *PosterUpload, out any) error {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			return fmt.Errorf("write field %s: %w", k, err)
		}
	}
	if poster != nil {
		fw, err := mw.CreateFormFile("poster", poster.Filename)
		if err != nil {
			return fmt.Errorf("create poster part: %w", err)
		}
		if _, err := io.Copy(fw, poster.Reader); err != nil {
			return fmt.Errorf("copy poster: %w", err)
		}
	}
	if err := mw.Close(); err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return c.send(req, out)
}

func (c *Client) send(req *http.Request, out any) error {
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeAPIError(resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// decodeAPIError understands both error shapes the server produces: a plain
// {"error": "..."} and the validation {"errors": [{field,message}]} array.
func decodeAPIError(resp *http.Response) error {
	ae := &APIError{Status: resp.StatusCode}
	var body struct {
		Error  string `json:"error"`
		Errors []struct {
			Field   string `json:"field"`
			Message string `json:"message"`
		} `json:"errors"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err == nil {
		ae.Message = body.Error
		if len(body.Errors) > 0 {
			ae.Fields = make(map[string]string, len(body.Errors))
			for _, fe := range body.Errors {
				ae.Fields[fe.Field] = fe.Message
			}
			if ae.Message == "" {
				ae.Message = body.Errors[0].Message
			}
		}
	}
	return ae
}
