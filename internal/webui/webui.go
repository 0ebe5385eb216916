// Package webui serves the server-rendered pages of the catalog: login,
// registration, the paginated movie grid and the create/edit forms. Every
// page talks to the REST API through the shared typed client rather than
// reaching into the repositories, so the UI exercises exactly the surface
// external API consumers see.
package webui

import (
	"embed"
	"html/template"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/movie-catalog/pkg/client"
)

//go:embed templates/*.html
var templatesFS embed.FS

// renderer adapts the parsed template set to echo's Renderer interface.
type renderer struct {
	tpl *template.Template
}

func (r *renderer) Render(w io.Writer, name string, data interface{}, c echo.Context) error {
	return r.tpl.ExecuteTemplate(w, name, data)
}

// WebUI holds the unauthenticated base client; per-request authenticated
// clients are derived from it with the session token.
type WebUI struct {
	api *client.Client
}

func New(api *client.Client) *WebUI {
	return &WebUI{api: api}
}

// Register parses the embedded templates, installs the renderer and wires
// the page routes onto e.
func (w *WebUI) Register(e *echo.Echo) {
	e.Renderer = &renderer{tpl: template.Must(template.ParseFS(templatesFS, "templates/*.html"))}

	e.GET("/", func(c echo.Context) error {
		return c.Redirect(http.StatusFound, "/movies")
	})
	e.GET("/login", w.loginPage)
	e.POST("/login", w.loginSubmit)
	e.GET("/register", w.registerPage)
	e.POST("/register", w.registerSubmit)
	e.POST("/logout", w.logout)
	e.GET("/movies", w.moviesPage)
	e.GET("/movies/new", w.movieNewPage)
	e.POST("/movies/new", w.movieNewSubmit)
	e.GET("/movies/:id/edit", w.movieEditPage)
	e.POST("/movies/:id/edit", w.movieEditSubmit)
	e.POST("/movies/:id/delete", w.movieDelete)
}

// ----- view data -----

type authView struct {
	Email string
	Error string
}

type gridView struct {
	Email    string
	Movies   []client.Movie
	Page     int
	Pages    int
	Total    int
	PrevPage int
	NextPage int
	Error    string
}

type formView struct {
	Email   string
	Editing bool
	ID      uint64
	Title   string
	Year    string
	Poster  string
	Error   string
}

// ----- auth pages -----

func (w *WebUI) loginPage(c echo.Context) error {
	if LoadSession(c).Check(c, w.api) {
		return c.Redirect(http.StatusFound, "/movies")
	}
	return c.Render(http.StatusOK, "login", authView{})
}

func (w *WebUI) loginSubmit(c echo.Context) error {
	email := strings.TrimSpace(c.FormValue("email"))
	password := c.FormValue("password")
	if msg := validateCredentials(email, password); msg != "" {
		return c.Render(http.StatusBadRequest, "login", authView{Email: email, Error: msg})
	}

	res, err := w.api.Login(c.Request().Context(), email, password)
	if err != nil {
		return c.Render(statusFor(err), "login", authView{Email: email, Error: userMessage(err, "login failed, try again")})
	}
	LoadSession(c).Issue(c, res.Token, &res.User)
	return c.Redirect(http.StatusFound, "/movies")
}

func (w *WebUI) registerPage(c echo.Context) error {
	if LoadSession(c).Check(c, w.api) {
		return c.Redirect(http.StatusFound, "/movies")
	}
	return c.Render(http.StatusOK, "register", authView{})
}

func (w *WebUI) registerSubmit(c echo.Context) error {
	email := strings.TrimSpace(c.FormValue("email"))
	password := c.FormValue("password")
	if msg := validateCredentials(email, password); msg != "" {
		return c.Render(http.StatusBadRequest, "register", authView{Email: email, Error: msg})
	}

	res, err := w.api.Register(c.Request().Context(), email, password)
	if err != nil {
		return c.Render(statusFor(err), "register", authView{Email: email, Error: userMessage(err, "registration failed, try again")})
	}
	LoadSession(c).Issue(c, res.Token, &res.User)
	return c.Redirect(http.StatusFound, "/movies")
}

func (w *WebUI) logout(c echo.Context) error {
	LoadSession(c).Clear(c)
	return c.Redirect(http.StatusFound, "/login")
}

// ----- movie pages -----

// requireSession runs the auth check protected views need before they
// render. It returns a checked session and the authenticated API client,
// or (nil, nil) after sending the redirect to /login.
func (w *WebUI) requireSession(c echo.Context) (*Session, *client.Client) {
	s := LoadSession(c)
	if !s.Check(c, w.api) {
		_ = c.Redirect(http.StatusFound, "/login")
		return nil, nil
	}
	return s, w.api.WithToken(s.Token)
}

func (w *WebUI) moviesPage(c echo.Context) error {
	s, api := w.requireSession(c)
	if s == nil {
		return nil
	}

	page, err := strconv.Atoi(c.QueryParam("page"))
	if err != nil || page < 1 {
		page = 1
	}

	list, err := api.ListMovies(c.Request().Context(), page, 0)
	if err != nil {
		if client.IsUnauthorized(err) {
			s.Clear(c)
			return c.Redirect(http.StatusFound, "/login")
		}
		return c.Render(http.StatusOK, "movies", gridView{Email: s.User.Email, Page: page,
			Error: "could not load your movies"})
	}

	v := gridView{
		Email:    s.User.Email,
		Movies:   list.Movies,
		Page:     list.Pagination.Page,
		Pages:    list.Pagination.Pages,
		Total:    list.Pagination.Total,
		PrevPage: list.Pagination.Page - 1,
		NextPage: list.Pagination.Page + 1,
	}
	return c.Render(http.StatusOK, "movies", v)
}

func (w *WebUI) movieNewPage(c echo.Context) error {
	s, _ := w.requireSession(c)
	if s == nil {
		return nil
	}
	return c.Render(http.StatusOK, "movie_form", formView{Email: s.User.Email})
}

func (w *WebUI) movieNewSubmit(c echo.Context) error {
	s, api := w.requireSession(c)
	if s == nil {
		return nil
	}

	title := strings.TrimSpace(c.FormValue("title"))
	yearStr := strings.TrimSpace(c.FormValue("publishingYear"))
	v := formView{Email: s.User.Email, Title: title, Year: yearStr}

	year, msg := validateMovieForm(title, yearStr)
	if msg != "" {
		v.Error = msg
		return c.Render(http.StatusBadRequest, "movie_form", v)
	}

	poster, cleanup, msg := posterFromForm(c)
	if msg != "" {
		v.Error = msg
		return c.Render(http.StatusBadRequest, "movie_form", v)
	}
	defer cleanup()

	if _, err := api.CreateMovie(c.Request().Context(), title, year, poster); err != nil {
		v.Error = userMessage(err, "could not create the movie")
		return c.Render(statusFor(err), "movie_form", v)
	}
	return c.Redirect(http.StatusFound, "/movies")
}

func (w *WebUI) movieEditPage(c echo.Context) error {
	s, api := w.requireSession(c)
	if s == nil {
		return nil
	}
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		return c.Redirect(http.StatusFound, "/movies")
	}

	m, err := api.GetMovie(c.Request().Context(), id)
	if err != nil {
		return c.Redirect(http.StatusFound, "/movies")
	}

	v := formView{
		Email:   s.User.Email,
		Editing: true,
		ID:      m.ID,
		Title:   m.Title,
		Year:    strconv.Itoa(m.PublishingYear),
	}
	if m.Poster != nil {
		v.Poster = *m.Poster
	}
	return c.Render(http.StatusOK, "movie_form", v)
}

func (w *WebUI) movieEditSubmit(c echo.Context) error {
	s, api := w.requireSession(c)
	if s == nil {
		return nil
	}
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		return c.Redirect(http.StatusFound, "/movies")
	}

	title := strings.TrimSpace(c.FormValue("title"))
	yearStr := strings.TrimSpace(c.FormValue("publishingYear"))
	v := formView{Email: s.User.Email, Editing: true, ID: id, Title: title, Year: yearStr}

	year, msg := validateMovieForm(title, yearStr)
	if msg != "" {
		v.Error = msg
		return c.Render(http.StatusBadRequest, "movie_form", v)
	}

	poster, cleanup, msg := posterFromForm(c)
	if msg != "" {
		v.Error = msg
		return c.Render(http.StatusBadRequest, "movie_form", v)
	}
	defer cleanup()

	changes := client.MovieChanges{Title: &title, PublishingYear: &year}
	if _, err := api.UpdateMovie(c.Request().Context(), id, changes, poster); err != nil {
		v.Error = userMessage(err, "could not save the movie")
		return c.Render(statusFor(err), "movie_form", v)
	}
	return c.Redirect(http.StatusFound, "/movies")
}

func (w *WebUI) movieDelete(c echo.Context) error {
	s, api := w.requireSession(c)
	if s == nil {
		return nil
	}
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err == nil {
		// A 404 here means the movie is already gone; the grid reload
		// tells the user either way.
		_ = api.DeleteMovie(c.Request().Context(), id)
	}
	return c.Redirect(http.StatusFound, "/movies")
}

// ----- form validation mirrors of the server rules -----

const (
	minYear = 1888
	// maxPosterBytes mirrors the server cap so oversized files are caught
	// before the upload round-trip.
	maxPosterBytes = 5 << 20
)

func validateCredentials(email, password string) string {
	if email == "" || !strings.Contains(email, "@") || !strings.Contains(email, ".") {
		return "enter a valid email address"
	}
	if len(password) < 6 {
		return "password must be at least 6 characters"
	}
	return ""
}

func validateMovieForm(title, yearStr string) (int, string) {
	if title == "" {
		return 0, "title is required"
	}
	year, err := strconv.Atoi(yearStr)
	if err != nil {
		return 0, "enter a valid publishing year"
	}
	if year < minYear {
		return 0, "publishing year must be " + strconv.Itoa(minYear) + " or later"
	}
	return year, ""
}

// posterFromForm extracts the optional poster file from the submitted form
// and pre-validates its size. The returned cleanup closes the opened file
// and is safe to call when no file was sent.
func posterFromForm(c echo.Context) (*client.PosterUpload, func(), string) {
	noop := func() {}
	fh, err := c.FormFile("poster")
	if err != nil || fh == nil {
		return nil, noop, ""
	}
	if fh.Size > maxPosterBytes {
		return nil, noop, "poster must be 5MB or smaller"
	}
	f, err := fh.Open()
	if err != nil {
		return nil, noop, "could not read the uploaded file"
	}
	return &client.PosterUpload{Filename: fh.Filename, Reader: f}, func() { f.Close() }, ""
}

// userMessage surfaces the first applicable API error message inline;
// network-level failures fall back to the generic one.
func userMessage(err error, fallback string) string {
	if ae, ok := err.(*client.APIError); ok && ae.Message != "" {
		return ae.Message
	}
	return fallback
}

func statusFor(err error) int {
	if ae, ok := err.(*client.APIError); ok {
		switch ae.Status {
		case http.StatusBadRequest, http.StatusConflict, http.StatusUnauthorized:
			return ae.Status
		}
	}
	return http.StatusBadGateway
}
