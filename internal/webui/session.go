package webui

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/movie-catalog/pkg/client"
)

// sessionCookie is the durable store for the session token; it is what
// survives a browser reload.
const sessionCookie = "catalog_session"

// Session is the explicit per-request session context. It is constructed
// from the incoming request, handed to every view handler, and torn down on
// logout, with no ambient global state. User is populated by Check and is nil
// until then.
type Session struct {
	Token string
	User  *client.User
}

// LoadSession builds a Session from the request's cookie. A missing cookie
// yields an empty session, which view handlers treat as "not logged in".
func LoadSession(c echo.Context) *Session {
	ck, err := c.Cookie(sessionCookie)
	if err != nil || ck.Value == "" {
		return &Session{}
	}
	return &Session{Token: ck.Value}
}

// Check verifies the stored token against the API and fills in User. It
// is the server-rendered equivalent of the client's checkAuth: protected
// views call it before rendering and redirect to login when it fails.
func (s *Session) Check(c echo.Context, api *client.Client) bool {
	if s.Token == "" {
		return false
	}
	u, err := api.WithToken(s.Token).Me(c.Request().Context())
	if err != nil {
		// Expired or forged token: drop the cookie so the next request
		// starts clean.
		s.Clear(c)
		return false
	}
	s.User = u
	return true
}

// Issue stores a freshly obtained token in the session and mirrors it into
// the cookie.
func (s *Session) Issue(c echo.Context, token string, user *client.User) {
	s.Token = token
	s.User = user
	c.SetCookie(&http.Cookie{
		Name:     sessionCookie,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

// Clear tears the session down: in-memory state and cookie both go.
func (s *Session) Clear(c echo.Context) {
	s.Token = ""
	s.User = nil
	c.SetCookie(&http.Cookie{
		Name:     sessionCookie,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   -1,
		Expires:  time.Unix(0, 0),
	})
}
