package handler

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"

	"github.com/iliyamo/movie-catalog/internal/config"
	"github.com/iliyamo/movie-catalog/internal/utils"
)

func testConfig() config.Config {
	return config.Config{
		JWTSecret:    "test-secret",
		AccessTTLMin: 15,
		BcryptCost:   4, // low cost keeps tests fast
	}
}

func newAuthHandler() (*AuthHandler, *fakeUserStore) {
	users := newFakeUserStore()
	return NewAuthHandler(testConfig(), users), users
}

// postJSON runs a JSON request through a bare echo context and returns the
// recorder, mirroring how routes invoke the handler.
func postJSON(handlerFn echo.HandlerFunc, body string) *httptest.ResponseRecorder {
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	_ = handlerFn(e.NewContext(req, rec))
	return rec
}

func TestRegister_Success(t *testing.T) {
	h, _ := newAuthHandler()

	rec := postJSON(h.Register, `{"email":"Alice@Example.com","password":"secret1"}`)
	assert.Equal(t, http.StatusCreated, rec.Code)

	var resp struct {
		Token string `json:"token"`
		User  struct {
			ID    uint64 `json:"id"`
			Email string `json:"email"`
		} `json:"user"`
	}
	assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "alice@example.com", resp.User.Email) // normalized
	assert.NotZero(t, resp.User.ID)

	// The issued token must verify against the same secret and carry the
	// new user's id.
	uid, err := utils.ParseAccessToken("test-secret", resp.Token)
	assert.NoError(t, err)
	assert.Equal(t, resp.User.ID, uid)
}

func TestRegister_Validation(t *testing.T) {
	h, _ := newAuthHandler()

	rec := postJSON(h.Register, `{"email":"not-an-email","password":"short"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	var resp struct {
		Errors []struct {
			Field   string `json:"field"`
			Message string `json:"message"`
		} `json:"errors"`
	}
	assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Len(t, resp.Errors, 2)
	fields := []string{resp.Errors[0].Field, resp.Errors[1].Field}
	assert.Contains(t, fields, "email")
	assert.Contains(t, fields, "password")
}

func TestRegister_DuplicateEmail(t *testing.T) {
	h, _ := newAuthHandler()

	rec := postJSON(h.Register, `{"email":"dup@example.com","password":"secret1"}`)
	assert.Equal(t, http.StatusCreated, rec.Code)

	rec = postJSON(h.Register, `{"email":"dup@example.com","password":"other-pass"}`)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestRegisterThenLogin_SameUserID(t *testing.T) {
	h, _ := newAuthHandler()

	rec := postJSON(h.Register, `{"email":"bob@example.com","password":"secret1"}`)
	assert.Equal(t, http.StatusCreated, rec.Code)
	var reg struct {
		User struct {
			ID uint64 `json:"id"`
		} `json:"user"`
	}
	assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &reg))

	rec = postJSON(h.Login, `{"email":"bob@example.com","password":"secret1"}`)
	assert.Equal(t, http.StatusOK, rec.Code)
	var login struct {
		Token string `json:"token"`
		User  struct {
			ID uint64 `json:"id"`
		} `json:"user"`
	}
	assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &login))
	assert.Equal(t, reg.User.ID, login.User.ID)
	assert.NotEmpty(t, login.Token)
}

func TestLogin_InvalidCredentials(t *testing.T) {
	h, _ := newAuthHandler()

	rec := postJSON(h.Register, `{"email":"carol@example.com","password":"secret1"}`)
	assert.Equal(t, http.StatusCreated, rec.Code)

	// Wrong password and unknown email must be indistinguishable.
	rec = postJSON(h.Login, `{"email":"carol@example.com","password":"wrong-pass"}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	wrongPass := rec.Body.String()

	rec = postJSON(h.Login, `{"email":"nobody@example.com","password":"secret1"}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, wrongPass, rec.Body.String())
}

func TestMe(t *testing.T) {
	h, users := newAuthHandler()
	uid, err := users.Create(t.Context(), "dave@example.com", "secret1", 4)
	assert.NoError(t, err)

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.Set("user_id", uid)

	assert.NoError(t, h.Me(c))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "dave@example.com")
}
