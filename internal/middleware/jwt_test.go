package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"

	"github.com/iliyamo/movie-catalog/internal/utils"
)

func runJWT(t *testing.T, authorization string) (*httptest.ResponseRecorder, interface{}) {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/api/movies", nil)
	if authorization != "" {
		req.Header.Set("Authorization", authorization)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	var captured interface{}
	next := func(c echo.Context) error {
		captured = c.Get("user_id")
		return c.NoContent(http.StatusOK)
	}
	assert.NoError(t, JWTAuth("test-secret")(next)(c))
	return rec, captured
}

func TestJWTAuth_ValidToken(t *testing.T) {
	tok, err := utils.NewAccessToken("test-secret", 99, 15)
	assert.NoError(t, err)

	rec, uid := runJWT(t, "Bearer "+tok.Token)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, uint64(99), uid)
}

func TestJWTAuth_MissingHeader(t *testing.T) {
	rec, uid := runJWT(t, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Nil(t, uid)
}

func TestJWTAuth_MalformedHeader(t *testing.T) {
	rec, _ := runJWT(t, "Token abcdef")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestJWTAuth_BadSignature(t *testing.T) {
	tok, err := utils.NewAccessToken("other-secret", 99, 15)
	assert.NoError(t, err)

	rec, uid := runJWT(t, "Bearer "+tok.Token)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Nil(t, uid)
}

func TestJWTAuth_ExpiredToken(t *testing.T) {
	tok, err := utils.NewAccessToken("test-secret", 99, -1)
	assert.NoError(t, err)

	rec, _ := runJWT(t, "Bearer "+tok.Token)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
