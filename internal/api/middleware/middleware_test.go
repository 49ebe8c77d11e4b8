package middleware_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	mw "github.com/anupsarkar-dev/resumix/internal/api/middleware"
)

const testAPIKey = "rx_live_0123456789abcdef"

func hashKey(t *testing.T, key string) string {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(key), bcrypt.MinCost)
	require.NoError(t, err)
	return string(hash)
}

// okHandler records the owner key the middleware attached.
func okHandler(gotOwner *string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if owner, ok := mw.GetOwnerKey(r); ok {
			*gotOwner = owner
		}
		w.WriteHeader(http.StatusOK)
	})
}

func errCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var env struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&env))
	return env.Error.Code
}

func TestAuthenticate_ValidKey(t *testing.T) {
	auth := mw.NewAuth([]string{hashKey(t, testAPIKey)})

	var owner string
	handler := auth.Authenticate(okHandler(&owner))

	req := httptest.NewRequest(http.MethodPost, "/classify", nil)
	req.Header.Set("X-API-Key", testAPIKey)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, testAPIKey[:8], owner, "owner identity is the key prefix")
}

func TestAuthenticate_MissingHeader(t *testing.T) {
	auth := mw.NewAuth([]string{hashKey(t, testAPIKey)})
	handler := auth.Authenticate(okHandler(new(string)))

	req := httptest.NewRequest(http.MethodPost, "/classify", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "INVALID_TOKEN", errCode(t, rec))
}

func TestAuthenticate_UnknownKey(t *testing.T) {
	auth := mw.NewAuth([]string{hashKey(t, testAPIKey)})
	handler := auth.Authenticate(okHandler(new(string)))

	req := httptest.NewRequest(http.MethodPost, "/classify", nil)
	req.Header.Set("X-API-Key", "rx_live_totally_wrong_key")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "INVALID_TOKEN", errCode(t, rec))
}

func TestAuthenticate_KeyTooShort(t *testing.T) {
	auth := mw.NewAuth([]string{hashKey(t, testAPIKey)})
	handler := auth.Authenticate(okHandler(new(string)))

	req := httptest.NewRequest(http.MethodPost, "/classify", nil)
	req.Header.Set("X-API-Key", "short")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuthenticate_SecondConfiguredKeyMatches(t *testing.T) {
	other := "rx_live_fedcba9876543210"
	auth := mw.NewAuth([]string{hashKey(t, testAPIKey), hashKey(t, other)})

	var owner string
	handler := auth.Authenticate(okHandler(&owner))

	req := httptest.NewRequest(http.MethodPost, "/classify", nil)
	req.Header.Set("X-API-Key", other)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, other[:8], owner)
}
