package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCookieCodec_EncodeDecode(t *testing.T) {
	codec := NewCookieCodec("test-secret", SessionTTL, false)

	value, err := codec.Encode("session-123")
	require.NoError(t, err)
	require.NotEmpty(t, value)

	id, err := codec.Decode(value)
	require.NoError(t, err)
	assert.Equal(t, "session-123", id)
}

func TestCookieCodec_DecodeRejects(t *testing.T) {
	codec := NewCookieCodec("test-secret", SessionTTL, false)
	value, err := codec.Encode("session-123")
	require.NoError(t, err)

	otherCodec := NewCookieCodec("other-secret", SessionTTL, false)
	_, err = otherCodec.Decode(value)
	assert.ErrorIs(t, err, ErrInvalidCookie)

	_, err = codec.Decode(value + "x")
	assert.ErrorIs(t, err, ErrInvalidCookie)

	_, err = codec.Decode("not-a-jwt")
	assert.ErrorIs(t, err, ErrInvalidCookie)

	_, err = codec.Decode("")
	assert.ErrorIs(t, err, ErrInvalidCookie)

	// alg none must not be accepted
	unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.RegisteredClaims{
		ID:        "session-123",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	_, err = codec.Decode(unsigned)
	assert.ErrorIs(t, err, ErrInvalidCookie)
}

func TestCookieCodec_Expired(t *testing.T) {
	now := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	codec := NewCookieCodec("test-secret", SessionTTL, false)
	codec.NowFunc = func() time.Time { return now }

	value, err := codec.Encode("session-123")
	require.NoError(t, err)

	now = now.Add(SessionTTL + time.Minute)
	_, err = codec.Decode(value)
	assert.ErrorIs(t, err, ErrInvalidCookie)
	assert.ErrorIs(t, err, jwt.ErrTokenExpired)
}

func TestCookieCodec_SetAndReadCookie(t *testing.T) {
	codec := NewCookieCodec("test-secret", SessionTTL, true)

	rr := httptest.NewRecorder()
	require.NoError(t, codec.SetCookie(rr, "session-123"))

	cookies := rr.Result().Cookies()
	require.Len(t, cookies, 1)
	cookie := cookies[0]
	assert.Equal(t, CookieName, cookie.Name)
	assert.Equal(t, "/", cookie.Path)
	assert.Equal(t, int(SessionTTL/time.Second), cookie.MaxAge)
	assert.True(t, cookie.HttpOnly)
	assert.True(t, cookie.Secure)
	assert.Equal(t, http.SameSiteLaxMode, cookie.SameSite)

	req := httptest.NewRequest(http.MethodGet, "/admin", nil)
	req.AddCookie(cookie)
	id, err := codec.SessionID(req)
	require.NoError(t, err)
	assert.Equal(t, "session-123", id)

	req = httptest.NewRequest(http.MethodGet, "/admin", nil)
	_, err = codec.SessionID(req)
	assert.ErrorIs(t, err, ErrNoSession)
}

func TestCookieCodec_ClearCookie(t *testing.T) {
	codec := NewCookieCodec("test-secret", SessionTTL, false)

	rr := httptest.NewRecorder()
	codec.ClearCookie(rr)

	cookies := rr.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, CookieName, cookies[0].Name)
	assert.Empty(t, cookies[0].Value)
	assert.Equal(t, -1, cookies[0].MaxAge)
	assert.False(t, cookies[0].Secure)
}
