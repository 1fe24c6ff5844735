package auth

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const CookieName = "contactdesk_session"

var ErrInvalidCookie = errors.New("invalid session cookie")

// CookieCodec signs the session id into the cookie value, so a forged or
// tampered cookie is rejected before the session store is asked.
type CookieCodec struct {
	secret []byte
	ttl    time.Duration
	Secure bool

	NowFunc func() time.Time
}

func NewCookieCodec(secret string, ttl time.Duration, secure bool) *CookieCodec {
	return &CookieCodec{
		secret:  []byte(secret),
		ttl:     ttl,
		Secure:  secure,
		NowFunc: time.Now,
	}
}

func (c *CookieCodec) Encode(sessionID string) (string, error) {
	now := c.NowFunc()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		ID:        sessionID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(c.ttl)),
	})

	signed, err := token.SignedString(c.secret)
	if err != nil {
		return "", fmt.Errorf("sign session cookie: %w", err)
	}

	return signed, nil
}

func (c *CookieCodec) Decode(value string) (string, error) {
	claims := &jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(
		value,
		claims,
		func(t *jwt.Token) (interface{}, error) {
			return c.secret, nil
		},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(c.NowFunc),
	)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidCookie, err)
	}

	if !token.Valid || claims.ID == "" {
		return "", ErrInvalidCookie
	}

	return claims.ID, nil
}

// SessionID reads the session id from the request cookie.
func (c *CookieCodec) SessionID(r *http.Request) (string, error) {
	cookie, err := r.Cookie(CookieName)
	if err != nil {
		return "", ErrNoSession
	}
	if cookie.Value == "" {
		return "", ErrNoSession
	}
	return c.Decode(cookie.Value)
}

func (c *CookieCodec) SetCookie(w http.ResponseWriter, sessionID string) error {
	value, err := c.Encode(sessionID)
	if err != nil {
		return err
	}

	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    value,
		Path:     "/",
		MaxAge:   int(c.ttl / time.Second),
		Expires:  c.NowFunc().Add(c.ttl),
		HttpOnly: true,
		Secure:   c.Secure,
		SameSite: http.SameSiteLaxMode,
	})

	return nil
}

func (c *CookieCodec) ClearCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		Expires:  time.Unix(0, 0),
		HttpOnly: true,
		Secure:   c.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}
