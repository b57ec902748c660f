package session

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/hkdf"
)

// CookieCodec signs the session id cookie so a tampered id is indistinguishable
// from an absent one. The signing key is derived from the configured secret
// with HKDF, keeping the raw secret out of the MAC.
type CookieCodec struct {
	name   string
	key    []byte
	ttl    time.Duration
	secure bool
}

// NewCookieCodec derives the signing key and returns a codec.
func NewCookieCodec(name, secret string, ttl time.Duration, secure bool) (*CookieCodec, error) {
	if secret == "" {
		return nil, errors.New("session: cookie secret must be provided")
	}
	reader := hkdf.New(sha256.New, []byte(secret), nil, []byte("crewboard-session-cookie"))
	key := make([]byte, 32)
	if _, err := io.ReadFull(reader, key); err != nil {
		return nil, err
	}
	return &CookieCodec{name: name, key: key, ttl: ttl, secure: secure}, nil
}

// Name returns the cookie name.
func (c *CookieCodec) Name() string { return c.name }

// NewSessionID mints a fresh session id.
func (c *CookieCodec) NewSessionID() string {
	return uuid.NewString()
}

// Read extracts and verifies the session id from the request. An absent,
// malformed or badly signed cookie yields an empty id.
func (c *CookieCodec) Read(r *http.Request) string {
	cookie, err := r.Cookie(c.name)
	if err != nil {
		return ""
	}
	sid, sig, ok := strings.Cut(cookie.Value, ".")
	if !ok {
		return ""
	}
	want, err := base64.RawURLEncoding.DecodeString(sig)
	if err != nil {
		return ""
	}
	if !hmac.Equal(want, c.sign(sid)) {
		return ""
	}
	return sid
}

// Write sets the signed session cookie.
func (c *CookieCodec) Write(w http.ResponseWriter, sid string) {
	http.SetCookie(w, &http.Cookie{
		Name:     c.name,
		Value:    sid + "." + base64.RawURLEncoding.EncodeToString(c.sign(sid)),
		Path:     "/",
		HttpOnly: true,
		Secure:   c.secure,
		SameSite: http.SameSiteStrictMode,
		Expires:  time.Now().Add(c.ttl),
	})
}

// Drop expires the session cookie.
func (c *CookieCodec) Drop(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     c.name,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   c.secure,
		SameSite: http.SameSiteStrictMode,
	})
}

func (c *CookieCodec) sign(sid string) []byte {
	mac := hmac.New(sha256.New, c.key)
	mac.Write([]byte(sid))
	return mac.Sum(nil)
}
