package session

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func newTestCodec(t *testing.T) *CookieCodec {
	t.Helper()
	codec, err := NewCookieCodec("crewboard_session", "test-secret", time.Hour, false)
	require.NoError(t, err)
	return codec
}

func requestWithCookie(name, value string) *http.Request {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.AddCookie(&http.Cookie{Name: name, Value: value})
	return r
}

func TestCookieCodecRequiresSecret(t *testing.T) {
	_, err := NewCookieCodec("crewboard_session", "", time.Hour, false)
	require.Error(t, err)
}

func TestCookieCodecRoundTrip(t *testing.T) {
	codec := newTestCodec(t)
	sid := codec.NewSessionID()

	rec := httptest.NewRecorder()
	codec.Write(rec, sid)

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	require.Equal(t, "crewboard_session", cookies[0].Name)
	require.True(t, cookies[0].HttpOnly)

	r := requestWithCookie(cookies[0].Name, cookies[0].Value)
	require.Equal(t, sid, codec.Read(r))
}

func TestCookieCodecRejectsTamperedValue(t *testing.T) {
	codec := newTestCodec(t)
	rec := httptest.NewRecorder()
	codec.Write(rec, "sid-original")
	value := rec.Result().Cookies()[0].Value

	_, sig, _ := strings.Cut(value, ".")
	forged := "sid-forged." + sig
	require.Empty(t, codec.Read(requestWithCookie("crewboard_session", forged)))
}

func TestCookieCodecRejectsMalformedValue(t *testing.T) {
	codec := newTestCodec(t)

	require.Empty(t, codec.Read(requestWithCookie("crewboard_session", "no-signature")))
	require.Empty(t, codec.Read(requestWithCookie("crewboard_session", "sid.!!!not-base64!!!")))
	require.Empty(t, codec.Read(httptest.NewRequest(http.MethodGet, "/", nil)))
}

func TestCookieCodecDifferentSecretsDoNotVerify(t *testing.T) {
	codec := newTestCodec(t)
	other, err := NewCookieCodec("crewboard_session", "another-secret", time.Hour, false)
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	codec.Write(rec, "sid-x")
	value := rec.Result().Cookies()[0].Value
	require.Empty(t, other.Read(requestWithCookie("crewboard_session", value)))
}

func TestCookieCodecDrop(t *testing.T) {
	codec := newTestCodec(t)
	rec := httptest.NewRecorder()
	codec.Drop(rec)

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	require.Empty(t, cookies[0].Value)
	require.Negative(t, cookies[0].MaxAge)
}
