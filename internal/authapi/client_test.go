package authapi

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/crewboard/crewboard/internal/session"
)

func TestClientLoginSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/auth/login", r.URL.Path)
		require.Equal(t, "application/json", r.Header.Get("Content-Type"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"token":"tok-xyz","user":{"id":12,"email":"lead@example.com","full_name":"Dana Lead","role":"team_lead"}}`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, srv.Client())
	token, user, err := client.Login(context.Background(), "lead@example.com", "secret")
	require.NoError(t, err)
	require.Equal(t, "tok-xyz", token)
	require.Equal(t, int64(12), user.ID)
	require.Equal(t, session.RoleTeamLead, user.Role)
}

func TestClientLoginRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"message":"invalid email or password"}`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, srv.Client())
	_, _, err := client.Login(context.Background(), "x@example.com", "nope")
	require.ErrorIs(t, err, ErrInvalidCredentials)
	require.EqualError(t, err, "invalid email or password")
	require.False(t, client.IsUnavailable(err))
}

func TestClientLoginBlockedAccount(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"error":{"message":"account blocked","code":"account_blocked"}}`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, srv.Client())
	_, _, err := client.Login(context.Background(), "blocked@example.com", "secret")
	require.True(t, IsAccountBlocked(err))
}

func TestClientServerErrorIsUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, srv.Client())
	_, _, err := client.Login(context.Background(), "a@example.com", "secret")
	require.True(t, client.IsUnavailable(err))
}

func TestClientTransportFailureIsUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // force connection refused

	client := NewClient(srv.URL, http.DefaultClient)
	_, err := client.Status(context.Background(), "tok")
	require.True(t, client.IsUnavailable(err))
}

func TestClientStatusSendsBearerToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/auth/status", r.URL.Path)
		require.Equal(t, "Bearer tok-abc", r.Header.Get("Authorization"))
		_, _ = w.Write([]byte(`{"user":{"id":3,"email":"e@example.com","role":"employee"}}`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, srv.Client())
	user, err := client.Status(context.Background(), "tok-abc")
	require.NoError(t, err)
	require.Equal(t, session.RoleEmployee, user.Role)
}

func TestClientLogout(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, srv.Client())
	require.NoError(t, client.Logout(context.Background(), "tok-out"))
	require.Equal(t, "Bearer tok-out", gotAuth)
}
