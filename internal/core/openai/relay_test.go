package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/matryer/is"
)

func TestRelayClientFetch(t *testing.T) {
	is := is.New(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		is.Equal(r.Method, http.MethodPost)
		is.Equal(r.URL.Path, "/session")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"session_id":"s1","client_secret":"ek_1","model":"gpt-realtime","expires_at":1700000000,"ice_servers":[{"urls":["stun:stun.example.org"]}]}`))
	}))
	defer srv.Close()

	cred, err := NewRelayClient(srv.URL + "/").FetchCredential(context.Background())
	is.NoErr(err)
	is.Equal(cred.ClientSecret, "ek_1")
	is.Equal(cred.Model, "gpt-realtime")
	is.Equal(cred.ICEServers[0].URLs, []string{"stun:stun.example.org"})
}

func TestRelayClientErrors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   string
	}{
		{"not configured", http.StatusServiceUnavailable, `{"error":"not_configured"}`, "status 503: not_configured"},
		{"plain text", http.StatusBadGateway, "upstream down", "status 502: upstream down"},
		{"missing secret", http.StatusOK, `{"model":"m"}`, "missing credential"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			is := is.New(t)
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			_, err := NewRelayClient(srv.URL).FetchCredential(context.Background())
			is.True(err != nil)
			is.True(strings.Contains(err.Error(), tt.want))
		})
	}
}

func TestMinter(t *testing.T) {
	is := is.New(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		is.Equal(r.Header.Get("Authorization"), "Bearer sk-test")
		is.Equal(r.Header.Get("Content-Type"), "application/json")
		_, _ = w.Write([]byte(`{"id":"sess_1","model":"gpt-realtime","client_secret":{"value":"ek_abc","expires_at":1700000060}}`))
	}))
	defer srv.Close()

	m := NewMinter("sk-test", "gpt-realtime", "verse", srv.URL)
	is.True(m.Configured())
	got, err := m.Mint(context.Background())
	is.NoErr(err)
	is.Equal(got.ClientSecret, "ek_abc")
	is.Equal(got.Model, "gpt-realtime")
	is.Equal(got.ExpiresAt, time.Unix(1700000060, 0))
}

func TestMinterRefused(t *testing.T) {
	is := is.New(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"message":"bad key"}}`, http.StatusUnauthorized)
	}))
	defer srv.Close()

	_, err := NewMinter("sk-bad", "m", "", srv.URL).Mint(context.Background())
	me, ok := err.(*MintError)
	is.True(ok)
	is.Equal(me.Status, http.StatusUnauthorized)

	var nilMinter *Minter
	is.True(!nilMinter.Configured())
}

func TestRelayClientAnswer(t *testing.T) {
	is := is.New(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/answer" {
			http.NotFound(w, r)
			return
		}
		var req struct {
			Question string `json:"question"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)
		if req.Question == "" {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error":"bad_request"}`))
			return
		}
		_, _ = w.Write([]byte(`{"answer":"36","provider":"gemini"}`))
	}))
	defer srv.Close()

	rc := NewRelayClient(srv.URL)
	got, err := rc.Answer(context.Background(), "12 x 3")
	is.NoErr(err)
	is.Equal(got, "36")

	_, err = rc.Answer(context.Background(), "")
	is.True(err != nil)
	is.True(strings.Contains(err.Error(), "bad_request"))
}
