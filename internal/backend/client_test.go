package backend

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
)

func mintToken(t *testing.T, sub, email string, exp time.Time) string {
	t.Helper()
	claims := jwt.MapClaims{"sub": sub, "email": email, "exp": exp.Unix()}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	if err != nil {
		t.Fatalf("mint token: %v", err)
	}
	return signed
}

func TestStatusClassification(t *testing.T) {
	cases := []struct {
		status int
		want   error
	}{
		{401, ErrAuthRequired},
		{403, ErrForbidden},
		{404, ErrNotFound},
		{406, ErrNotFound},
		{409, ErrDuplicate},
	}
	for _, tc := range cases {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(tc.status)
		}))
		c := NewClient(srv.URL, "anon-key", zap.NewNop())

		var dest []map[string]any
		err := c.Select(context.Background(), "profiles", NewQuery(), &dest)
		if !errors.Is(err, tc.want) {
			t.Errorf("status %d: err = %v, want %v", tc.status, err, tc.want)
		}
		srv.Close()
	}
}

func TestUnclassifiedStatusBecomesRemoteError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()
	c := NewClient(srv.URL, "anon-key", zap.NewNop())

	var dest []map[string]any
	err := c.Select(context.Background(), "profiles", NewQuery(), &dest)

	var re *RemoteError
	if !errors.As(err, &re) {
		t.Fatalf("err = %T, want *RemoteError", err)
	}
	if re.Status != http.StatusServiceUnavailable {
		t.Errorf("Status = %d, want 503", re.Status)
	}
}

func TestSelectSendsFiltersAndAuth(t *testing.T) {
	var gotPath, gotQuery, gotAPIKey, gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotQuery = r.URL.Query().Get("conversation_id")
		gotAPIKey = r.Header.Get("apikey")
		gotAuth = r.Header.Get("Authorization")
		_, _ = w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "anon-key", zap.NewNop())
	access := mintToken(t, "u1", "u1@example.com", time.Now().Add(time.Hour))
	c.SetToken(&Token{AccessToken: access})

	var dest []map[string]any
	q := NewQuery().Eq("conversation_id", "c1")
	if err := c.Select(context.Background(), "messages", q, &dest); err != nil {
		t.Fatalf("Select error: %v", err)
	}

	if gotPath != "/rest/v1/messages" {
		t.Errorf("path = %s", gotPath)
	}
	if gotQuery != "eq.c1" {
		t.Errorf("conversation_id filter = %q, want eq.c1", gotQuery)
	}
	if gotAPIKey != "anon-key" {
		t.Errorf("apikey header = %q", gotAPIKey)
	}
	if gotAuth != "Bearer "+access {
		t.Errorf("authorization header = %q", gotAuth)
	}
}

func TestInsertReturningSetsPrefer(t *testing.T) {
	var gotPrefer string
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPrefer = r.Header.Get("Prefer")
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		_, _ = w.Write([]byte(`[{"id":"row1"}]`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "anon-key", zap.NewNop())
	var dest []struct {
		ID string `json:"id"`
	}
	err := c.InsertReturning(context.Background(), "conversations", map[string]any{"is_group": false}, &dest)
	if err != nil {
		t.Fatalf("InsertReturning error: %v", err)
	}

	if gotPrefer != "return=representation" {
		t.Errorf("Prefer = %q", gotPrefer)
	}
	if gotBody["is_group"] != false {
		t.Errorf("body = %v", gotBody)
	}
	if len(dest) != 1 || dest[0].ID != "row1" {
		t.Errorf("dest = %v", dest)
	}
}

func TestRPCPostsArgs(t *testing.T) {
	var gotPath string
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		_, _ = w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "anon-key", zap.NewNop())
	var dest []map[string]any
	if err := c.RPC(context.Background(), "search_users", map[string]string{"search_term": "ann"}, &dest); err != nil {
		t.Fatalf("RPC error: %v", err)
	}

	if gotPath != "/rest/v1/rpc/search_users" {
		t.Errorf("path = %s", gotPath)
	}
	if gotBody["search_term"] != "ann" {
		t.Errorf("body = %v", gotBody)
	}
}

func TestQueryOperators(t *testing.T) {
	q := NewQuery().
		Eq("user_id", "u1").
		Neq("sender_id", "u1").
		IsNull("left_at").
		OrderDesc("created_at").
		Limit(50)
	v := q.Values()

	if got := v.Get("user_id"); got != "eq.u1" {
		t.Errorf("user_id = %q", got)
	}
	if got := v.Get("sender_id"); got != "neq.u1" {
		t.Errorf("sender_id = %q", got)
	}
	if got := v.Get("left_at"); got != "is.null" {
		t.Errorf("left_at = %q", got)
	}
	if got := v.Get("order"); got != "created_at.desc" {
		t.Errorf("order = %q", got)
	}
	if got := v.Get("limit"); got != "50" {
		t.Errorf("limit = %q", got)
	}
}
