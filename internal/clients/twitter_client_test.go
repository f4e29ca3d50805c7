package clients

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/spacesedan/sentiscope/config"
	"github.com/spacesedan/sentiscope/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
)

func newTestTwitterClient(t *testing.T, srv *httptest.Server, maxPages int) *TwitterClient {
	t.Helper()
	return NewTwitterClient(config.TwitterConfig{
		APIURL:            srv.URL,
		TokenURL:          srv.URL + "/oauth2/token",
		BearerToken:       "test-token",
		MaxPages:          maxPages,
		RequestsPerSecond: 1,
	},
		WithRateLimiter(rate.NewLimiter(rate.Inf, 1)),
		WithBackoff(time.Millisecond, 5*time.Millisecond, 3),
	)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func userHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]any{"data": map[string]string{"id": "42", "username": r.PathValue("name")}})
}

func tweetsPage(ids []string, lang, next string) map[string]any {
	data := make([]map[string]string, 0, len(ids))
	for _, id := range ids {
		data = append(data, map[string]string{
			"id":         id,
			"text":       "tweet " + id,
			"lang":       lang,
			"created_at": "2024-03-01T10:00:00.000Z",
		})
	}
	meta := map[string]any{"result_count": len(ids)}
	if next != "" {
		meta["next_token"] = next
	}
	return map[string]any{"data": data, "meta": meta}
}

func TestTwitterFetchFollowsPagination(t *testing.T) {
	var auth atomic.Value
	mux := http.NewServeMux()
	mux.HandleFunc("GET /2/users/by/username/{name}", func(w http.ResponseWriter, r *http.Request) {
		auth.Store(r.Header.Get("Authorization"))
		userHandler(w, r)
	})
	mux.HandleFunc("GET /2/users/42/tweets", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "lang,created_at,note_tweet", r.URL.Query().Get("tweet.fields"))
		switch r.URL.Query().Get("pagination_token") {
		case "":
			writeJSON(w, tweetsPage([]string{"1", "2", "3"}, "en", "p2"))
		case "p2":
			writeJSON(w, tweetsPage([]string{"4", "5"}, "en", ""))
		default:
			t.Errorf("unexpected token %q", r.URL.Query().Get("pagination_token"))
		}
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	docs, err := newTestTwitterClient(t, srv, 10).Fetch(context.Background(), "@acme", 100, "en")
	require.NoError(t, err)

	require.Len(t, docs, 5)
	for i, d := range docs {
		assert.Equal(t, strconv.Itoa(i+1), d.ID)
		assert.Equal(t, i, d.Index)
		assert.Equal(t, "en", d.Lang)
		assert.False(t, d.CreatedAt.IsZero())
	}
	assert.Equal(t, "Bearer test-token", auth.Load())
}

func TestTwitterFetchStopsAtLimitAndFiltersLanguage(t *testing.T) {
	var pages atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("GET /2/users/by/username/{name}", userHandler)
	mux.HandleFunc("GET /2/users/42/tweets", func(w http.ResponseWriter, r *http.Request) {
		n := pages.Add(1)
		assert.Equal(t, "5", r.URL.Query().Get("max_results"))
		if n == 1 {
			writeJSON(w, tweetsPage([]string{"es1", "es2"}, "es", "p2"))
			return
		}
		writeJSON(w, tweetsPage([]string{"a", "b", "c", "d"}, "en", "p3"))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	docs, err := newTestTwitterClient(t, srv, 10).Fetch(context.Background(), "acme", 3, "en")
	require.NoError(t, err)

	require.Len(t, docs, 3)
	assert.Equal(t, "a", docs[0].ID)
	assert.Equal(t, 0, docs[0].Index)
	assert.Equal(t, int32(2), pages.Load())
}

func TestTwitterFetchPrefersNoteTweetText(t *testing.T) {
	long := strings.Repeat("this thread keeps going ", 20) + "and ends well"
	mux := http.NewServeMux()
	mux.HandleFunc("GET /2/users/by/username/{name}", userHandler)
	mux.HandleFunc("GET /2/users/42/tweets", func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.URL.Query().Get("tweet.fields"), "note_tweet")
		writeJSON(w, map[string]any{
			"data": []map[string]any{
				{
					"id":         "long",
					"text":       long[:270] + "…",
					"lang":       "en",
					"created_at": "2024-03-01T10:00:00.000Z",
					"note_tweet": map[string]any{"text": long},
				},
				{
					"id":         "short",
					"text":       "short and sweet",
					"lang":       "en",
					"created_at": "2024-03-01T10:00:00.000Z",
				},
			},
			"meta": map[string]any{"result_count": 2},
		})
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	docs, err := newTestTwitterClient(t, srv, 1).Fetch(context.Background(), "acme", 10, "en")
	require.NoError(t, err)

	require.Len(t, docs, 2)
	assert.Equal(t, long, docs[0].Text)
	assert.Equal(t, "short and sweet", docs[1].Text)
}

func TestTwitterFetchRespectsMaxPages(t *testing.T) {
	var pages atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("GET /2/users/by/username/{name}", userHandler)
	mux.HandleFunc("GET /2/users/42/tweets", func(w http.ResponseWriter, r *http.Request) {
		n := pages.Add(1)
		writeJSON(w, tweetsPage([]string{fmt.Sprint(n)}, "en", "more"))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	docs, err := newTestTwitterClient(t, srv, 2).Fetch(context.Background(), "acme", 50, "en")
	require.NoError(t, err)
	assert.Len(t, docs, 2)
	assert.Equal(t, int32(2), pages.Load())
}

func TestTwitterFetchErrors(t *testing.T) {
	tests := []struct {
		name      string
		handler   http.HandlerFunc
		wantKind  models.FetchErrorKind
		retryable bool
		wantCalls int32
	}{
		{
			name:      "unauthorized",
			handler:   func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusUnauthorized) },
			wantKind:  models.FetchUnauthorized,
			wantCalls: 1,
		},
		{
			name:      "forbidden",
			handler:   func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusForbidden) },
			wantKind:  models.FetchUnauthorized,
			wantCalls: 1,
		},
		{
			name:      "not found status",
			handler:   func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusNotFound) },
			wantKind:  models.FetchUnknownHandle,
			wantCalls: 1,
		},
		{
			name: "not found body",
			handler: func(w http.ResponseWriter, r *http.Request) {
				writeJSON(w, map[string]any{"errors": []map[string]string{{
					"title":  "Not Found Error",
					"type":   "https://api.twitter.com/2/problems/resource-not-found",
					"detail": "Could not find user with username: [ghost].",
				}}})
			},
			wantKind:  models.FetchUnknownHandle,
			wantCalls: 1,
		},
		{
			name: "rate limited on every attempt",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("x-rate-limit-reset", strconv.FormatInt(time.Now().Add(time.Second).Unix(), 10))
				w.WriteHeader(http.StatusTooManyRequests)
			},
			wantKind:  models.FetchRateLimited,
			retryable: true,
			wantCalls: 3,
		},
		{
			name:      "server error on every attempt",
			handler:   func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusBadGateway) },
			wantKind:  models.FetchNetwork,
			retryable: true,
			wantCalls: 3,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls atomic.Int32
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				calls.Add(1)
				tt.handler(w, r)
			}))
			defer srv.Close()

			docs, err := newTestTwitterClient(t, srv, 5).Fetch(context.Background(), "ghost", 10, "en")
			assert.Nil(t, docs)

			var fe *models.FetchError
			require.ErrorAs(t, err, &fe)
			assert.Equal(t, tt.wantKind, fe.Kind)
			assert.Equal(t, "ghost", fe.Handle)
			assert.Equal(t, tt.retryable, fe.Retryable())
			assert.Equal(t, tt.wantCalls, calls.Load())
		})
	}
}

func TestTwitterFetchRecoversAfterRateLimit(t *testing.T) {
	var calls atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("GET /2/users/by/username/{name}", func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		userHandler(w, r)
	})
	mux.HandleFunc("GET /2/users/42/tweets", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, tweetsPage([]string{"1"}, "en", ""))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	docs, err := newTestTwitterClient(t, srv, 1).Fetch(context.Background(), "acme", 10, "en")
	require.NoError(t, err)
	assert.Len(t, docs, 1)
	assert.Equal(t, int32(2), calls.Load())
}

func TestTwitterClientCredentials(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /oauth2/token", func(w http.ResponseWriter, r *http.Request) {
		id, secret, ok := r.BasicAuth()
		if !ok || id != "id" || secret != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		writeJSON(w, map[string]any{"access_token": "app-token", "token_type": "bearer", "expires_in": 3600})
	})
	mux.HandleFunc("GET /2/users/by/username/{name}", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer app-token", r.Header.Get("Authorization"))
		userHandler(w, r)
	})
	mux.HandleFunc("GET /2/users/42/tweets", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, tweetsPage(nil, "en", ""))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	newClient := func(secret string) *TwitterClient {
		return NewTwitterClient(config.TwitterConfig{
			APIURL:            srv.URL,
			TokenURL:          srv.URL + "/oauth2/token",
			ClientID:          "id",
			ClientSecret:      secret,
			MaxPages:          1,
			RequestsPerSecond: 1,
		}, WithRateLimiter(rate.NewLimiter(rate.Inf, 1)), WithBackoff(time.Millisecond, time.Millisecond, 2))
	}

	docs, err := newClient("secret").Fetch(context.Background(), "acme", 10, "en")
	require.NoError(t, err)
	assert.Empty(t, docs)

	_, err = newClient("wrong").Fetch(context.Background(), "acme", 10, "en")
	assert.True(t, models.IsFetchKind(err, models.FetchUnauthorized), "got %v", err)
}

func TestTwitterFetchHonorsCancellation(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	tc := NewTwitterClient(config.TwitterConfig{APIURL: srv.URL, BearerToken: "t", MaxPages: 1, RequestsPerSecond: 1},
		WithRateLimiter(rate.NewLimiter(rate.Inf, 1)),
		WithBackoff(time.Hour, time.Hour, 5))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := tc.Fetch(ctx, "acme", 10, "en")
	assert.True(t, models.IsFetchKind(err, models.FetchNetwork))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), time.Second)
}

func TestPageSize(t *testing.T) {
	assert.Equal(t, 5, pageSize(1))
	assert.Equal(t, 42, pageSize(42))
	assert.Equal(t, 100, pageSize(1000))
}
