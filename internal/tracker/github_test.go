package tracker

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/devswarm/coordd/internal/model"
)

func newTestClient(url string) *GitHubClient {
	cfg := model.TrackerConfig{
		BaseURL:        url,
		Owner:          "devswarm",
		Repo:           "stdlib",
		TokenEnv:       "COORDD_TEST_TOKEN_UNSET",
		TimeoutSec:     2,
		MaxRetries:     3,
		RetryBackoffMs: 1,
	}
	return NewGitHubClient(cfg)
}

func TestListItemsFiltersPullRequests(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/repos/devswarm/stdlib/issues", r.URL.Path)
		assert.Equal(t, "all", r.URL.Query().Get("state"))

		payload := []map[string]any{
			{
				"number": 101, "title": "String padding", "body": "pad strings",
				"state": "open", "updated_at": "2026-08-20T10:00:00Z",
				"labels": []map[string]string{{"name": "enhancement"}},
			},
			{
				"number": 102, "title": "Some PR", "state": "open",
				"updated_at": "2026-08-21T10:00:00Z", "pull_request": map[string]any{},
			},
			{
				"number": 103, "title": "Fix rounding", "state": "closed",
				"updated_at": "2026-08-19T10:00:00Z",
				"labels":     []map[string]string{{"name": "bug"}},
			},
		}
		json.NewEncoder(w).Encode(payload)
	}))
	defer srv.Close()

	items, err := newTestClient(srv.URL).ListItems(context.Background(), "all")
	require.NoError(t, err)
	require.Len(t, items, 2)

	assert.Equal(t, 101, items[0].ID)
	assert.Equal(t, []string{"enhancement"}, items[0].Labels)
	assert.Equal(t, "open", items[0].State)
	assert.Equal(t, 103, items[1].ID)
	assert.Equal(t, "closed", items[1].State)
}

func TestGetItemNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).GetItem(context.Background(), 999)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestDoRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		json.NewEncoder(w).Encode(map[string]any{
			"number": 7, "title": "flaky", "state": "open",
			"updated_at": "2026-08-22T10:00:00Z",
		})
	}))
	defer srv.Close()

	item, err := newTestClient(srv.URL).GetItem(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, 7, item.ID)
	assert.Equal(t, int32(3), calls.Load())
}

func TestDoGivesUpAfterMaxRetries(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).GetItem(context.Background(), 7)
	require.Error(t, err)
	assert.Equal(t, int32(3), calls.Load())
}

func TestPostComment(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/repos/devswarm/stdlib/issues/101/comments", r.URL.Path)

		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Contains(t, body["body"], "Assigned Agent")

		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	err := newTestClient(srv.URL).PostComment(context.Background(), 101, "**Assigned Agent**: S")
	require.NoError(t, err)
}
