package tracker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/devswarm/coordd/internal/model"
)

// GitHubClient talks to the GitHub issues REST API. Retries are bounded with
// doubling backoff; per-request deadlines come from the configured timeout
// on top of the caller's context.
type GitHubClient struct {
	baseURL    string
	owner      string
	repo       string
	token      string
	maxRetries int
	backoff    time.Duration
	httpClient *http.Client
}

// NewGitHubClient builds a client from tracker configuration. The API token
// is read from the configured environment variable; an empty token degrades
// to unauthenticated requests.
func NewGitHubClient(cfg model.TrackerConfig) *GitHubClient {
	return &GitHubClient{
		baseURL:    cfg.BaseURL,
		owner:      cfg.Owner,
		repo:       cfg.Repo,
		token:      os.Getenv(cfg.TokenEnv),
		maxRetries: cfg.MaxRetries,
		backoff:    time.Duration(cfg.RetryBackoffMs) * time.Millisecond,
		httpClient: &http.Client{Timeout: time.Duration(cfg.TimeoutSec) * time.Second},
	}
}

// remoteIssue is the subset of the GitHub issue payload we consume. Pull
// requests arrive on the same endpoint and are identified by the
// pull_request key.
type remoteIssue struct {
	Number    int    `json:"number"`
	Title     string `json:"title"`
	Body      string `json:"body"`
	State     string `json:"state"`
	UpdatedAt string `json:"updated_at"`
	Labels    []struct {
		Name string `json:"name"`
	} `json:"labels"`
	PullRequest *struct{} `json:"pull_request,omitempty"`
}

func (ri *remoteIssue) toItem() Item {
	labels := make([]string, 0, len(ri.Labels))
	for _, l := range ri.Labels {
		labels = append(labels, l.Name)
	}
	return Item{
		ID:        ri.Number,
		Title:     ri.Title,
		Body:      ri.Body,
		Labels:    labels,
		State:     ri.State,
		UpdatedAt: ri.UpdatedAt,
	}
}

func (c *GitHubClient) ListItems(ctx context.Context, state string) ([]Item, error) {
	url := fmt.Sprintf("%s/repos/%s/%s/issues?state=%s&per_page=100", c.baseURL, c.owner, c.repo, state)

	body, status, err := c.do(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("list items: unexpected status %d", status)
	}

	var issues []remoteIssue
	if err := json.Unmarshal(body, &issues); err != nil {
		return nil, fmt.Errorf("decode item list: %w", err)
	}

	items := make([]Item, 0, len(issues))
	for i := range issues {
		if issues[i].PullRequest != nil {
			continue // same endpoint carries PRs; they are not work items
		}
		items = append(items, issues[i].toItem())
	}
	return items, nil
}

func (c *GitHubClient) GetItem(ctx context.Context, id int) (Item, error) {
	url := fmt.Sprintf("%s/repos/%s/%s/issues/%d", c.baseURL, c.owner, c.repo, id)

	body, status, err := c.do(ctx, http.MethodGet, url, nil)
	if err != nil {
		return Item{}, err
	}
	switch status {
	case http.StatusOK:
	case http.StatusNotFound, http.StatusGone:
		return Item{}, fmt.Errorf("item %d: %w", id, ErrNotFound)
	default:
		return Item{}, fmt.Errorf("get item %d: unexpected status %d", id, status)
	}

	var issue remoteIssue
	if err := json.Unmarshal(body, &issue); err != nil {
		return Item{}, fmt.Errorf("decode item %d: %w", id, err)
	}
	return issue.toItem(), nil
}

func (c *GitHubClient) PostComment(ctx context.Context, id int, commentBody string) error {
	url := fmt.Sprintf("%s/repos/%s/%s/issues/%d/comments", c.baseURL, c.owner, c.repo, id)

	payload, err := json.Marshal(map[string]string{"body": commentBody})
	if err != nil {
		return fmt.Errorf("encode comment: %w", err)
	}

	_, status, err := c.do(ctx, http.MethodPost, url, payload)
	if err != nil {
		return err
	}
	if status != http.StatusCreated {
		return fmt.Errorf("post comment on item %d: unexpected status %d", id, status)
	}
	return nil
}

// do performs one HTTP request with bounded retry. Transport errors and 5xx
// responses are retried with doubling backoff; 4xx responses are returned to
// the caller immediately.
func (c *GitHubClient) do(ctx context.Context, method, url string, payload []byte) ([]byte, int, error) {
	backoff := c.backoff
	var lastErr error

	for attempt := 0; attempt < c.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, 0, ctx.Err()
			case <-time.After(backoff):
			}
			backoff *= 2
		}

		var reqBody io.Reader
		if payload != nil {
			reqBody = bytes.NewReader(payload)
		}
		req, err := http.NewRequestWithContext(ctx, method, url, reqBody)
		if err != nil {
			return nil, 0, fmt.Errorf("build request: %w", err)
		}
		req.Header.Set("Accept", "application/vnd.github+json")
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		if c.token != "" {
			req.Header.Set("Authorization", "token "+c.token)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = err
			continue
		}

		body, readErr := io.ReadAll(resp.Body)
		resp.Body.Close()
		if readErr != nil {
			lastErr = readErr
			continue
		}

		if resp.StatusCode >= 500 {
			lastErr = fmt.Errorf("server error %d", resp.StatusCode)
			continue
		}

		return body, resp.StatusCode, nil
	}

	return nil, 0, fmt.Errorf("%s %s failed after %d attempts: %w", method, url, c.maxRetries, lastErr)
}
