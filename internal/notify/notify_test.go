package notify

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/devswarm/coordd/internal/model"
	"github.com/devswarm/coordd/internal/tracker"
)

type recordingClient struct {
	itemID int
	body   string
}

func (c *recordingClient) ListItems(context.Context, string) ([]tracker.Item, error) {
	return nil, nil
}
func (c *recordingClient) GetItem(context.Context, int) (tracker.Item, error) {
	return tracker.Item{}, tracker.ErrNotFound
}
func (c *recordingClient) PostComment(_ context.Context, id int, body string) error {
	c.itemID = id
	c.body = body
	return nil
}

func testConfig() model.Config {
	cfg := model.Config{Tracker: model.TrackerConfig{Owner: "o", Repo: "r"}}
	cfg.ApplyDefaults()
	return cfg
}

func TestAssignmentCreatedComment(t *testing.T) {
	client := &recordingClient{}
	n, err := New(client, testConfig())
	require.NoError(t, err)

	item := &model.WorkItem{
		ID:                  101,
		Title:               "String padding",
		Labels:              []string{"enhancement", "high-priority"},
		State:               model.ItemStateOpen,
		EstimatedComplexity: 4,
		Dependencies:        []int{99, 100},
	}
	agent := &model.Agent{
		Name:             "StringOperationsAgent",
		Skills:           []string{"string-processing", "text-manipulation"},
		MaxConcurrent:    2,
		PerformanceScore: 1.0,
	}

	require.NoError(t, n.AssignmentCreated(context.Background(), item, agent))

	assert.Equal(t, 101, client.itemID)
	assert.Contains(t, client.body, "Item #101")
	assert.Contains(t, client.body, "**Assigned Agent**: StringOperationsAgent")
	assert.Contains(t, client.body, "**Timeline**: 5 days")
	assert.Contains(t, client.body, "string-processing, text-manipulation")
	assert.Contains(t, client.body, "4/5")
	assert.Contains(t, client.body, "HIGH")
	assert.Contains(t, client.body, "#99, #100")
}

func TestAssignmentCommentWithoutDependencies(t *testing.T) {
	client := &recordingClient{}
	n, err := New(client, testConfig())
	require.NoError(t, err)

	item := &model.WorkItem{ID: 5, State: model.ItemStateOpen, EstimatedComplexity: 1}
	agent := &model.Agent{Name: "A", MaxConcurrent: 1, PerformanceScore: 1.0}

	require.NoError(t, n.AssignmentCreated(context.Background(), item, agent))
	assert.Contains(t, client.body, "No blocking dependencies")
}

func TestProgressComment(t *testing.T) {
	client := &recordingClient{}
	n, err := New(client, testConfig())
	require.NoError(t, err)

	item := &model.WorkItem{ID: 101, AssignedAgent: "A"}
	ev := model.ProgressEvent{
		Timestamp:  "2026-08-25T09:00:00Z",
		Agent:      "A",
		ItemID:     101,
		Status:     model.StatusBlocked,
		Percentage: 40,
		Blockers:   []string{"waiting on upstream fix"},
		NextSteps:  []string{"retry once released"},
	}

	require.NoError(t, n.ProgressRecorded(context.Background(), item, ev))

	assert.Contains(t, client.body, "**Status**: blocked")
	assert.Contains(t, client.body, "**Progress**: 40%")
	assert.Contains(t, client.body, "- waiting on upstream fix")
	assert.Contains(t, client.body, "- retry once released")
}

func TestStaleReminderAndReassignment(t *testing.T) {
	client := &recordingClient{}
	n, err := New(client, testConfig())
	require.NoError(t, err)

	item := &model.WorkItem{ID: 110, AssignedAgent: "FileSystemAgent"}

	require.NoError(t, n.StaleReminder(context.Background(), item))
	assert.Contains(t, client.body, "FileSystemAgent")
	assert.Contains(t, client.body, "3+")

	require.NoError(t, n.Reassigned(context.Background(), item, "FileSystemAgent", "GeneralPurposeAgent"))
	assert.Contains(t, client.body, "**Previous Agent**: FileSystemAgent")
	assert.Contains(t, client.body, "**New Agent**: GeneralPurposeAgent")
	assert.Contains(t, client.body, "7+")
}
