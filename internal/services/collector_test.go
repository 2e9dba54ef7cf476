package services

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"giveaway/internal/models"
)

func TestCollectAll_FollowsCursorsInOrder(t *testing.T) {
	pages := map[string]models.Page{
		"":   {Names: []string{"a", "b"}, Cursor: "c1", Total: 5},
		"c1": {Names: []string{"c", "d"}, Cursor: "c2", Total: 5},
		"c2": {Names: []string{"e"}, Total: 5},
	}
	var cursors []string
	fetch := func(_ context.Context, cursor string) (models.Page, error) {
		cursors = append(cursors, cursor)
		return pages[cursor], nil
	}

	names, err := CollectAll(context.Background(), fetch, 0)

	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c", "d", "e"}, names)
	assert.Equal(t, []string{"", "c1", "c2"}, cursors, "each cursor must be requested exactly once")
}

func TestCollectAll_SinglePageWithoutCursor(t *testing.T) {
	calls := 0
	fetch := func(_ context.Context, _ string) (models.Page, error) {
		calls++
		return models.Page{Names: []string{"solo"}}, nil
	}

	names, err := CollectAll(context.Background(), fetch, 10)

	require.NoError(t, err)
	assert.Equal(t, []string{"solo"}, names)
	assert.Equal(t, 1, calls)
}

func TestCollectAll_ErrorAbortsWithoutPartialResult(t *testing.T) {
	boom := &models.TransportError{Op: "followers", Err: errors.New("connection reset")}
	fetch := func(_ context.Context, cursor string) (models.Page, error) {
		if cursor == "" {
			return models.Page{Names: []string{"a"}, Cursor: "next"}, nil
		}
		return models.Page{}, boom
	}

	names, err := CollectAll(context.Background(), fetch, 0)

	assert.Nil(t, names)
	assert.ErrorIs(t, err, boom)
}

func TestCollectAll_PageCeiling(t *testing.T) {
	calls := 0
	fetch := func(_ context.Context, _ string) (models.Page, error) {
		calls++
		return models.Page{Names: []string{"x"}, Cursor: "forever"}, nil
	}

	_, err := CollectAll(context.Background(), fetch, 3)

	assert.ErrorIs(t, err, models.ErrPageLimit)
	assert.Equal(t, 3, calls)
}

func TestCollector_Collect(t *testing.T) {
	client := &fakeClient{
		chatters: models.Chatters{
			Viewers:    []string{"alice", "Bob "},
			Moderators: []string{"bob"},
			VIPs:       []string{"ignored"},
		},
		followers: map[string]models.Page{
			"":   {Names: []string{"carol"}, Cursor: "p2"},
			"p2": {Names: []string{"dave"}},
		},
		subscribers: map[string]models.Page{
			"": {Names: []string{"erin"}},
		},
	}
	obs := newRecordingObserver()
	collector := NewCollector(client, 0, obs)

	got, err := collector.Collect(context.Background(), "chan", models.NewSourceSet(models.Followers, models.Subscribers), true)

	require.NoError(t, err)
	assert.Equal(t, []string{"alice", "Bob "}, got[models.Viewers])
	assert.Equal(t, []string{"bob"}, got[models.Moderators])
	assert.Equal(t, []string{"carol", "dave"}, got[models.Followers])
	assert.Equal(t, []string{"erin"}, got[models.Subscribers])
	assert.Equal(t, 2, obs.pages[models.Followers])
	assert.Equal(t, 2, obs.pages[models.Viewers])
}

func TestCollector_SkipsChattersWhenNotNeeded(t *testing.T) {
	client := &fakeClient{followers: map[string]models.Page{"": {Names: []string{"carol"}}}}

	got, err := NewCollector(client, 0, nil).Collect(context.Background(), "chan", models.NewSourceSet(models.Followers), false)

	require.NoError(t, err)
	assert.Zero(t, client.chatterCalls)
	assert.Empty(t, client.subscriberCursors)
	assert.Empty(t, got[models.Viewers])
}

func TestCollector_PropagatesSourceError(t *testing.T) {
	upstream := &models.UpstreamError{Op: "followers", Status: 503}
	client := &fakeClient{pageErr: upstream}

	got, err := NewCollector(client, 0, nil).Collect(context.Background(), "chan", models.NewSourceSet(models.Followers), true)

	assert.Nil(t, got)
	var ue *models.UpstreamError
	require.True(t, errors.As(err, &ue))
	assert.Equal(t, 503, ue.Status)
}

func TestCollectAll_HugeReportedTotal(t *testing.T) {
	fetch := func(_ context.Context, _ string) (models.Page, error) {
		return models.Page{Names: []string{"a"}, Total: math.MaxInt64}, nil
	}

	var names []string
	var err error
	require.NotPanics(t, func() {
		names, err = CollectAll(context.Background(), fetch, 1000)
	})

	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, names)
	assert.LessOrEqual(t, cap(names), 1000)
}

func TestSizeHint(t *testing.T) {
	tests := []struct {
		name     string
		page     models.Page
		maxPages int
		want     int
	}{
		{"small total", models.Page{Names: make([]string, 100), Total: 250}, 1000, 250},
		{"bounded by page ceiling", models.Page{Names: make([]string, 100), Total: 5_000_000}, 10, 1000},
		{"no ceiling", models.Page{Names: make([]string, 100), Total: 5_000_000}, 0, maxSizeHint},
		{"empty first page", models.Page{Total: 5_000_000}, 3, 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, sizeHint(tt.page, tt.maxPages))
		})
	}
}
