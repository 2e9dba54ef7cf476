package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"giveaway/internal/models"
)

func newTestService(opts Options, client *fakeClient, discard fakeDiscard) (*GiveawayService, *recordingObserver) {
	obs := newRecordingObserver()
	if opts.Channel == "" {
		opts.Channel = "streamer"
	}
	return NewGiveawayService(opts, client, discard, NewSeededDrawEngine(1), obs), obs
}

func TestGiveawayService_Prepare(t *testing.T) {
	client := &fakeClient{
		chatters: models.Chatters{
			Viewers:    []string{"alice", "Bob ", "spammer"},
			Moderators: []string{"bob", "nightbot"},
		},
		followers: map[string]models.Page{
			"":     {Names: []string{"carol", "ALICE"}, Cursor: "next", Total: 3},
			"next": {Names: []string{"dave"}, Total: 3},
		},
	}

	t.Run("viewers with extra tickets and discard list", func(t *testing.T) {
		svc, obs := newTestService(Options{
			Sources:      models.NewSourceSet(models.Viewers, models.Moderators, models.Followers),
			ExtraTickets: true,
		}, client, fakeDiscard{lines: []string{"Spammer", "NIGHTBOT"}})

		pool, err := svc.Prepare(context.Background())

		require.NoError(t, err)
		assert.Equal(t, models.Pool{"ALICE", "BOB", "CAROL", "DAVE", "ALICE", "BOB"}, pool)
		assert.Equal(t, 10, obs.pools["built"])
		assert.Equal(t, 6, obs.pools["filtered"])
		assert.Equal(t, pool, svc.Pool())
	})

	t.Run("drop moderators", func(t *testing.T) {
		svc, _ := newTestService(Options{
			Sources:        models.NewSourceSet(models.Viewers, models.Moderators, models.Followers),
			DropModerators: true,
		}, client, fakeDiscard{})

		pool, err := svc.Prepare(context.Background())

		require.NoError(t, err)
		assert.Equal(t, models.Pool{"ALICE", "SPAMMER", "CAROL", "DAVE"}, pool)
	})

	t.Run("followers only still fetches chatters for extra tickets", func(t *testing.T) {
		svc, _ := newTestService(Options{
			Sources:      models.NewSourceSet(models.Followers),
			ExtraTickets: true,
		}, client, fakeDiscard{})

		pool, err := svc.Prepare(context.Background())

		require.NoError(t, err)
		assert.Equal(t, models.Pool{"CAROL", "ALICE", "DAVE", "ALICE"}, pool)
	})
}

func TestGiveawayService_PrepareErrors(t *testing.T) {
	t.Run("collaborator error aborts and keeps previous pool", func(t *testing.T) {
		client := &fakeClient{chatters: models.Chatters{Viewers: []string{"alice"}}}
		svc, _ := newTestService(Options{Sources: models.NewSourceSet(models.Viewers)}, client, fakeDiscard{})
		_, err := svc.Prepare(context.Background())
		require.NoError(t, err)

		client.chattersErr = &models.DecodeError{Op: "chatters", Err: errors.New("unexpected token")}
		pool, err := svc.Prepare(context.Background())

		assert.Nil(t, pool)
		var de *models.DecodeError
		assert.True(t, errors.As(err, &de))
		assert.Equal(t, models.Pool{"ALICE"}, svc.Pool())
	})

	t.Run("failed first build is not an empty pool", func(t *testing.T) {
		client := &fakeClient{chattersErr: &models.UpstreamError{Op: "chatters", Status: 503}}
		svc, _ := newTestService(Options{Sources: models.NewSourceSet(models.Viewers)}, client, fakeDiscard{})

		_, err := svc.Prepare(context.Background())
		require.Error(t, err)

		_, err = svc.Draw()
		assert.ErrorIs(t, err, models.ErrPoolNotBuilt)
		assert.NotErrorIs(t, err, models.ErrEmptyPool)
	})

	t.Run("discard read error", func(t *testing.T) {
		client := &fakeClient{chatters: models.Chatters{Viewers: []string{"alice"}}}
		svc, _ := newTestService(Options{Sources: models.NewSourceSet(models.Viewers)}, client, fakeDiscard{err: errors.New("permission denied")})

		_, err := svc.Prepare(context.Background())

		assert.ErrorContains(t, err, "permission denied")
	})
}

func TestGiveawayService_Draw(t *testing.T) {
	client := &fakeClient{chatters: models.Chatters{Viewers: []string{"alice", "bob"}}}
	svc, obs := newTestService(Options{
		Sources:      models.NewSourceSet(models.Viewers),
		ExtraTickets: true,
	}, client, fakeDiscard{lines: []string{"alice"}})

	_, err := svc.Draw()
	assert.ErrorIs(t, err, models.ErrPoolNotBuilt, "no pool prepared yet")
	_, err = svc.Distribution(DefaultTrials)
	assert.ErrorIs(t, err, models.ErrPoolNotBuilt)

	_, err = svc.Prepare(context.Background())
	require.NoError(t, err)

	result, err := svc.Draw()
	require.NoError(t, err)
	assert.Equal(t, models.Ticket("BOB"), result.Winner)
	assert.Equal(t, 2, result.Tickets)
	assert.Equal(t, 2, result.PoolSize)
	assert.Equal(t, "streamer", result.Channel)
	assert.NotEmpty(t, result.ID)

	assert.Len(t, svc.Results(), 1)
	assert.Equal(t, 1, obs.draws["single"])

	svc.ClearResults()
	assert.Empty(t, svc.Results())
}

func TestGiveawayService_DrawAllFiltered(t *testing.T) {
	client := &fakeClient{chatters: models.Chatters{Moderators: []string{"mod"}}}
	svc, _ := newTestService(Options{
		Sources:        models.NewSourceSet(models.Viewers, models.Moderators),
		DropModerators: true,
	}, client, fakeDiscard{})

	pool, err := svc.Prepare(context.Background())
	require.NoError(t, err)
	assert.Empty(t, pool)

	_, err = svc.Draw()
	assert.ErrorIs(t, err, models.ErrEmptyPool)
}

func TestGiveawayService_Distribution(t *testing.T) {
	client := &fakeClient{chatters: models.Chatters{Viewers: []string{"alice"}, Moderators: []string{"bob"}}}
	svc, obs := newTestService(Options{
		Sources: models.NewSourceSet(models.Viewers, models.Moderators),
	}, client, fakeDiscard{})
	_, err := svc.Prepare(context.Background())
	require.NoError(t, err)

	report, err := svc.Distribution(DefaultTrials)

	require.NoError(t, err)
	assert.Equal(t, DefaultTrials, report.Trials)
	assert.Equal(t, 2, report.PoolSize)
	require.Len(t, report.Rows, 2)
	assert.Equal(t, DefaultTrials, report.Rows[0].Draws+report.Rows[1].Draws)
	assert.Equal(t, 1, obs.draws["distribution"])
	assert.Empty(t, svc.Results(), "diagnostic draws are not recorded as results")
}

func TestFormatCounts(t *testing.T) {
	assert.Equal(t, "{ALICE=2, BOB=1}", formatCounts(models.Pool{"BOB", "ALICE", "ALICE"}))
	assert.Equal(t, "{}", formatCounts(nil))
}
