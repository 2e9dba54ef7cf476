package services

import (
	"context"
	"sync"

	"giveaway/internal/models"
)

// fakeClient serves canned pages keyed by cursor.
type fakeClient struct {
	mu sync.Mutex

	chatters    models.Chatters
	chattersErr error
	followers   map[string]models.Page
	subscribers map[string]models.Page
	pageErr     error

	followerCursors   []string
	subscriberCursors []string
	chatterCalls      int
}

func (f *fakeClient) GetChatters(_ context.Context, _ string) (models.Chatters, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.chatterCalls++
	return f.chatters, f.chattersErr
}

func (f *fakeClient) GetFollowers(_ context.Context, _ string, cursor string) (models.Page, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.followerCursors = append(f.followerCursors, cursor)
	if f.pageErr != nil {
		return models.Page{}, f.pageErr
	}
	return f.followers[cursor], nil
}

func (f *fakeClient) GetSubscribers(_ context.Context, _ string, cursor string) (models.Page, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.subscriberCursors = append(f.subscriberCursors, cursor)
	return f.subscribers[cursor], nil
}

type fakeDiscard struct {
	lines []string
	err   error
}

func (f fakeDiscard) ReadLines() ([]string, error) { return f.lines, f.err }

type recordingObserver struct {
	mu    sync.Mutex
	pages map[models.Source]int
	pools map[string]int
	draws map[string]int
}

func newRecordingObserver() *recordingObserver {
	return &recordingObserver{
		pages: make(map[models.Source]int),
		pools: make(map[string]int),
		draws: make(map[string]int),
	}
}

func (r *recordingObserver) ObservePage(src models.Source, names int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pages[src] += names
}

func (r *recordingObserver) ObservePool(stage string, size int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pools[stage] = size
}

func (r *recordingObserver) ObserveDraw(mode string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.draws[mode]++
}
