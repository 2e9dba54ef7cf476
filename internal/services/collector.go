package services

import (
	"context"
	"fmt"

	"github.com/google/logger"
	"golang.org/x/sync/errgroup"

	"giveaway/internal/models"
)

// PlatformClient returns participant lists from the streaming platform.
type PlatformClient interface {
	GetChatters(ctx context.Context, channel string) (models.Chatters, error)
	GetFollowers(ctx context.Context, channel, cursor string) (models.Page, error)
	GetSubscribers(ctx context.Context, channel, cursor string) (models.Page, error)
}

// PageFetcher requests one page of a source. An empty cursor asks for the
// first page.
type PageFetcher func(ctx context.Context, cursor string) (models.Page, error)

// CollectAll requests pages until one comes back without a cursor and
// returns every name in request order. maxPages <= 0 disables the page
// ceiling. Any fetch error aborts the collection and is returned unchanged.
func CollectAll(ctx context.Context, fetch PageFetcher, maxPages int) ([]string, error) {
	var (
		names  []string
		cursor string
	)
	for pages := 0; ; pages++ {
		if maxPages > 0 && pages >= maxPages {
			return nil, fmt.Errorf("%w: stopped after %d pages, raise --max-pages to collect more", models.ErrPageLimit, pages)
		}

		page, err := fetch(ctx, cursor)
		if err != nil {
			return nil, err
		}
		if names == nil && page.Total > 0 {
			names = make([]string, 0, sizeHint(page, maxPages))
		}
		names = append(names, page.Names...)

		if page.Cursor == "" {
			return names, nil
		}
		cursor = page.Cursor
	}
}

// maxSizeHint bounds the preallocation taken from a page's reported total.
const maxSizeHint = 100_000

// sizeHint is the capacity to reserve for a whole collection, given its first
// page. The reported total is untrusted, so it never exceeds what the page
// ceiling could deliver.
func sizeHint(first models.Page, maxPages int) int {
	hint := min(first.Total, maxSizeHint)
	if maxPages > 0 && maxPages <= maxSizeHint {
		hint = min(hint, maxPages*max(len(first.Names), 1))
	}
	return hint
}

// Collector fetches every requested source for one channel.
type Collector struct {
	client   PlatformClient
	maxPages int
	observer Observer
}

// NewCollector creates a Collector. A nil observer disables observations.
func NewCollector(client PlatformClient, maxPages int, observer Observer) *Collector {
	if observer == nil {
		observer = nopObserver{}
	}
	return &Collector{client: client, maxPages: maxPages, observer: observer}
}

// Collect fetches the enabled paginated sources and, when needChatters is
// set, the combined viewers/moderators list. Sources are fetched
// concurrently; the first failure cancels the rest and nothing is returned.
func (c *Collector) Collect(ctx context.Context, channel string, sources models.SourceSet, needChatters bool) (map[models.Source][]string, error) {
	var (
		chatters    models.Chatters
		followers   []string
		subscribers []string
	)

	g, gctx := errgroup.WithContext(ctx)

	if needChatters {
		g.Go(func() error {
			logger.Infof("Downloading viewers and moderators for %s", channel)
			var err error
			chatters, err = c.client.GetChatters(gctx, channel)
			if err != nil {
				return fmt.Errorf("collect chatters: %w", err)
			}
			c.observer.ObservePage(models.Viewers, len(chatters.Viewers))
			c.observer.ObservePage(models.Moderators, len(chatters.Moderators))
			return nil
		})
	}

	if sources.Has(models.Followers) {
		g.Go(func() error {
			logger.Infof("Getting followers for %s", channel)
			var err error
			followers, err = CollectAll(gctx, c.pages(models.Followers, channel, c.client.GetFollowers), c.maxPages)
			if err != nil {
				return fmt.Errorf("collect followers: %w", err)
			}
			return nil
		})
	}

	if sources.Has(models.Subscribers) {
		g.Go(func() error {
			logger.Infof("Getting subscribers for %s", channel)
			var err error
			subscribers, err = CollectAll(gctx, c.pages(models.Subscribers, channel, c.client.GetSubscribers), c.maxPages)
			if err != nil {
				return fmt.Errorf("collect subscribers: %w", err)
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	return map[models.Source][]string{
		models.Viewers:     chatters.Viewers,
		models.Moderators:  chatters.Moderators,
		models.Followers:   followers,
		models.Subscribers: subscribers,
	}, nil
}

func (c *Collector) pages(src models.Source, channel string, get func(context.Context, string, string) (models.Page, error)) PageFetcher {
	n := 0
	return func(ctx context.Context, cursor string) (models.Page, error) {
		n++
		page, err := get(ctx, channel, cursor)
		if err != nil {
			return page, err
		}
		logger.V(1).Infof("%s page %d: %d names, cursor=%q", src, n, len(page.Names), page.Cursor)
		c.observer.ObservePage(src, len(page.Names))
		return page, nil
	}
}
