package services

import (
	"github.com/google/logger"

	"giveaway/internal/models"
)

// BuildPool merges the enabled sources into one pool.
//
// Names are normalized, concatenated in SourcePrecedence order and
// deduplicated on first occurrence. With extraTickets, every distinct viewer
// or moderator already in the pool gets one more ticket appended, even when
// viewers were not enabled as a source. Followers and subscribers never get
// extra tickets.
func BuildPool(enabled models.SourceSet, collected map[models.Source][]string, extraTickets bool) models.Pool {
	var merged []models.Ticket
	for _, src := range models.SourcePrecedence {
		if !enabled.Has(src) {
			continue
		}
		merged = append(merged, NormalizeAll(collected[src])...)
	}

	pool := dedup(merged)
	if !extraTickets {
		return pool
	}

	logger.Infof("Adding extra tickets for viewers")
	inPool := models.NewTicketSet(pool...)
	granted := make(models.TicketSet)
	for _, src := range []models.Source{models.Viewers, models.Moderators} {
		for _, t := range NormalizeAll(collected[src]) {
			if !inPool.Contains(t) || granted.Contains(t) {
				continue
			}
			granted[t] = struct{}{}
			logger.Infof("%s extra ticket", t)
			pool = append(pool, t)
		}
	}
	return pool
}

func dedup(tickets []models.Ticket) models.Pool {
	seen := make(models.TicketSet, len(tickets))
	pool := make(models.Pool, 0, len(tickets))
	for _, t := range tickets {
		if seen.Contains(t) {
			continue
		}
		seen[t] = struct{}{}
		pool = append(pool, t)
	}
	return pool
}
