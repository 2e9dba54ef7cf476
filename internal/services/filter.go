package services

import (
	"unicode/utf8"

	"github.com/agnivade/levenshtein"
	"github.com/google/logger"

	"giveaway/internal/models"
)

const (
	reasonDiscarded = "discard list"
	reasonModerator = "moderator"

	// minHintLength is the shortest discard entry that gets typo hints.
	minHintLength   = 4
	maxHintDistance = 2
)

// DiscardSet normalizes discard list lines into a ticket set. Blank lines are
// ignored.
func DiscardSet(lines []string) models.TicketSet {
	set := make(models.TicketSet, len(lines))
	for _, line := range lines {
		t := Normalize(line)
		if t == "" {
			continue
		}
		set[t] = struct{}{}
	}
	return set
}

// Filter removes every copy of a ticket that is in discard or, when
// dropModerators is set, in moderators.
func Filter(pool models.Pool, discard, moderators models.TicketSet, dropModerators bool) models.Pool {
	if dropModerators {
		logger.Infof("Auto dropping moderators")
	}

	out := make(models.Pool, 0, len(pool))
	reported := make(models.TicketSet)
	for _, t := range pool {
		reason := exclusionReason(t, discard, moderators, dropModerators)
		if reason == "" {
			out = append(out, t)
			continue
		}
		if !reported.Contains(t) {
			reported[t] = struct{}{}
			logger.Infof("User %s will be deleted from tickets (%s)", t, reason)
		}
	}
	return out
}

func exclusionReason(t models.Ticket, discard, moderators models.TicketSet, dropModerators bool) string {
	if discard.Contains(t) {
		return reasonDiscarded
	}
	if dropModerators && moderators.Contains(t) {
		return reasonModerator
	}
	return ""
}

// TypoHints returns, for each discard entry that matches no ticket in the
// pool, the pool tickets within a small edit distance of it.
func TypoHints(pool models.Pool, discard models.TicketSet) map[models.Ticket][]models.Ticket {
	distinct := pool.Distinct()
	inPool := models.NewTicketSet(distinct...)

	hints := make(map[models.Ticket][]models.Ticket)
	for d := range discard {
		if inPool.Contains(d) || utf8.RuneCountInString(string(d)) < minHintLength {
			continue
		}
		for _, t := range distinct {
			if dist := levenshtein.ComputeDistance(string(d), string(t)); dist > 0 && dist <= maxHintDistance {
				hints[d] = append(hints[d], t)
			}
		}
	}
	return hints
}
