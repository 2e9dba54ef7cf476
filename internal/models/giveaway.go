package models

import (
	"sort"
	"time"
)

// Ticket is the canonical form of a participant name. Two raw names belong to
// the same participant iff their tickets are equal.
type Ticket string

// Source identifies where a list of participant names came from.
type Source int

const (
	Viewers Source = iota
	Moderators
	Followers
	Subscribers
)

// SourcePrecedence is the order in which sources are merged into a pool.
var SourcePrecedence = []Source{Viewers, Moderators, Followers, Subscribers}

func (s Source) String() string {
	switch s {
	case Viewers:
		return "viewers"
	case Moderators:
		return "moderators"
	case Followers:
		return "followers"
	case Subscribers:
		return "subscribers"
	default:
		return "unknown"
	}
}

// SourceSet is the set of sources enabled for a giveaway.
type SourceSet map[Source]bool

// NewSourceSet builds a SourceSet from the given sources.
func NewSourceSet(sources ...Source) SourceSet {
	set := make(SourceSet, len(sources))
	for _, s := range sources {
		set[s] = true
	}
	return set
}

// Has reports whether s is enabled.
func (s SourceSet) Has(src Source) bool { return s[src] }

// TicketSet is a membership set of canonical tickets.
type TicketSet map[Ticket]struct{}

// NewTicketSet builds a TicketSet from already normalized tickets.
func NewTicketSet(tickets ...Ticket) TicketSet {
	set := make(TicketSet, len(tickets))
	for _, t := range tickets {
		set[t] = struct{}{}
	}
	return set
}

// Contains reports whether t is in the set.
func (s TicketSet) Contains(t Ticket) bool {
	_, ok := s[t]
	return ok
}

// Pool is the ordered sequence of tickets subject to the draw. A participant
// holding extra tickets appears more than once.
type Pool []Ticket

// Counts returns how many slots each distinct ticket occupies.
func (p Pool) Counts() map[Ticket]int {
	counts := make(map[Ticket]int, len(p))
	for _, t := range p {
		counts[t]++
	}
	return counts
}

// Distinct returns the distinct tickets in order of first appearance.
func (p Pool) Distinct() []Ticket {
	seen := make(map[Ticket]bool, len(p))
	out := make([]Ticket, 0, len(p))
	for _, t := range p {
		if seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out
}

// Clone returns a copy that shares no storage with p.
func (p Pool) Clone() Pool {
	return append(Pool(nil), p...)
}

// Page is one response of a paginated participant source. An empty Cursor
// means there are no more pages.
type Page struct {
	Names  []string
	Cursor string
	Total  int
}

// Chatters mirrors the sublists returned by the chatters endpoint.
type Chatters struct {
	Count       int      `json:"chatter_count"`
	Broadcaster []string `json:"broadcaster"`
	VIPs        []string `json:"vips"`
	Moderators  []string `json:"moderators"`
	Staff       []string `json:"staff"`
	Admins      []string `json:"admins"`
	GlobalMods  []string `json:"global_mods"`
	Viewers     []string `json:"viewers"`
}

// DrawResult stores the outcome of a single draw.
type DrawResult struct {
	ID       string    `json:"id"`
	Channel  string    `json:"channel"`
	Winner   Ticket    `json:"winner"`
	Tickets  int       `json:"tickets"`  // slots held by the winner
	PoolSize int       `json:"poolSize"` // total slots at draw time
	At       time.Time `json:"at"`
}

// Distribution tallies how often each distinct ticket was drawn.
type Distribution map[Ticket]int

// DistributionRow compares one ticket's observed frequency with k/N.
type DistributionRow struct {
	Ticket   Ticket  `json:"ticket"`
	Slots    int     `json:"slots"`
	Draws    int     `json:"draws"`
	Observed float64 `json:"observed"`
	Expected float64 `json:"expected"`
}

// DistributionReport is the result of a resampling diagnostic run.
type DistributionReport struct {
	Trials   int               `json:"trials"`
	PoolSize int               `json:"poolSize"`
	Rows     []DistributionRow `json:"rows"`
}

// NewDistributionReport builds a report sorted by ticket.
func NewDistributionReport(pool Pool, dist Distribution, trials int) DistributionReport {
	slots := pool.Counts()
	rows := make([]DistributionRow, 0, len(dist))
	for t, n := range dist {
		row := DistributionRow{Ticket: t, Slots: slots[t], Draws: n}
		if trials > 0 {
			row.Observed = float64(n) / float64(trials)
		}
		if len(pool) > 0 {
			row.Expected = float64(slots[t]) / float64(len(pool))
		}
		rows = append(rows, row)
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].Ticket < rows[j].Ticket })
	return DistributionReport{Trials: trials, PoolSize: len(pool), Rows: rows}
}
