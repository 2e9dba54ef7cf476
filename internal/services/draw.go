package services

import (
	crand "crypto/rand"
	"fmt"
	"math/rand/v2"
	"sync"

	"giveaway/internal/models"
)

// DefaultTrials is the number of resamples in a distribution run.
const DefaultTrials = 999

// DrawEngine picks winners uniformly over pool slots, so a participant with
// two tickets is twice as likely to win as one with a single ticket.
type DrawEngine struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewDrawEngine creates a DrawEngine around rng. The engine owns rng from
// here on.
func NewDrawEngine(rng *rand.Rand) *DrawEngine {
	return &DrawEngine{rng: rng}
}

// NewSeededDrawEngine creates a reproducible DrawEngine.
func NewSeededDrawEngine(seed uint64) *DrawEngine {
	return NewDrawEngine(rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)))
}

// NewRandomDrawEngine creates a DrawEngine seeded from crypto/rand.
func NewRandomDrawEngine() (*DrawEngine, error) {
	var seed [32]byte
	if _, err := crand.Read(seed[:]); err != nil {
		return nil, fmt.Errorf("seed draw engine: %w", err)
	}
	return NewDrawEngine(rand.New(rand.NewChaCha8(seed))), nil
}

// pick is the single selection primitive shared by both draw modes.
func (e *DrawEngine) pick(pool models.Pool) models.Ticket {
	e.mu.Lock()
	i := e.rng.IntN(len(pool))
	e.mu.Unlock()
	return pool[i]
}

// DrawOne selects one winner. It fails with models.ErrEmptyPool when the
// pool has no slots.
func (e *DrawEngine) DrawOne(pool models.Pool) (models.Ticket, error) {
	if len(pool) == 0 {
		return "", models.ErrEmptyPool
	}
	return e.pick(pool), nil
}

// DrawDistribution draws trials times with replacement and tallies the
// winners. Every distinct ticket is present in the result, with zero when it
// was never drawn.
func (e *DrawEngine) DrawDistribution(pool models.Pool, trials int) (models.Distribution, error) {
	if len(pool) == 0 {
		return nil, models.ErrEmptyPool
	}
	if trials < 1 {
		return nil, fmt.Errorf("trials must be positive, got %d", trials)
	}

	dist := make(models.Distribution, len(pool))
	for _, t := range pool {
		dist[t] = 0
	}
	for i := 0; i < trials; i++ {
		dist[e.pick(pool)]++
	}
	return dist, nil
}
