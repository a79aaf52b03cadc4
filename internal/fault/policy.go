// Package fault decides whether a named checkpoint should fail. The
// orchestrators consult a Policy at fixed checkpoints instead of drawing
// random numbers inline, so tests can script every failure path.
package fault

import (
	"math/rand/v2"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
)

// Checkpoint names a point where a failure may be injected
type Checkpoint string

const (
	BookLookupBusy       Checkpoint = "book_lookup_busy"
	StoreRead            Checkpoint = "store_read"
	StoreWrite           Checkpoint = "store_write"
	StoreDelete          Checkpoint = "store_delete"
	DeleteEligibility    Checkpoint = "delete_eligibility"
	DigitalCopyFetch     Checkpoint = "digital_copy_fetch"
	BookAvailability     Checkpoint = "book_availability"
	CategoryUndetermined Checkpoint = "category_undetermined"
)

// Checkpoints lists every checkpoint the services consult
var Checkpoints = []Checkpoint{
	BookLookupBusy,
	StoreRead,
	StoreWrite,
	StoreDelete,
	DeleteEligibility,
	DigitalCopyFetch,
	BookAvailability,
	CategoryUndetermined,
}

// Policy reports whether the given checkpoint should fail now
type Policy interface {
	ShouldFail(checkpoint Checkpoint) bool
}

// Never is the production default
type Never struct{}

func (Never) ShouldFail(Checkpoint) bool { return false }

// Random fails each checkpoint with an independent probability
type Random struct {
	mu    sync.Mutex
	rng   *rand.Rand
	rate  float64
	rates map[Checkpoint]float64
}

// NewRandom creates a seeded policy. rate applies to every checkpoint not
// listed in rates.
func NewRandom(seed uint64, rate float64, rates map[Checkpoint]float64) *Random {
	r := &Random{
		rng:   rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
		rate:  clamp(rate),
		rates: make(map[Checkpoint]float64, len(rates)),
	}
	for cp, p := range rates {
		r.rates[cp] = clamp(p)
	}
	return r
}

func (r *Random) ShouldFail(checkpoint Checkpoint) bool {
	p, ok := r.rates[checkpoint]
	if !ok {
		p = r.rate
	}
	if p <= 0 {
		return false
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rng.Float64() < p
}

func clamp(p float64) float64 {
	switch {
	case p < 0:
		return 0
	case p > 1:
		return 1
	default:
		return p
	}
}

// Scripted replays queued outcomes per checkpoint. An empty queue means pass.
type Scripted struct {
	mu     sync.Mutex
	queues map[Checkpoint][]bool
	seen   map[Checkpoint]int
}

func NewScripted() *Scripted {
	return &Scripted{
		queues: make(map[Checkpoint][]bool),
		seen:   make(map[Checkpoint]int),
	}
}

// Queue appends outcomes for checkpoint. true means fail.
func (s *Scripted) Queue(checkpoint Checkpoint, outcomes ...bool) *Scripted {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queues[checkpoint] = append(s.queues[checkpoint], outcomes...)
	return s
}

// FailNext makes the next consultation of checkpoint fail
func (s *Scripted) FailNext(checkpoint Checkpoint) *Scripted {
	return s.Queue(checkpoint, true)
}

func (s *Scripted) ShouldFail(checkpoint Checkpoint) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.seen[checkpoint]++
	q := s.queues[checkpoint]
	if len(q) == 0 {
		return false
	}
	s.queues[checkpoint] = q[1:]
	return q[0]
}

// Consulted returns how many times checkpoint has been asked
func (s *Scripted) Consulted(checkpoint Checkpoint) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.seen[checkpoint]
}

type instrumented struct {
	next     Policy
	injected *prometheus.CounterVec
	logger   zerolog.Logger
}

// Instrumented counts and logs every injected failure of next
func Instrumented(next Policy, injected *prometheus.CounterVec, logger zerolog.Logger) Policy {
	return &instrumented{
		next:     next,
		injected: injected,
		logger:   logger.With().Str("component", "fault_policy").Logger(),
	}
}

func (p *instrumented) ShouldFail(checkpoint Checkpoint) bool {
	if !p.next.ShouldFail(checkpoint) {
		return false
	}
	p.injected.WithLabelValues(string(checkpoint)).Inc()
	p.logger.Debug().Str("checkpoint", string(checkpoint)).Msg("injecting fault")
	return true
}
