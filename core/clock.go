package core

import (
	"fmt"
	"math/rand"
	"sync"
	"time"
)

// Clock is the loop's monotonic time source, measured in seconds since the
// runtime was created.
//
// Two read modes are provided:
//   - Now() returns a cache that the event loop refreshes once per turn. All
//     tasks within one turn observe the same time, which keeps timer ordering
//     deterministic.
//   - Timer() reads the high-resolution clock on every call, for measurements
//     that need sub-turn precision (e.g. per-task duration accounting).
type Clock struct {
	start time.Time
	cache float64
}

func newClock() *Clock {
	return &Clock{start: time.Now()}
}

// Now returns the per-turn cached time in seconds.
func (c *Clock) Now() float64 { return c.cache }

// Timer returns the high-resolution monotonic time in seconds.
func (c *Clock) Timer() float64 { return time.Since(c.start).Seconds() }

// advance refreshes the per-turn cache. Called by the loop at the top of each
// turn.
func (c *Clock) advance() float64 {
	c.cache = c.Timer()
	return c.cache
}

// UID is a 128-bit unique identifier, printed as 32 hex digits.
type UID struct {
	part [2]uint64
}

// String returns the full 32-hex-digit form.
func (u UID) String() string { return fmt.Sprintf("%016x%016x", u.part[0], u.part[1]) }

// ShortString returns the first 16 hex digits, enough for log correlation.
func (u UID) ShortString() string { return fmt.Sprintf("%016x", u.part[0]) }

// ParseUID parses the 32-hex-digit form produced by String.
func ParseUID(s string) (UID, *Error) {
	if len(s) != 32 {
		return UID{}, ErrSerializationFailed()
	}
	var a, b uint64
	if n, err := fmt.Sscanf(s, "%16x%16x", &a, &b); n != 2 || err != nil {
		return UID{}, ErrSerializationFailed()
	}
	return UID{part: [2]uint64{a, b}}, nil
}

// Random is the runtime's random source. A deterministic instance (fixed seed)
// makes a whole scenario reproducible; a nondeterministic instance is seeded
// from the system.
//
// Random is not safe for concurrent use. The runtime's instance belongs to the
// network goroutine; pool workers needing randomness must own a separate one.
type Random interface {
	// RandomInt returns a uniform integer in [min, max).
	RandomInt(min, max int) int
	// RandomDouble returns a uniform float64 in [0, 1).
	RandomDouble() float64
	// RandomUniqueID returns a fresh 128-bit identifier.
	RandomUniqueID() UID
}

type randomSource struct {
	r *rand.Rand
}

// NewSeededRandom returns a deterministic Random. Two instances with the same
// seed produce identical sequences.
func NewSeededRandom(seed int64) Random {
	return &randomSource{r: rand.New(rand.NewSource(seed))}
}

// NewRandom returns a nondeterministic Random seeded from the system clock.
func NewRandom() Random {
	return NewSeededRandom(time.Now().UnixNano())
}

func (s *randomSource) RandomInt(min, max int) int {
	return min + s.r.Intn(max-min)
}

func (s *randomSource) RandomDouble() float64 {
	return s.r.Float64()
}

func (s *randomSource) RandomUniqueID() UID {
	return UID{part: [2]uint64{s.r.Uint64(), s.r.Uint64()}}
}

// lockedRandom wraps a Random with a mutex for the rare users that draw from
// one source on more than one goroutine.
type lockedRandom struct {
	mu sync.Mutex
	r  Random
}

// NewLockedRandom returns a concurrency-safe wrapper around r.
func NewLockedRandom(r Random) Random { return &lockedRandom{r: r} }

func (l *lockedRandom) RandomInt(min, max int) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.r.RandomInt(min, max)
}

func (l *lockedRandom) RandomDouble() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.r.RandomDouble()
}

func (l *lockedRandom) RandomUniqueID() UID {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.r.RandomUniqueID()
}
