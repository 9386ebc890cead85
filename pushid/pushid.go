// Package pushid generates 20-character, chronologically sortable
// identifiers. An id is an 8-character encoding of the millisecond
// timestamp followed by 12 characters of randomness; ids generated within
// the same millisecond reuse the previous random suffix incremented by
// one, so lexicographic order always matches generation order.
package pushid

import (
	"crypto/rand"
	"fmt"
	"sync"
	"time"
)

// alphabet is ordered by ASCII value so byte-wise comparison of ids agrees
// with chronological comparison.
const alphabet = "-0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ_abcdefghijklmnopqrstuvwxyz"

// Length is the length of every generated id.
const Length = 20

// Generator produces push ids. Safe for concurrent use.
type Generator struct {
	mu         sync.Mutex
	lastMillis int64
	lastRand   [12]int

	// now is replaced in tests.
	now func() time.Time
}

// New returns a generator backed by the system clock.
func New() *Generator {
	return &Generator{now: time.Now}
}

// Generate returns the next id.
func (g *Generator) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()

	millis := g.now().UnixMilli()
	if millis != g.lastMillis {
		g.lastMillis = millis
		g.reseed()
	} else {
		// Same millisecond: increment the previous suffix so the new id
		// sorts after it.
		g.increment()
	}

	var id [Length]byte
	ts := millis
	for i := 7; i >= 0; i-- {
		id[i] = alphabet[ts%64]
		ts /= 64
	}
	for i, r := range g.lastRand {
		id[8+i] = alphabet[r]
	}
	return string(id[:])
}

func (g *Generator) reseed() {
	var buf [12]byte
	if _, err := rand.Read(buf[:]); err != nil {
		// crypto/rand never fails on supported platforms.
		panic(fmt.Sprintf("pushid: read random: %v", err))
	}
	for i, b := range buf {
		g.lastRand[i] = int(b) % 64
	}
}

func (g *Generator) increment() {
	for i := 11; i >= 0; i-- {
		if g.lastRand[i] < 63 {
			g.lastRand[i]++
			return
		}
		g.lastRand[i] = 0
	}
	// All 64^12 suffixes exhausted within one millisecond; wrapping to
	// zero keeps ids unique across milliseconds and is unreachable in
	// practice.
}

var defaultGenerator = New()

// Generate returns the next id from the package-level generator.
func Generate() string {
	return defaultGenerator.Generate()
}
