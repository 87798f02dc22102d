package core

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// IDGenerator mints record ids derived from the creation time in
// milliseconds. Ids are strictly increasing for a given generator even when
// several are requested within the same millisecond.
type IDGenerator struct {
	mu   sync.Mutex
	last int64
	now  func() time.Time
}

func NewIDGenerator(now func() time.Time) *IDGenerator {
	if now == nil {
		now = time.Now
	}
	return &IDGenerator{now: now}
}

func (g *IDGenerator) Next() int64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	id := g.now().UnixMilli()
	if id <= g.last {
		id = g.last + 1
	}
	g.last = id
	return id
}

// NewGroupID returns an installment group id: a millisecond timestamp
// followed by a random suffix.
func NewGroupID(now time.Time) string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:9]
	return fmt.Sprintf("%d-%s", now.UnixMilli(), suffix)
}
