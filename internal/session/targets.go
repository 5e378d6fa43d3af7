package session

import (
	"strings"
	"sync"
	"time"
)

type pendingTarget struct {
	target  string
	savedAt time.Time
}

// Targets holds one pending redirect target per browser session.
// Entries live in process memory only and are removed on first read.
type Targets struct {
	mu      sync.Mutex
	pending map[string]pendingTarget
	now     func() time.Time
}

// NewTargets creates an empty target store.
func NewTargets() *Targets {
	return &Targets{
		pending: make(map[string]pendingTarget),
		now:     time.Now,
	}
}

// Save records target for the browser session, replacing any earlier one.
func (t *Targets) Save(browserSession, target string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.pending[browserSession] = pendingTarget{target: target, savedAt: t.now()}
}

// Pop returns and clears the pending target. Targets that are not
// origin-relative paths are dropped and reported as absent.
func (t *Targets) Pop(browserSession string) (string, bool) {
	t.mu.Lock()
	p, ok := t.pending[browserSession]
	delete(t.pending, browserSession)
	t.mu.Unlock()

	if !ok || !IsLocalPath(p.target) {
		return "", false
	}
	return p.target, true
}

// Prune drops targets saved longer ago than maxAge and returns how many.
func (t *Targets) Prune(maxAge time.Duration) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	cutoff := t.now().Add(-maxAge)
	n := 0
	for k, p := range t.pending {
		if p.savedAt.Before(cutoff) {
			delete(t.pending, k)
			n++
		}
	}
	return n
}

// Len returns the number of pending targets.
func (t *Targets) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.pending)
}

// IsLocalPath reports whether p is a path on this origin ("/x", not "//host" or "http://").
func IsLocalPath(p string) bool {
	if !strings.HasPrefix(p, "/") || strings.HasPrefix(p, "//") {
		return false
	}
	return !strings.ContainsAny(p, "\\\r\n")
}
