// Package conversation owns per-session chat memory: an ordered turn log
// keyed by the caller's session fingerprint, trimmed on every append and
// expired after a period of inactivity.
package conversation

import (
	"log"
	"sync"
	"time"

	"ai-deptdocs-be/pkg/rag/prompt"

	"github.com/patrickmn/go-cache"
)

// Turn roles
const (
	RoleSystem = "system"
	RoleHuman  = "human"
	RoleAI     = "ai"
)

// Turn is one message in a session's ordered log.
type Turn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Config controls memory size and lifetime. Zero values fall back to the
// defaults used in production: one remembered exchange, two-minute expiry.
type Config struct {
	// MemoryExchanges is the number of complete human→ai pairs kept after
	// the pinned system turn.
	MemoryExchanges int

	// SessionTTL is the inactivity window after which a session is swept.
	SessionTTL time.Duration

	// SweepInterval is how often the background sweep runs.
	SweepInterval time.Duration

	// SystemPrompt, when non-empty, is pinned at position 0 of every
	// session and survives trimming.
	SystemPrompt string
}

func (c Config) withDefaults() Config {
	if c.MemoryExchanges <= 0 {
		c.MemoryExchanges = 1
	}
	if c.SessionTTL <= 0 {
		c.SessionTTL = 2 * time.Minute
	}
	if c.SweepInterval <= 0 {
		c.SweepInterval = 30 * time.Second
	}
	return c
}

// session is the per-key value held in the cache. The mutex serialises
// appends within one session; sessions never share a lock.
type session struct {
	mu    sync.Mutex
	turns []Turn
}

// Store keeps all live sessions. Expired sessions are removed by the
// cache janitor; a fresh query from the same fingerprint simply creates a
// new empty session, so an unknown id is never an error.
type Store struct {
	cfg      Config
	sessions *cache.Cache
	logger   *log.Logger
}

func NewStore(cfg Config, logger *log.Logger) *Store {
	cfg = cfg.withDefaults()
	return &Store{
		cfg:      cfg,
		sessions: cache.New(cfg.SessionTTL, cfg.SweepInterval),
		logger:   logger,
	}
}

// get returns the live session for id, creating it when absent, and
// refreshes its expiry so activity keeps a session alive.
func (s *Store) get(id string) *session {
	if x, found := s.sessions.Get(id); found {
		sess := x.(*session)
		s.sessions.Set(id, sess, cache.DefaultExpiration)
		return sess
	}

	sess := &session{}
	if s.cfg.SystemPrompt != "" {
		sess.turns = []Turn{{Role: RoleSystem, Content: s.cfg.SystemPrompt}}
	}
	// Add resolves the race when two requests create the same session: the
	// loser re-reads the winner's entry.
	if err := s.sessions.Add(id, sess, cache.DefaultExpiration); err != nil {
		if x, found := s.sessions.Get(id); found {
			return x.(*session)
		}
	}
	return sess
}

// GetHistory returns a copy of the session's turns. A swept or never-seen
// session yields an empty history.
func (s *Store) GetHistory(id string) []Turn {
	sess := s.get(id)
	sess.mu.Lock()
	defer sess.mu.Unlock()

	out := make([]Turn, len(sess.turns))
	copy(out, sess.turns)
	return out
}

// Append adds turns to the session and trims afterwards. Human turns are
// unwrapped first so history only ever holds the clean user-facing query,
// never the internal prompt wrapper.
func (s *Store) Append(id string, turns ...Turn) {
	sess := s.get(id)
	sess.mu.Lock()
	defer sess.mu.Unlock()

	for _, t := range turns {
		if t.Role == RoleHuman {
			t.Content = prompt.ExtractQuery(t.Content)
		}
		sess.turns = append(sess.turns, t)
	}
	sess.turns = trim(sess.turns, s.cfg.MemoryExchanges)

	if s.logger != nil {
		s.logger.Printf("[HISTORY] Session %s now holds %d turns", shortID(id), len(sess.turns))
	}
}

// Reset drops the session entirely.
func (s *Store) Reset(id string) {
	s.sessions.Delete(id)
}

// Len reports the number of live sessions (expired entries excluded).
func (s *Store) Len() int {
	return s.sessions.ItemCount()
}

// trim keeps the system turn (if any, always at index 0) plus the last n
// complete human→ai exchanges, oldest pairs dropped first. A dangling
// trailing human turn is kept so the model still sees the latest prompt.
func trim(turns []Turn, n int) []Turn {
	if len(turns) == 0 {
		return turns
	}

	var head []Turn
	rest := turns
	if turns[0].Role == RoleSystem {
		head = turns[:1]
		rest = turns[1:]
	}

	// A trailing human turn has no reply yet; hold it aside so it never
	// counts toward a pair.
	var dangling []Turn
	if len(rest) > 0 && rest[len(rest)-1].Role == RoleHuman {
		dangling = rest[len(rest)-1:]
		rest = rest[:len(rest)-1]
	}

	// Walk backward collecting the last n ai turns with their preceding
	// human turns.
	pairs := 0
	cut := len(rest)
	for i := len(rest) - 1; i >= 0; i-- {
		if rest[i].Role != RoleAI {
			continue
		}
		pairs++
		cut = i
		if i > 0 && rest[i-1].Role == RoleHuman {
			cut = i - 1
		}
		if pairs == n {
			break
		}
	}
	if pairs < n {
		cut = 0
	}

	kept := append(append(head, rest[cut:]...), dangling...)
	out := make([]Turn, len(kept))
	copy(out, kept)
	return out
}

func shortID(id string) string {
	if len(id) <= 8 {
		return id
	}
	return id[:8]
}
