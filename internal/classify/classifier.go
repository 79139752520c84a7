package classify

import (
	"maps"
	"sort"
	"strings"
	"sync"

	"github.com/Iron-Ham/vitals/internal/event"
	"github.com/Iron-Ham/vitals/internal/logging"
	"github.com/Iron-Ham/vitals/internal/profile"
)

// SessionState is the classified activity state of an agent session.
type SessionState string

const (
	// StateIdle is the initial state of every tracked session. A session
	// only leaves idle on a positive pattern match; there is no decay back.
	StateIdle SessionState = "idle"

	// StateWorking means a busy pattern matched the window tail.
	StateWorking SessionState = "working"

	// StateWaiting means a prompt pattern matched with no busy match.
	StateWaiting SessionState = "waiting"
)

// String returns the state as a string.
func (s SessionState) String() string {
	return string(s)
}

// Matching bounds: the profile sees the last tailLines non-blank lines of
// the most recent tailBytes of the window, so stale matches scrolled into
// history do not pin the state.
const (
	tailBytes = 2048
	tailLines = 10
)

// session is the per-session state owned by the Classifier. Its mutex
// serializes window mutation and classification for one session; separate
// sessions classify independently.
type session struct {
	mu        sync.Mutex
	agentType string
	context   map[string]string
	window    *Window
	state     SessionState
	profile   *profile.Profile
}

// Classifier turns streaming terminal output into discrete session activity
// states. Each tracked session owns a bounded window of ANSI-stripped
// output; every ingested chunk re-evaluates the window tail against the
// session's agent profile and publishes a session:state-changed event on
// actual transitions.
type Classifier struct {
	mu         sync.RWMutex // guards the sessions map
	sessions   map[string]*session
	registry   *profile.Registry
	bus        *event.Bus
	logger     *logging.Logger
	windowSize int
}

// Option configures a Classifier.
type Option func(*Classifier)

// WithLogger sets the logger for classifier diagnostics.
func WithLogger(logger *logging.Logger) Option {
	return func(c *Classifier) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithWindowSize overrides the per-session window capacity in bytes.
// Non-positive values keep the default.
func WithWindowSize(size int) Option {
	return func(c *Classifier) {
		if size > 0 {
			c.windowSize = size
		}
	}
}

// NewClassifier creates a classifier resolving agent types through registry
// and publishing state changes on bus. A nil registry gets a registry with
// the built-in profiles; a nil bus disables event publishing.
func NewClassifier(registry *profile.Registry, bus *event.Bus, opts ...Option) *Classifier {
	c := &Classifier{
		sessions:   make(map[string]*session),
		registry:   registry,
		bus:        bus,
		logger:     logging.NopLogger(),
		windowSize: DefaultWindowSize,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.WithComponent("classifier")
	if c.registry == nil {
		c.registry = profile.NewRegistry(c.logger)
	}
	return c
}

// Track registers a session for classification with the given agent type
// and optional correlation context. Tracking an already tracked session
// with the same agent type is a no-op; a different agent type replaces the
// profile and resets the window and state to idle.
func (c *Classifier) Track(sessionID, agentType string, ctx map[string]string) {
	prof := c.registry.Get(agentType)

	c.mu.Lock()
	existing, tracked := c.sessions[sessionID]
	if tracked && existing.agentType == agentType {
		c.mu.Unlock()
		c.logger.WithSession(sessionID).Debug("session already tracked", "agent_type", agentType)
		return
	}
	c.sessions[sessionID] = &session{
		agentType: agentType,
		context:   maps.Clone(ctx),
		window:    NewWindow(c.windowSize),
		state:     StateIdle,
		profile:   prof,
	}
	c.mu.Unlock()

	if tracked {
		c.logger.WithSession(sessionID).Debug("replaced session agent type", "agent_type", agentType)
	} else {
		c.logger.WithSession(sessionID).Debug("tracking session", "agent_type", agentType)
	}
}

// Untrack removes a session and releases its window. Unknown sessions are
// a no-op.
func (c *Classifier) Untrack(sessionID string) {
	c.mu.Lock()
	_, tracked := c.sessions[sessionID]
	delete(c.sessions, sessionID)
	c.mu.Unlock()

	if tracked {
		c.logger.WithSession(sessionID).Debug("untracked session")
	}
}

// Ingest processes one chunk of raw terminal output for a session: strip
// ANSI sequences, append to the window (evicting the oldest bytes beyond
// the bound), and re-classify the window tail. Busy patterns map to
// working, prompt patterns to waiting, and a chunk that matches nothing
// leaves the state exactly as it was. Actual transitions publish a
// session:state-changed event carrying the session's correlation context.
//
// Chunks for unknown sessions log a warning and are dropped. Ingest
// tolerates arbitrary bytes and never panics.
func (c *Classifier) Ingest(sessionID string, chunk []byte) {
	c.mu.RLock()
	sess, tracked := c.sessions[sessionID]
	c.mu.RUnlock()
	if !tracked {
		c.logger.WithSession(sessionID).Warn("dropping chunk for unknown session")
		return
	}
	if len(chunk) == 0 {
		return
	}

	sess.mu.Lock()
	sess.window.Append([]byte(StripANSI(string(chunk))))

	previous := sess.state
	next := previous
	switch sess.profile.Match(tailOf(sess.window.String())) {
	case profile.VerdictBusy:
		next = StateWorking
	case profile.VerdictPrompt:
		next = StateWaiting
	}

	changed := next != previous
	if changed {
		sess.state = next
	}
	ctx := maps.Clone(sess.context)
	sess.mu.Unlock()

	// Publish outside the session lock so a slow subscriber cannot stall
	// ingestion for this session.
	if changed {
		c.logger.WithSession(sessionID).Debug("session state changed",
			"previous_state", previous.String(),
			"new_state", next.String())
		if c.bus != nil {
			c.bus.Publish(event.NewSessionStateChangedEvent(sessionID, previous.String(), next.String(), ctx))
		}
	}
}

// State returns the current classified state of a session.
func (c *Classifier) State(sessionID string) (SessionState, bool) {
	c.mu.RLock()
	sess, tracked := c.sessions[sessionID]
	c.mu.RUnlock()
	if !tracked {
		return "", false
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()
	return sess.state, true
}

// Sessions returns the IDs of all tracked sessions in sorted order.
func (c *Classifier) Sessions() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	ids := make([]string, 0, len(c.sessions))
	for id := range c.sessions {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Clear untracks every session. Used at engine shutdown.
func (c *Classifier) Clear() {
	c.mu.Lock()
	c.sessions = make(map[string]*session)
	c.mu.Unlock()
}

// tailOf extracts the classification tail from window contents: the last
// tailLines non-blank lines of the most recent tailBytes. Lines keep their
// original spacing because prompt patterns can be whitespace-sensitive.
func tailOf(text string) string {
	if len(text) > tailBytes {
		text = text[len(text)-tailBytes:]
	}

	lines := strings.Split(text, "\n")
	tail := make([]string, 0, tailLines)
	for i := len(lines) - 1; i >= 0 && len(tail) < tailLines; i-- {
		if strings.TrimSpace(lines[i]) == "" {
			continue
		}
		tail = append([]string{lines[i]}, tail...)
	}
	return strings.Join(tail, "\n")
}
