// Package memory holds per-session conversational state for workflow runs:
// user profile, preferences, cart, order history, recent turns, and recent
// tool outputs, with bounded retention and backend persistence.
package memory

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/rivermist/shopflow/pkg/schema"
)

// Settings bounds how much history a session retains.
type Settings struct {
	MaxTurns       int
	MaxToolResults int
	CacheTTL       time.Duration
}

// DefaultSettings returns the retention defaults.
func DefaultSettings() Settings {
	return Settings{MaxTurns: 8, MaxToolResults: 4, CacheTTL: 5 * time.Minute}
}

// SettingsFromEnv reads retention bounds from the environment:
//
//	MEMORY_MAX_TURNS         — recent turns kept (default 8)
//	MEMORY_MAX_TOOL_RESULTS  — tool outputs kept (default 4)
func SettingsFromEnv() Settings {
	s := DefaultSettings()
	if raw := os.Getenv("MEMORY_MAX_TURNS"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			s.MaxTurns = n
		}
	}
	if raw := os.Getenv("MEMORY_MAX_TOOL_RESULTS"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			s.MaxToolResults = n
		}
	}
	return s
}

// Turn is one conversational exchange entry.
type Turn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// State is the full session memory, split by retention horizon: profile,
// preferences, cart, and order history persist across runs; recent turns and
// tool outputs are bounded rolling windows.
type State struct {
	UserProfile     map[string]string   `json:"user_profile,omitempty"`
	Preferences     map[string]string   `json:"preferences,omitempty"`
	ActiveCart      map[string]any      `json:"active_cart,omitempty"`
	OrderHistory    []map[string]any    `json:"order_history,omitempty"`
	HistorySummary  string              `json:"history_summary,omitempty"`
	EpisodicNotes   []string            `json:"episodic_notes,omitempty"`
	RecentTurns     []Turn              `json:"recent_turns,omitempty"`
	LastToolOutputs []schema.ToolResult `json:"last_tool_outputs,omitempty"`
	CurrentPlan     *schema.Plan        `json:"current_plan,omitempty"`
}

// NewState returns an empty state with maps initialized.
func NewState() State {
	return State{
		UserProfile: make(map[string]string),
		Preferences: make(map[string]string),
	}
}

// Store manages one session's memory. All methods are safe for concurrent
// use; every mutation persists through the backend.
type Store struct {
	sessionID string
	settings  Settings
	backend   Backend

	mu    sync.Mutex
	state State
	cache *gocache.Cache
}

// NewStore loads (or initializes) the session state from the backend.
func NewStore(sessionID string, settings Settings, backend Backend) (*Store, error) {
	if backend == nil {
		backend = NoopBackend{}
	}
	state, err := backend.Load(sessionID)
	if err != nil {
		return nil, schema.NewErrorf(schema.ErrCodeStore, "load memory for session %s", sessionID).WithCause(err)
	}
	if state.UserProfile == nil {
		state.UserProfile = make(map[string]string)
	}
	if state.Preferences == nil {
		state.Preferences = make(map[string]string)
	}
	return &Store{
		sessionID: sessionID,
		settings:  settings,
		backend:   backend,
		state:     state,
		cache:     gocache.New(settings.CacheTTL, 2*settings.CacheTTL),
	}, nil
}

// AddTurn appends a conversational turn, trimming to the retention window.
func (s *Store) AddTurn(role, content string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.RecentTurns = append(s.state.RecentTurns, Turn{Role: role, Content: content})
	if len(s.state.RecentTurns) > s.settings.MaxTurns {
		s.state.RecentTurns = s.state.RecentTurns[len(s.state.RecentTurns)-s.settings.MaxTurns:]
	}
	return s.persist()
}

// SetPlan records the plan driving the current run.
func (s *Store) SetPlan(plan *schema.Plan) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.CurrentPlan = plan
	return s.persist()
}

// AddToolResult appends a tool output, trims the window, and folds
// recognized payloads (cart, orders, tickets) into the long-term sections.
func (s *Store) AddToolResult(result schema.ToolResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.LastToolOutputs = append(s.state.LastToolOutputs, result)
	if len(s.state.LastToolOutputs) > s.settings.MaxToolResults {
		s.state.LastToolOutputs = s.state.LastToolOutputs[len(s.state.LastToolOutputs)-s.settings.MaxToolResults:]
	}
	s.absorbToolOutput(result)
	return s.persist()
}

// AddEpisodicNote records a free-form note.
func (s *Store) AddEpisodicNote(note string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.EpisodicNotes = append(s.state.EpisodicNotes, note)
	return s.persist()
}

// SetUserDetail stores a durable user attribute.
func (s *Store) SetUserDetail(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.UserProfile[key] = value
	s.cache.Delete(key)
	return s.persist()
}

// SetPreference stores a durable user preference.
func (s *Store) SetPreference(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.Preferences[key] = value
	s.cache.Delete(key)
	return s.persist()
}

// SetHistorySummary replaces the condensed conversation summary.
func (s *Store) SetHistorySummary(summary string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.HistorySummary = summary
	return s.persist()
}

// CachedValue resolves a field from session memory: user profile first, then
// preferences, then (for order_id/tracking_id) the most recent order history
// entry carrying the field. Hits are kept in a TTL cache. Returns ("", false)
// when the field is unknown.
func (s *Store) CachedValue(key string) (string, bool) {
	if v, ok := s.cache.Get(key); ok {
		return v.(string), true
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if v, ok := s.state.UserProfile[key]; ok {
		s.cache.SetDefault(key, v)
		return v, true
	}
	if v, ok := s.state.Preferences[key]; ok {
		s.cache.SetDefault(key, v)
		return v, true
	}
	if key == "order_id" || key == "tracking_id" {
		for i := len(s.state.OrderHistory) - 1; i >= 0; i-- {
			if raw, ok := s.state.OrderHistory[i][key]; ok {
				v := fmt.Sprintf("%v", raw)
				s.cache.SetDefault(key, v)
				return v, true
			}
		}
	}
	return "", false
}

// StoreInput files a collected input field into the right memory section:
// identity fields into the user profile, free-text fields into episodic
// notes, everything else into preferences.
func (s *Store) StoreInput(field, value string) error {
	switch field {
	case "user_id", "address":
		return s.SetUserDetail(field, value)
	case "reason", "subject", "description":
		return s.AddEpisodicNote(fmt.Sprintf("%s: %s", field, value))
	default:
		return s.SetPreference(field, value)
	}
}

// Snapshot returns a copy of the current state for inspection.
func (s *Store) Snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := s.state
	snap.UserProfile = copyStringMap(s.state.UserProfile)
	snap.Preferences = copyStringMap(s.state.Preferences)
	snap.EpisodicNotes = append([]string(nil), s.state.EpisodicNotes...)
	snap.RecentTurns = append([]Turn(nil), s.state.RecentTurns...)
	snap.LastToolOutputs = append([]schema.ToolResult(nil), s.state.LastToolOutputs...)
	snap.OrderHistory = append([]map[string]any(nil), s.state.OrderHistory...)
	return snap
}

// CompileContext renders the session memory into the context block handed to
// the executor, one labeled section per populated memory area, ending with
// the intent and task lines.
func (s *Store) CompileContext(task, intent, currentStep string, entities map[string]string) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	var sections []string
	if len(s.state.UserProfile) > 0 {
		sections = append(sections, "User profile: "+inlineJSON(s.state.UserProfile))
	}
	if len(s.state.Preferences) > 0 {
		sections = append(sections, "Preferences: "+inlineJSON(s.state.Preferences))
	}
	if len(s.state.ActiveCart) > 0 {
		sections = append(sections, "Active cart: "+inlineJSON(s.state.ActiveCart))
	}
	if len(s.state.OrderHistory) > 0 {
		recent := s.state.OrderHistory
		if len(recent) > 3 {
			recent = recent[len(recent)-3:]
		}
		sections = append(sections, "Order history: "+inlineJSON(recent))
	}
	if s.state.HistorySummary != "" {
		sections = append(sections, "History summary: "+s.state.HistorySummary)
	}
	if len(s.state.RecentTurns) > 0 {
		turns := s.state.RecentTurns
		if len(turns) > 4 {
			turns = turns[len(turns)-4:]
		}
		parts := make([]string, 0, len(turns))
		for _, t := range turns {
			parts = append(parts, t.Role+": "+truncate(t.Content, 120))
		}
		sections = append(sections, "Recent turns: "+strings.Join(parts, "; "))
	}
	if s.state.CurrentPlan != nil && len(s.state.CurrentPlan.Steps) > 0 {
		sections = append(sections, "Plan: "+strings.Join(s.state.CurrentPlan.Phrases(), ", "))
	}
	if currentStep != "" {
		sections = append(sections, "Current step: "+currentStep)
	}
	if len(s.state.LastToolOutputs) > 0 {
		parts := make([]string, 0, len(s.state.LastToolOutputs))
		for _, out := range s.state.LastToolOutputs {
			parts = append(parts, out.Tool+": "+truncate(out.Output, 140))
		}
		sections = append(sections, "Tool outputs: "+strings.Join(parts, "; "))
	}
	sections = append(sections, "Intent: "+intent)
	if len(entities) > 0 {
		sections = append(sections, "Entities: "+inlineJSON(entities))
	}
	sections = append(sections, "Task: "+task)
	return strings.Join(sections, "\n")
}

func (s *Store) persist() error {
	if err := s.backend.Save(s.sessionID, s.state); err != nil {
		return schema.NewErrorf(schema.ErrCodeStore, "save memory for session %s", s.sessionID).WithCause(err)
	}
	return nil
}

func copyStringMap(m map[string]string) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// truncate shortens text to at most limit runes, cutting on a rune boundary
// so multi-byte characters are never split.
func truncate(text string, limit int) string {
	runes := []rune(text)
	if len(runes) <= limit {
		return text
	}
	return string(runes[:limit-3]) + "..."
}

func inlineJSON(v any) string {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(raw)
}
