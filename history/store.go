package history

import (
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"kahaani/agent"
	"kahaani/cost"
	"kahaani/pipeline"
)

const (
	StorageKey              = "kahaani_history"
	DefaultCapacity         = 20
	DefaultFallbackCapacity = 10
)

// Entry is a trimmed, persisted record of one generation.
type Entry struct {
	ID           string               `json:"id"`
	Timestamp    time.Time            `json:"timestamp"`
	Mode         agent.ContentMode    `json:"mode"`
	Language     agent.Language       `json:"language"`
	Summary      string               `json:"summary,omitempty"`
	Scripts      []agent.ScriptRecord `json:"scripts"`
	Totals       pipeline.Totals      `json:"totals"`
	CostAnalysis cost.Report          `json:"cost_analysis"`
}

// Result rebuilds a response view of the entry for re-display.
func (e Entry) Result() *pipeline.Response {
	scripts := e.Scripts
	if scripts == nil {
		scripts = []agent.ScriptRecord{}
	}
	return &pipeline.Response{
		Status:      pipeline.StatusSuccess,
		Product:     pipeline.ProductName,
		GeneratedAt: e.Timestamp,
		Params:      pipeline.Params{Mode: e.Mode, Language: e.Language},
		Research: pipeline.Research{
			Summary:        e.Summary,
			Sources:        append([]string(nil), pipeline.Sources...),
			SelectedTopics: []agent.SelectedTopic{},
		},
		Scripts:      scripts,
		Totals:       e.Totals,
		CostAnalysis: e.CostAnalysis,
	}
}

type Options struct {
	Capacity         int
	FallbackCapacity int
	Logger           *log.Logger
	Clock            func() time.Time
}

// Store is a most-recent-first ring buffer of entries over a Backend.
// Persistence is best effort: failures are logged, never returned.
type Store struct {
	backend  Backend
	capacity int
	fallback int
	logger   *log.Logger
	now      func() time.Time
	mu       sync.Mutex
}

func NewStore(backend Backend, opts Options) *Store {
	if opts.Capacity <= 0 {
		opts.Capacity = DefaultCapacity
	}
	if opts.FallbackCapacity <= 0 {
		opts.FallbackCapacity = DefaultFallbackCapacity
	}
	opts.FallbackCapacity = min(opts.FallbackCapacity, opts.Capacity)
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	return &Store{
		backend:  backend,
		capacity: opts.Capacity,
		fallback: opts.FallbackCapacity,
		logger:   opts.Logger,
		now:      opts.Clock,
	}
}

// Append records a successful generation and returns the stored entry.
func (s *Store) Append(r *pipeline.Response) Entry {
	entry := Entry{
		ID:        uuid.NewString(),
		Timestamp: s.now().UTC().Truncate(time.Millisecond),
		Mode:      agent.ModeBoth,
		Language:  agent.LanguageEnglish,
		Scripts:   []agent.ScriptRecord{},
	}
	if r != nil {
		if r.Params.Mode != "" {
			entry.Mode = r.Params.Mode
		}
		if r.Params.Language != "" {
			entry.Language = r.Params.Language
		}
		entry.Summary = r.Research.Summary
		entry.Totals = r.Totals
		entry.CostAnalysis = r.CostAnalysis
		for _, sc := range r.Scripts {
			entry.Scripts = append(entry.Scripts, trim(sc))
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	entries := append([]Entry{entry}, s.read()...)
	s.write(entries)
	return entry
}

// trim keeps the fields needed to re-render a script or to exclude its topic.
func trim(sc agent.ScriptRecord) agent.ScriptRecord {
	return agent.ScriptRecord{
		Topic:                 sc.Topic,
		ContentType:           sc.ContentType,
		Category:              sc.Category,
		Title:                 sc.Title,
		Script:                sc.Script,
		WordCount:             sc.WordCount,
		EstimatedAudioMinutes: sc.EstimatedAudioMinutes,
		Hook:                  sc.Hook,
		ConfidenceScore:       sc.ConfidenceScore,
		ConfidenceRationale:   sc.ConfidenceRationale,
	}
}

// List returns entries most recent first.
func (s *Store) List() []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.read()
}

func (s *Store) Get(id string) (Entry, bool) {
	for _, e := range s.List() {
		if e.ID == id {
			return e, true
		}
	}
	return Entry{}, false
}

// UsedTopics returns the lower-cased titles and topics of every stored
// script, unique, most recent first.
func (s *Store) UsedTopics() []string {
	seen := make(map[string]struct{})
	var used []string
	add := func(v string) {
		v = strings.ToLower(strings.TrimSpace(v))
		if v == "" {
			return
		}
		if _, ok := seen[v]; ok {
			return
		}
		seen[v] = struct{}{}
		used = append(used, v)
	}
	for _, e := range s.List() {
		for _, sc := range e.Scripts {
			add(sc.Title)
			add(sc.Topic)
		}
	}
	return used
}

func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.backend.Remove(StorageKey); err != nil {
		s.logger.Warn("failed to clear history", "error", err)
	}
}

// read treats a missing, unreadable or corrupt payload as an empty log.
func (s *Store) read() []Entry {
	data, err := s.backend.Get(StorageKey)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			s.logger.Warn("failed to read history", "error", err)
		}
		return []Entry{}
	}
	var entries []Entry
	if err := json.Unmarshal(data, &entries); err != nil {
		s.logger.Warn("discarding corrupt history", "error", err)
		return []Entry{}
	}
	if entries == nil {
		return []Entry{}
	}
	if len(entries) > s.capacity {
		entries = entries[:s.capacity]
	}
	return entries
}

// write keeps the newest capacity entries, retries with the fallback slice,
// then gives up.
func (s *Store) write(entries []Entry) {
	err := s.persist(entries[:min(len(entries), s.capacity)])
	if err == nil {
		return
	}
	s.logger.Warn("history write failed, retrying with fewer entries", "error", err, "entries", s.fallback)

	if err := s.persist(entries[:min(len(entries), s.fallback)]); err != nil {
		s.logger.Warn("history write failed, giving up", "error", err)
	}
}

func (s *Store) persist(entries []Entry) error {
	data, err := json.Marshal(entries)
	if err != nil {
		return err
	}
	return s.backend.Set(StorageKey, data)
}
