package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"papermap/config"
	"papermap/models"
	"papermap/providers"
)

// SessionStatus beschreibt den Zustand einer Suche innerhalb einer Session.
type SessionStatus string

const (
	StatusIdle         SessionStatus = "idle"
	StatusSearching    SessionStatus = "searching"
	StatusReady        SessionStatus = "ready"
	StatusNoResults    SessionStatus = "no_results"
	StatusSearchFailed SessionStatus = "search_failed"
)

// Session bündelt den gesamten Zustand einer Nutzer-Session: Suchergebnis,
// Graph, Filter, Kontext-Dock, Parse-Jobs und Chat-Protokoll. Alle Mutationen
// laufen über die deklarierten Operationen unter einem Lock; ein Leser des
// sichtbaren Teilgraphen sieht nie einen halb aktualisierten Zustand.
type Session struct {
	ID string

	cfg    *config.Config
	logger *zap.Logger

	search providers.SearchProvider
	chatBE providers.ChatProvider

	mu              sync.Mutex
	status          SessionStatus
	papers          []*models.Paper
	categories      []models.Category
	citationLinks   []models.CitationLink
	expandedQueries []string
	maxCitations    int
	graph           models.Graph
	filter          Filter
	dock            *ContextDock
	jobs            *ParseJobOrchestrator
	chat            *ChatSession
	lastTouched     time.Time
}

// NewSession erstellt eine leere Session mit frischen Komponenten.
func NewSession(cfg *config.Config, logger *zap.Logger, search providers.SearchProvider, parse providers.ParseProvider, chat providers.ChatProvider) *Session {
	id := uuid.NewString()
	return &Session{
		ID:          id,
		cfg:         cfg,
		logger:      logger.With(zap.String("session_id", id)),
		search:      search,
		chatBE:      chat,
		status:      StatusIdle,
		dock:        NewContextDock(),
		jobs:        NewParseJobOrchestrator(parse, logger.With(zap.String("session_id", id)), cfg.PollInterval, cfg.MaxPollAttempts),
		chat:        NewChatSession(cfg.ChatHistoryLimit),
		filter:      Filter{VisibleClusters: map[int]bool{}},
		lastTouched: time.Now(),
	}
}

// Jobs gibt den Parse-Orchestrator zurück (für Metrik-Hooks beim Anlegen).
func (s *Session) Jobs() *ParseJobOrchestrator { return s.jobs }

// Search setzt den gesamten Session-Zustand zurück und führt eine neue Suche
// aus. Fehler des Search-Backends werden als Terminal-Status "search_failed"
// gemeldet, ein leeres Ergebnis als "no_results"; es gibt keinen Auto-Retry.
func (s *Session) Search(ctx context.Context, query string, maxResults int) SessionStatus {
	s.mu.Lock()
	s.resetLocked()
	s.status = StatusSearching
	s.mu.Unlock()

	result, err := s.search.Search(ctx, query, maxResults)

	s.mu.Lock()
	defer s.mu.Unlock()

	if err != nil {
		s.logger.Error("Suche fehlgeschlagen", zap.String("query", query), zap.Error(err))
		s.status = StatusSearchFailed
		return s.status
	}
	if len(result.Papers) == 0 {
		s.logger.Info("Suche ohne Treffer", zap.String("query", query))
		s.status = StatusNoResults
		return s.status
	}

	s.papers = result.Papers
	s.categories = result.Categories
	s.citationLinks = result.CitationLinks
	s.expandedQueries = result.ExpandedQueries
	s.maxCitations = result.MaxCitations
	s.graph = BuildGraph(result.Papers, result.Categories, result.CitationLinks, result.MaxCitations)
	s.filter = NewFilter(result.Categories)
	s.status = StatusReady

	s.logger.Info("Graph aufgebaut",
		zap.String("query", query),
		zap.Int("nodes", len(s.graph.Nodes)),
		zap.Int("links", len(s.graph.Links)))
	return s.status
}

// resetLocked verwirft alle abgeleiteten und Session-lokalen Daten.
func (s *Session) resetLocked() {
	s.papers = nil
	s.categories = nil
	s.citationLinks = nil
	s.expandedQueries = nil
	s.maxCitations = 0
	s.graph = models.Graph{}
	s.filter = Filter{VisibleClusters: map[int]bool{}}
	s.dock.Clear()
	s.chat.Clear()
	s.jobs.Clear()
}

// Status gibt den aktuellen Such-Status zurück.
func (s *Session) Status() SessionStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// VisibleGraph wendet den aktuellen Filter auf den vollen Graphen an.
func (s *Session) VisibleGraph() models.Graph {
	s.mu.Lock()
	defer s.mu.Unlock()
	return ApplyFilter(s.graph, s.filter)
}

// Categories gibt die Cluster-Tabelle des aktuellen Suchergebnisses zurück.
func (s *Session) Categories() []models.Category {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Category, len(s.categories))
	copy(out, s.categories)
	return out
}

// ExpandedQueries gibt die vom Backend expandierten Queries zurück.
func (s *Session) ExpandedQueries() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.expandedQueries))
	copy(out, s.expandedQueries)
	return out
}

// SetFilter ersetzt beide Filter-Prädikate atomar.
func (s *Session) SetFilter(visibleClusters []int, cutoff *time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	visible := make(map[int]bool, len(visibleClusters))
	for _, id := range visibleClusters {
		visible[id] = true
	}
	s.filter = Filter{VisibleClusters: visible, Cutoff: cutoff}
}

// DragStart beginnt die Drag-Geste auf einem Knoten des vollen Graphen.
// Unbekannte Knoten-IDs sind ein No-op (false).
func (s *Session) DragStart(nodeID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, n := range s.graph.Nodes {
		if n.ID == nodeID {
			s.dock.BeginDrag(n)
			return true
		}
	}
	return false
}

// DockEnter meldet den Eintritt des Zeigers in die Drop-Region.
func (s *Session) DockEnter() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dock.EnterDock()
}

// DockLeave meldet das Verlassen der Drop-Region.
func (s *Session) DockLeave() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dock.LeaveDock()
}

// DropRelease beendet die Geste. Landet dabei ein Paper im Kontext, wird
// unter demselben Lock sein Parse-Job gestartet und die Aufnahme im
// Transkript vermerkt.
func (s *Session) DropRelease() *MembershipChange {
	s.mu.Lock()
	defer s.mu.Unlock()

	change := s.dock.Release()
	if change == nil {
		return nil
	}
	s.applyMembershipChangeLocked(change)
	return change
}

// RemoveFromContext entfernt ein Paper explizit aus dem Kontext, unabhängig
// vom Gesten-Zustand.
func (s *Session) RemoveFromContext(paperID string) *MembershipChange {
	s.mu.Lock()
	defer s.mu.Unlock()

	change := s.dock.Remove(paperID)
	if change == nil {
		return nil
	}
	s.applyMembershipChangeLocked(change)
	return change
}

// applyMembershipChangeLocked meldet ein Mitgliedschafts-Diff an die
// nachgelagerten Konsumenten: Parse-Jobs und Chat-Transkript.
func (s *Session) applyMembershipChangeLocked(change *MembershipChange) {
	for _, id := range change.Added {
		for _, e := range change.Entries {
			if e.ID == id {
				// Jobs überleben den HTTP-Request; die Session besitzt sie.
				s.jobs.EnsureParsed(context.Background(), e.ID, e.PDFURL)
				s.chat.Announce(fmt.Sprintf("Added to context: %s", e.Title))
				break
			}
		}
	}
	for _, id := range change.Removed {
		s.jobs.CancelJob(id)
		s.chat.Announce(fmt.Sprintf("Removed from context: %s", s.titleFor(id)))
	}
}

// titleFor löst eine Paper-ID über das aktuelle Suchergebnis in ihren Titel
// auf; Fallback ist die ID selbst.
func (s *Session) titleFor(paperID string) string {
	for _, p := range s.papers {
		if p.ID == paperID {
			return p.Title
		}
	}
	return paperID
}

// ContextEntries gibt einen Snapshot der Kontext-Mitgliedschaft zurück.
func (s *Session) ContextEntries() []models.ContextEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dock.Entries()
}

// DockState gibt den aktuellen Gesten-Zustand zurück.
func (s *Session) DockState() DockState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dock.State()
}

// ParseState gibt die disjunkten Mengen laufender und fertiger Parse-Jobs
// zurück.
func (s *Session) ParseState() (parsing, parsed []string) {
	return s.jobs.Parsing(), s.jobs.Parsed()
}

// Chat verschickt eine Nutzer-Nachricht im Kontext der ausgewählten Papers.
// Während des Backend-Aufrufs wird das Session-Lock freigegeben; die
// Komposition der Anfrage und das Anhängen der Antwort sind jeweils atomar.
// Bei leerem Kontext oder laufender Anfrage kommt nil zurück, ebenso wenn
// eine neue Suche das Transkript während des Backend-Aufrufs verworfen hat.
func (s *Session) Chat(ctx context.Context, text string, webSearch bool) []models.ChatMessage {
	s.mu.Lock()
	out, ok := s.chat.BeginSend(text, s.dock.Entries(), webSearch)
	s.mu.Unlock()
	if !ok {
		return nil
	}

	reply, err := s.chatBE.Chat(ctx, out.Message, out.Papers, out.History, out.WebSearch)

	s.mu.Lock()
	defer s.mu.Unlock()
	assistant, ok := s.chat.CompleteSend(out, reply, err)
	if !ok {
		return nil
	}
	// Nutzer-Nachricht + Antwort als Delta zurückgeben.
	return []models.ChatMessage{out.User(), assistant}
}

// Messages gibt das vollständige Chat-Protokoll zurück.
func (s *Session) Messages() []models.ChatMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.chat.History()
}

// ViewerLink baut die kanonische Dokument-Viewer-URL für ein Paper.
func (s *Session) ViewerLink(paperID string) string {
	return fmt.Sprintf(s.cfg.ViewerURLTemplate, paperID)
}

// Touch aktualisiert den Idle-Zeitstempel der Session.
func (s *Session) Touch() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastTouched = time.Now()
}

// IdleSince gibt den Zeitpunkt der letzten Nutzung zurück.
func (s *Session) IdleSince() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastTouched
}

// Store ist das uuid-indizierte In-Memory-Register aller Sessions. Es gibt
// keine Persistenz; eine weggeräumte Session ist verloren.
type Store struct {
	cfg    *config.Config
	logger *zap.Logger

	search providers.SearchProvider
	parse  providers.ParseProvider
	chat   providers.ChatProvider

	mu       sync.Mutex
	sessions map[string]*Session

	// Optionale Metrik-Hooks, an jede neue Session durchgereicht.
	OnParseCompleted func()
	OnParseFailed    func()
}

// NewStore erstellt ein leeres Session-Register.
func NewStore(cfg *config.Config, logger *zap.Logger, search providers.SearchProvider, parse providers.ParseProvider, chat providers.ChatProvider) *Store {
	return &Store{
		cfg:      cfg,
		logger:   logger,
		search:   search,
		parse:    parse,
		chat:     chat,
		sessions: make(map[string]*Session),
	}
}

// Create legt eine neue Session an und registriert sie.
func (st *Store) Create() *Session {
	s := NewSession(st.cfg, st.logger, st.search, st.parse, st.chat)
	if st.OnParseCompleted != nil {
		s.jobs.OnCompleted = func(string) { st.OnParseCompleted() }
	}
	if st.OnParseFailed != nil {
		s.jobs.OnFailed = func(string) { st.OnParseFailed() }
	}

	st.mu.Lock()
	st.sessions[s.ID] = s
	st.mu.Unlock()

	st.logger.Info("Session angelegt", zap.String("session_id", s.ID))
	return s
}

// Get liefert eine Session und aktualisiert ihren Idle-Zeitstempel.
func (st *Store) Get(id string) (*Session, bool) {
	st.mu.Lock()
	s, ok := st.sessions[id]
	st.mu.Unlock()
	if ok {
		s.Touch()
	}
	return s, ok
}

// Count gibt die Zahl der registrierten Sessions zurück.
func (st *Store) Count() int {
	st.mu.Lock()
	defer st.mu.Unlock()
	return len(st.sessions)
}

// Sweep entfernt Sessions, die länger als maxIdle unbenutzt sind, und bricht
// deren laufende Parse-Jobs ab. Gibt die Zahl der entfernten Sessions zurück.
func (st *Store) Sweep(maxIdle time.Duration) int {
	cutoff := time.Now().Add(-maxIdle)

	st.mu.Lock()
	var expired []*Session
	for id, s := range st.sessions {
		if s.IdleSince().Before(cutoff) {
			expired = append(expired, s)
			delete(st.sessions, id)
		}
	}
	st.mu.Unlock()

	for _, s := range expired {
		s.jobs.Clear()
		st.logger.Info("Idle-Session weggeräumt", zap.String("session_id", s.ID))
	}
	return len(expired)
}
