package services

import (
	"time"

	"papermap/models"
)

// fallbackReply wird angehängt, wenn das Chat-Backend fehlschlägt. Die
// Session bleibt danach benutzbar.
const fallbackReply = "Sorry, I ran into a problem answering that. Please try again."

// OutboundChat ist die fertig zusammengestellte Anfrage an das Chat-Backend:
// Nachricht, Paper-Snapshots, gekürzter Verlauf und Web-Suche-Flag. User und
// generation binden die Anfrage an den Transkript-Stand ihres BeginSend.
type OutboundChat struct {
	Message   string
	Papers    []models.ContextEntry
	History   []models.ChatMessage
	WebSearch bool

	user       models.ChatMessage
	generation int
}

// User gibt die optimistisch angehängte Nutzer-Nachricht zurück.
func (o *OutboundChat) User() models.ChatMessage { return o.user }

// ChatSession hält das geordnete, append-only Nachrichtenprotokoll einer
// Session und komponiert ausgehende Chat-Anfragen. Die Methoden sind nicht
// selbst synchronisiert; der Besitzer (Session) serialisiert die Zugriffe.
type ChatSession struct {
	historyLimit int
	messages     []models.ChatMessage
	inFlight     bool
	generation   int
	now          func() time.Time
}

// NewChatSession erstellt eine leere Chat-Session. historyLimit begrenzt die
// Zahl der mitgeschickten Vorgänger-Nachrichten.
func NewChatSession(historyLimit int) *ChatSession {
	if historyLimit <= 0 {
		historyLimit = 10
	}
	return &ChatSession{historyLimit: historyLimit, now: time.Now}
}

// BeginSend prüft die Sende-Voraussetzungen und hängt die Nutzer-Nachricht
// optimistisch an. Bei leerem Kontext oder laufender Anfrage wird still
// verweigert (nil, false). Der zurückgegebene Verlauf ist der Stand VOR der
// neuen Nutzer-Nachricht, ohne Announcements.
func (s *ChatSession) BeginSend(text string, papers []models.ContextEntry, webSearch bool) (*OutboundChat, bool) {
	if len(papers) == 0 || s.inFlight {
		return nil, false
	}

	userMsg := models.ChatMessage{
		Role: models.RoleUser, Content: text, CreatedAt: s.now(),
	}
	out := &OutboundChat{
		Message:    text,
		Papers:     papers,
		History:    s.recentHistory(),
		WebSearch:  webSearch,
		user:       userMsg,
		generation: s.generation,
	}

	s.inFlight = true
	s.messages = append(s.messages, userMsg)
	return out, true
}

// CompleteSend schließt eine laufende Anfrage ab: die Antwort (oder bei
// Fehler die feste Fallback-Nachricht) wird als Assistant-Nachricht angehängt.
// Wurde das Protokoll seit dem BeginSend zurückgesetzt (neue Suche), wird die
// Antwort verworfen (false); sie gehört zu einem verworfenen Transkript.
func (s *ChatSession) CompleteSend(out *OutboundChat, reply string, err error) (models.ChatMessage, bool) {
	if out.generation != s.generation {
		return models.ChatMessage{}, false
	}
	if err != nil {
		reply = fallbackReply
	}
	msg := models.ChatMessage{Role: models.RoleAssistant, Content: reply, CreatedAt: s.now()}
	s.messages = append(s.messages, msg)
	s.inFlight = false
	return msg, true
}

// Announce hängt einen Assistant-Transkripteintrag an (z.B. "paper added").
// Solche Einträge erscheinen nur im Transkript und gehen nie als Chat-Turn
// an das Backend.
func (s *ChatSession) Announce(text string) models.ChatMessage {
	msg := models.ChatMessage{Role: models.RoleAssistant, Content: text, Announcement: true, CreatedAt: s.now()}
	s.messages = append(s.messages, msg)
	return msg
}

// History gibt eine Kopie des gesamten Protokolls zurück.
func (s *ChatSession) History() []models.ChatMessage {
	out := make([]models.ChatMessage, len(s.messages))
	copy(out, s.messages)
	return out
}

// InFlight meldet, ob gerade eine Anfrage läuft.
func (s *ChatSession) InFlight() bool { return s.inFlight }

// Clear verwirft das Protokoll (Reset bei neuer Suche). Eine noch laufende
// Anfrage wird über den Generationszähler entwertet.
func (s *ChatSession) Clear() {
	s.messages = nil
	s.inFlight = false
	s.generation++
}

// recentHistory liefert die letzten historyLimit Chat-Turns als Kopie.
// Announcements sind reine Transkripteinträge und werden übersprungen.
func (s *ChatSession) recentHistory() []models.ChatMessage {
	turns := make([]models.ChatMessage, 0, len(s.messages))
	for _, m := range s.messages {
		if m.Announcement {
			continue
		}
		turns = append(turns, m)
	}
	if len(turns) > s.historyLimit {
		turns = turns[len(turns)-s.historyLimit:]
	}
	return turns
}
