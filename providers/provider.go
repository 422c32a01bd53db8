package providers

import (
	"context"

	"papermap/models"
)

// SearchProvider ist das Interface zum Search-Backend, das Papers, Cluster
// und Zitations-Kanten für eine freie Query liefert.
type SearchProvider interface {
	Search(ctx context.Context, query string, maxResults int) (*models.SearchResult, error)
}

// SubmitResult ist die Antwort des Parse-Backends auf eine Job-Einreichung.
// Bei Cached oder Status "completed" ist das Dokument sofort fertig geparst.
type SubmitResult struct {
	Cached bool   `json:"cached"`
	Status string `json:"status"`
	JobID  string `json:"job_id"`
}

// PollResult ist der Zustand eines laufenden Parse-Jobs.
type PollResult struct {
	Status string `json:"status"` // processing, completed, failed
	Error  string `json:"error,omitempty"`
}

// ParseProvider ist das Interface zum Parse-Backend (PDF-zu-Text).
type ParseProvider interface {
	Submit(ctx context.Context, paperID, pdfURL string) (*SubmitResult, error)
	Poll(ctx context.Context, jobID string) (*PollResult, error)
}

// ChatProvider ist das Interface zum Chat-Backend. Die Paper-Snapshots und
// der gekürzte Verlauf werden pro Anfrage mitgeschickt.
type ChatProvider interface {
	Chat(ctx context.Context, message string, papers []models.ContextEntry, history []models.ChatMessage, webSearch bool) (string, error)
}
