package models

import "time"

// ContextEntry ist ein in die Chat-Session gezogenes Paper. Die Felder sind
// ein Snapshot vom Zeitpunkt der Auswahl; spätere Filteränderungen berühren
// die Mitgliedschaft nicht.
type ContextEntry struct {
	ID       string    `json:"id"`
	Title    string    `json:"title"`
	Abstract string    `json:"abstract,omitempty"`
	Authors  []string  `json:"authors,omitempty"`
	PDFURL   string    `json:"pdf_url,omitempty"`
	AddedAt  time.Time `json:"added_at"`
}
