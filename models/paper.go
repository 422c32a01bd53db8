package models

import "time"

// Paper repräsentiert ein gefundenes wissenschaftliche Paper samt
// Embedding-Position und Zitationsdaten. Die ID (arXiv-Stil) ist der
// einzige Identitätsschlüssel im gesamten System.
type Paper struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Abstract  string    `json:"abstract,omitempty"`
	Authors   []string  `json:"authors,omitempty"`
	Published time.Time `json:"published"`
	PDFURL    string    `json:"pdf_url,omitempty"`

	// Cluster-Zuordnung und 2D-Koordinate sind optional: das Backend
	// liefert sie nur, wenn genug Papers für Embedding/Clustering da waren.
	// X und Y sind immer beide gesetzt oder beide nil.
	Cluster     *int     `json:"cluster,omitempty"`
	ClusterName string   `json:"cluster_name,omitempty"`
	X           *float64 `json:"x,omitempty"`
	Y           *float64 `json:"y,omitempty"`

	Neighbors     []string `json:"neighbors,omitempty"`
	CitationCount int      `json:"citation_count"`
	References    []string `json:"references,omitempty"`
}

// HasPosition meldet, ob das Paper eine vollständige 2D-Koordinate trägt.
func (p *Paper) HasPosition() bool {
	return p.X != nil && p.Y != nil
}

// Category repräsentiert ein Cluster-Label aus dem Search-Backend.
// Der ID-Raum entspricht den Cluster-IDs der Papers.
type Category struct {
	ID          int    `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Color       string `json:"color"`
	Count       int    `json:"count"`
}

// CitationLink modelliert eine gerichtete Kante: Quelle zitiert Ziel (A cites B).
type CitationLink struct {
	Source string `json:"source"`
	Target string `json:"target"`
}

// SearchResult ist die vollständige Antwort des Search-Backends auf eine Query.
type SearchResult struct {
	Papers          []*Paper       `json:"papers"`
	Categories      []Category     `json:"categories"`
	CitationLinks   []CitationLink `json:"citation_links"`
	Query           string         `json:"query"`
	ExpandedQueries []string       `json:"expanded_queries"`
	MaxCitations    int            `json:"max_citations"`
}
