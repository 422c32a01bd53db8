package models

import "time"

// GraphNode ist die renderbare Projektion eines Papers. Sie wird nur für
// Papers mit vollständiger Koordinate erzeugt.
type GraphNode struct {
	ID            string    `json:"id"`
	Title         string    `json:"title"`
	Abstract      string    `json:"abstract,omitempty"`
	Authors       []string  `json:"authors,omitempty"`
	Published     time.Time `json:"published"`
	PDFURL        string    `json:"pdf_url,omitempty"`
	Cluster       int       `json:"cluster"`
	ClusterName   string    `json:"cluster_name"`
	Color         string    `json:"color"`
	X             float64   `json:"x"`
	Y             float64   `json:"y"`
	CitationCount int       `json:"citation_count"`

	// Pulse ist die normierte Zitations-Intensität in [0,1]:
	// citation_count / max_citations, auf 1 gedeckelt.
	Pulse float64 `json:"pulse"`
}

// GraphLink ist eine renderbare Kante zwischen zwei Knoten. Ähnlichkeits-
// Kanten sind ungerichtet (pro Paar nur einmal vorhanden), Zitations-Kanten
// gerichtet.
type GraphLink struct {
	Source     string `json:"source"`
	Target     string `json:"target"`
	IsCitation bool   `json:"is_citation"`
}

// Graph bündelt Knoten und Kanten eines Suchergebnisses.
type Graph struct {
	Nodes []GraphNode `json:"nodes"`
	Links []GraphLink `json:"links"`
}
