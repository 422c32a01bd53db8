package services

import (
	"time"

	"papermap/models"
)

// Filter beschreibt die beiden unabhängigen Sichtbarkeits-Prädikate:
// sichtbare Cluster-IDs und ein optionaler Stichtag für das
// Veröffentlichungsdatum.
type Filter struct {
	VisibleClusters map[int]bool `json:"visible_clusters"`
	Cutoff          *time.Time   `json:"cutoff,omitempty"`
}

// NewFilter erstellt einen Filter, der alle übergebenen Cluster sichtbar
// schaltet (inklusive Fallback-Cluster für unaufgelöste Papers).
func NewFilter(categories []models.Category) Filter {
	visible := make(map[int]bool, len(categories)+1)
	for _, c := range categories {
		visible[c.ID] = true
	}
	visible[unknownClusterID] = true
	return Filter{VisibleClusters: visible}
}

// nodeVisible prüft beide Prädikate für einen Knoten.
func (f Filter) nodeVisible(n models.GraphNode) bool {
	if !f.VisibleClusters[n.Cluster] {
		return false
	}
	if f.Cutoff != nil && n.Published.Before(*f.Cutoff) {
		return false
	}
	return true
}

// linkEndpoints normalisiert eine Kante auf ihre Endpunkt-IDs. Jeder
// Mitgliedschaftstest läuft ausschließlich über diese Hilfsfunktion, nie über
// Objekt-Identität.
func linkEndpoints(l models.GraphLink) (string, string) {
	return l.Source, l.Target
}

// ApplyFilter berechnet den sichtbaren Teilgraphen. Der volle Graph wird nie
// mutiert; das Ergebnis ist eine frische Sicht. Invariante: eine Kante ist
// genau dann sichtbar, wenn beide Endpunkte sichtbare Knoten sind.
func ApplyFilter(g models.Graph, f Filter) models.Graph {
	visibleIDs := make(map[string]bool, len(g.Nodes))
	nodes := make([]models.GraphNode, 0, len(g.Nodes))
	for _, n := range g.Nodes {
		if f.nodeVisible(n) {
			nodes = append(nodes, n)
			visibleIDs[n.ID] = true
		}
	}

	links := make([]models.GraphLink, 0, len(g.Links))
	for _, l := range g.Links {
		src, dst := linkEndpoints(l)
		if visibleIDs[src] && visibleIDs[dst] {
			links = append(links, l)
		}
	}

	return models.Graph{Nodes: nodes, Links: links}
}
