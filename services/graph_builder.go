package services

import (
	"papermap/models"
)

// positionScale streckt die normierten Embedding-Koordinaten auf Render-
// Abstände. Rein visuell, keine semantische Einheit.
const positionScale = 400.0

// Fallback für Papers ohne auflösbares Cluster.
const (
	unknownClusterID    = -1
	unknownClusterName  = "Unknown"
	unknownClusterColor = "#9e9e9e"
)

// BuildGraph übersetzt ein Suchergebnis in einen deduplizierten Knoten/Kanten-
// Graphen. Papers ohne Koordinate werden stillschweigend übergangen. Die
// Ausgabe ist deterministisch: Knoten folgen der Paper-Reihenfolge, Kanten
// der Eingabe-Reihenfolge (erst Nachbarn je Paper, dann Zitations-Kanten).
func BuildGraph(papers []*models.Paper, categories []models.Category, citations []models.CitationLink, maxCitations int) models.Graph {
	byID := make(map[int]models.Category, len(categories))
	for _, c := range categories {
		byID[c.ID] = c
	}

	nodeSet := make(map[string]bool, len(papers))
	nodes := make([]models.GraphNode, 0, len(papers))
	for _, p := range papers {
		if !p.HasPosition() {
			continue
		}

		clusterID := unknownClusterID
		clusterName := unknownClusterName
		color := unknownClusterColor
		if p.Cluster != nil {
			if cat, ok := byID[*p.Cluster]; ok {
				clusterID = cat.ID
				clusterName = cat.Name
				color = cat.Color
			}
		}

		pulse := 0.0
		if maxCitations > 0 {
			pulse = float64(p.CitationCount) / float64(maxCitations)
			if pulse > 1 {
				pulse = 1
			}
		}

		nodes = append(nodes, models.GraphNode{
			ID:            p.ID,
			Title:         p.Title,
			Abstract:      p.Abstract,
			Authors:       p.Authors,
			Published:     p.Published,
			PDFURL:        p.PDFURL,
			Cluster:       clusterID,
			ClusterName:   clusterName,
			Color:         color,
			X:             *p.X * positionScale,
			Y:             *p.Y * positionScale,
			CitationCount: p.CitationCount,
			Pulse:         pulse,
		})
		nodeSet[p.ID] = true
	}

	links := make([]models.GraphLink, 0, len(nodes))

	// Ähnlichkeits-Kanten: pro ungeordnetem Paar genau einmal.
	seenPairs := make(map[string]bool)
	for _, p := range papers {
		if !nodeSet[p.ID] {
			continue
		}
		for _, neighbor := range p.Neighbors {
			if !nodeSet[neighbor] || neighbor == p.ID {
				continue
			}
			key := pairKey(p.ID, neighbor)
			if seenPairs[key] {
				continue
			}
			seenPairs[key] = true
			links = append(links, models.GraphLink{Source: p.ID, Target: neighbor})
		}
	}

	// Zitations-Kanten: gerichtet, nicht gegen ihre Gegenrichtung dedupliziert.
	for _, c := range citations {
		if !nodeSet[c.Source] || !nodeSet[c.Target] {
			continue
		}
		links = append(links, models.GraphLink{Source: c.Source, Target: c.Target, IsCitation: true})
	}

	return models.Graph{Nodes: nodes, Links: links}
}

// pairKey bildet den kanonischen Schlüssel eines ungeordneten ID-Paars.
func pairKey(a, b string) string {
	if a > b {
		a, b = b, a
	}
	return a + "|" + b
}
