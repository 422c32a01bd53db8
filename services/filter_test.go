package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"papermap/models"
)

func filterTestGraph() models.Graph {
	jan := time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)
	jun := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	return models.Graph{
		Nodes: []models.GraphNode{
			{ID: "a", Cluster: 1, Published: jun},
			{ID: "b", Cluster: 2, Published: jun},
			{ID: "c", Cluster: 1, Published: jan},
		},
		Links: []models.GraphLink{
			{Source: "a", Target: "b"},
			{Source: "a", Target: "c"},
			{Source: "b", Target: "c", IsCitation: true},
		},
	}
}

func allVisible() Filter {
	return Filter{VisibleClusters: map[int]bool{1: true, 2: true}}
}

func TestApplyFilter_AllVisible(t *testing.T) {
	g := filterTestGraph()
	view := ApplyFilter(g, allVisible())
	assert.Len(t, view.Nodes, 3)
	assert.Len(t, view.Links, 3)
}

func TestApplyFilter_HiddenClusterRemovesIncidentEdges(t *testing.T) {
	// Cluster 2 (Knoten b) ausblenden: jede Kante an b muss verschwinden,
	// obwohl a und c sichtbar bleiben.
	g := filterTestGraph()
	view := ApplyFilter(g, Filter{VisibleClusters: map[int]bool{1: true}})

	require.Len(t, view.Nodes, 2)
	require.Len(t, view.Links, 1)
	assert.Equal(t, "a", view.Links[0].Source)
	assert.Equal(t, "c", view.Links[0].Target)
}

func TestApplyFilter_DateCutoff(t *testing.T) {
	g := filterTestGraph()
	cutoff := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	f := allVisible()
	f.Cutoff = &cutoff

	view := ApplyFilter(g, f)

	require.Len(t, view.Nodes, 2) // c (2023) fällt raus
	for _, n := range view.Nodes {
		assert.False(t, n.Published.Before(cutoff))
	}
	// Nur a-b überlebt; beide Kanten an c verschwinden.
	require.Len(t, view.Links, 1)
	assert.Equal(t, "b", view.Links[0].Target)
}

func TestApplyFilter_EdgeValidityInvariant(t *testing.T) {
	// Invariante: unter jedem Filterzustand haben sichtbare Kanten beide
	// Endpunkte in der sichtbaren Knotenmenge.
	g := filterTestGraph()
	cutoff := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	filters := []Filter{
		{VisibleClusters: map[int]bool{}},
		{VisibleClusters: map[int]bool{1: true}},
		{VisibleClusters: map[int]bool{2: true}},
		{VisibleClusters: map[int]bool{1: true, 2: true}},
		{VisibleClusters: map[int]bool{1: true, 2: true}, Cutoff: &cutoff},
		{VisibleClusters: map[int]bool{1: true}, Cutoff: &cutoff},
	}

	for _, f := range filters {
		view := ApplyFilter(g, f)
		visible := make(map[string]bool, len(view.Nodes))
		for _, n := range view.Nodes {
			visible[n.ID] = true
		}
		for _, l := range view.Links {
			src, dst := linkEndpoints(l)
			assert.True(t, visible[src], "Kante %s->%s mit unsichtbarer Quelle", src, dst)
			assert.True(t, visible[dst], "Kante %s->%s mit unsichtbarem Ziel", src, dst)
		}
	}
}

func TestApplyFilter_DoesNotMutateFullGraph(t *testing.T) {
	g := filterTestGraph()
	nodesBefore := len(g.Nodes)
	linksBefore := len(g.Links)

	_ = ApplyFilter(g, Filter{VisibleClusters: map[int]bool{1: true}})

	assert.Len(t, g.Nodes, nodesBefore)
	assert.Len(t, g.Links, linksBefore)
}

func TestNewFilter_IncludesAllCategoriesAndFallback(t *testing.T) {
	f := NewFilter([]models.Category{{ID: 0}, {ID: 3}})
	assert.True(t, f.VisibleClusters[0])
	assert.True(t, f.VisibleClusters[3])
	assert.True(t, f.VisibleClusters[unknownClusterID])
	assert.Nil(t, f.Cutoff)
}
