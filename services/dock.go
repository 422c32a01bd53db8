package services

import (
	"time"

	"papermap/models"
)

// DockState ist der Zustand der Drag-Geste über dem Kontext-Dock.
type DockState string

const (
	DockIdle     DockState = "idle"
	DockDragging DockState = "dragging"
	DockNear     DockState = "near_dock"
)

// MembershipChange beschreibt eine Änderung der Kontext-Mitgliedschaft als
// Diff zwischen vorheriger und aktueller ID-Liste. Konsumenten (Parse-Jobs,
// Chat-Transkript) leiten Hinzufügungen und Entfernungen daraus ab.
type MembershipChange struct {
	Added   []string
	Removed []string
	Entries []models.ContextEntry
}

// ContextDock verwaltet die per Drag-and-Drop ausgewählten Papers. Die
// Mitgliedschaft hat Set-Semantik (eine ID höchstens einmal) und ist
// unabhängig von der aktuellen Filter-Sichtbarkeit.
type ContextDock struct {
	state   DockState
	dragged *models.GraphNode
	entries []models.ContextEntry
	now     func() time.Time
}

// NewContextDock erstellt ein leeres Dock im Idle-Zustand.
func NewContextDock() *ContextDock {
	return &ContextDock{state: DockIdle, now: time.Now}
}

// State gibt den aktuellen Gesten-Zustand zurück.
func (d *ContextDock) State() DockState { return d.state }

// BeginDrag startet die Geste auf einem Knoten.
func (d *ContextDock) BeginDrag(node models.GraphNode) {
	n := node
	d.dragged = &n
	d.state = DockDragging
}

// EnterDock meldet, dass der Zeiger die Drop-Region betreten hat. Ohne
// laufende Geste ist der Aufruf ein No-op.
func (d *ContextDock) EnterDock() {
	if d.state == DockDragging {
		d.state = DockNear
	}
}

// LeaveDock meldet, dass der Zeiger die Drop-Region verlassen hat.
func (d *ContextDock) LeaveDock() {
	if d.state == DockNear {
		d.state = DockDragging
	}
}

// Release beendet die Geste. Nur ein Release im Near-Dock-Zustand fügt den
// gezogenen Knoten hinzu; ein Duplikat ist ein stiller No-op. Der Rückgabewert
// ist nil, wenn sich die Mitgliedschaft nicht geändert hat.
func (d *ContextDock) Release() *MembershipChange {
	node := d.dragged
	inDropZone := d.state == DockNear
	d.state = DockIdle
	d.dragged = nil

	if !inDropZone || node == nil {
		return nil
	}
	return d.add(*node)
}

// add nimmt einen Knoten-Snapshot in die Mitgliedschaft auf.
func (d *ContextDock) add(node models.GraphNode) *MembershipChange {
	for _, e := range d.entries {
		if e.ID == node.ID {
			return nil
		}
	}

	prev := d.ids()
	d.entries = append(d.entries, models.ContextEntry{
		ID:       node.ID,
		Title:    node.Title,
		Abstract: node.Abstract,
		Authors:  node.Authors,
		PDFURL:   node.PDFURL,
		AddedAt:  d.now(),
	})
	return d.change(prev)
}

// Remove entfernt eine ID explizit aus der Mitgliedschaft, unabhängig vom
// Gesten-Zustand. Unbekannte IDs sind ein No-op.
func (d *ContextDock) Remove(id string) *MembershipChange {
	idx := -1
	for i, e := range d.entries {
		if e.ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil
	}

	prev := d.ids()
	d.entries = append(d.entries[:idx], d.entries[idx+1:]...)
	return d.change(prev)
}

// Entries gibt eine Kopie der aktuellen Mitgliedschaft zurück.
func (d *ContextDock) Entries() []models.ContextEntry {
	out := make([]models.ContextEntry, len(d.entries))
	copy(out, d.entries)
	return out
}

// Len gibt die Größe der Mitgliedschaft zurück.
func (d *ContextDock) Len() int { return len(d.entries) }

// Clear leert Mitgliedschaft und Gesten-Zustand ohne Change-Event
// (Reset bei neuer Suche).
func (d *ContextDock) Clear() {
	d.entries = nil
	d.dragged = nil
	d.state = DockIdle
}

func (d *ContextDock) ids() []string {
	ids := make([]string, len(d.entries))
	for i, e := range d.entries {
		ids[i] = e.ID
	}
	return ids
}

func (d *ContextDock) change(prev []string) *MembershipChange {
	added, removed := DiffMembership(prev, d.ids())
	return &MembershipChange{Added: added, Removed: removed, Entries: d.Entries()}
}

// DiffMembership berechnet aus zwei Mitgliedschafts-Snapshots die
// hinzugekommenen und entfernten IDs, jeweils in Snapshot-Reihenfolge.
func DiffMembership(prev, curr []string) (added, removed []string) {
	prevSet := make(map[string]bool, len(prev))
	for _, id := range prev {
		prevSet[id] = true
	}
	currSet := make(map[string]bool, len(curr))
	for _, id := range curr {
		currSet[id] = true
	}

	for _, id := range curr {
		if !prevSet[id] {
			added = append(added, id)
		}
	}
	for _, id := range prev {
		if !currSet[id] {
			removed = append(removed, id)
		}
	}
	return added, removed
}
