// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package network

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// NewID returns a short unique id with the given prefix, e.g. "char_1a2b3c4d5e6f".
func NewID(prefix string) string {
	return prefix + "_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
}

// Option configures a ConflictNetwork.
type Option func(*ConflictNetwork)

// WithClock replaces time.Now for timestamps. Used by tests that need
// reproducible snapshots.
func WithClock(now func() time.Time) Option {
	return func(n *ConflictNetwork) {
		if now != nil {
			n.now = now
		}
	}
}

// ConflictNetwork is the in-memory graph of one analysis run.
//
// Description:
//
//	Owns characters, relationships and conflicts keyed by id, remembering
//	discovery order so analytics that need a sequence (intensity
//	progression) are deterministic. Adding an entity whose id already
//	exists replaces it in place (last write wins) and keeps its original
//	position.
//
// Thread Safety:
//
//	Safe for concurrent use. Reads return copies.
type ConflictNetwork struct {
	mu    sync.RWMutex
	title string
	now   func() time.Time

	characters    map[string]Character
	charOrder     []string
	relationships map[string]Relationship
	relOrder      []string
	conflicts     map[string]Conflict
	conflictOrder []string

	snapshots []Snapshot
}

// New creates an empty network.
//
// Inputs:
//
//	title - Human label for the network (usually the project label).
//	opts - Optional configuration.
//
// Outputs:
//
//	*ConflictNetwork - Empty network ready for mutation.
func New(title string, opts ...Option) *ConflictNetwork {
	n := &ConflictNetwork{
		title:         title,
		now:           time.Now,
		characters:    make(map[string]Character),
		relationships: make(map[string]Relationship),
		conflicts:     make(map[string]Conflict),
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Title returns the network title.
func (n *ConflictNetwork) Title() string {
	return n.title
}

// AddCharacter validates and inserts a character.
//
// Description:
//
//	Generates an id when c.ID is empty and stamps Provenance.CreatedAt
//	when unset. A duplicate id replaces the stored character.
//
// Inputs:
//
//	c - Character to add. Name must be non-empty.
//
// Outputs:
//
//	Character - The stored character, including any generated id.
//	error - ErrInvalidCharacter if the name is empty.
func (n *ConflictNetwork) AddCharacter(c Character) (Character, error) {
	c.Name = strings.TrimSpace(c.Name)
	if c.Name == "" {
		return Character{}, fmt.Errorf("%w: empty name (id %q)", ErrInvalidCharacter, c.ID)
	}

	n.mu.Lock()
	defer n.mu.Unlock()

	if c.ID == "" {
		c.ID = NewID("char")
	}
	if c.Provenance.CreatedAt.IsZero() {
		c.Provenance.CreatedAt = n.now()
	}

	c = c.clone()
	if _, exists := n.characters[c.ID]; !exists {
		n.charOrder = append(n.charOrder, c.ID)
	}
	n.characters[c.ID] = c
	return c.clone(), nil
}

// AddRelationship validates and inserts a relationship.
//
// Description:
//
//	Empty enums take defaults (type other, nature neutral, direction
//	bidirectional). Endpoints are not required to exist yet, since
//	stages may discover a relationship before the second character.
//
// Outputs:
//
//	Relationship - The stored relationship.
//	error - ErrInvalidRelationship, ErrSelfRelationship or ErrStrengthOutOfRange.
func (n *ConflictNetwork) AddRelationship(r Relationship) (Relationship, error) {
	if err := normalizeRelationship(&r); err != nil {
		return Relationship{}, err
	}

	n.mu.Lock()
	defer n.mu.Unlock()

	if r.ID == "" {
		r.ID = NewID("rel")
	}
	if r.Provenance.CreatedAt.IsZero() {
		r.Provenance.CreatedAt = n.now()
	}

	r = r.clone()
	if _, exists := n.relationships[r.ID]; !exists {
		n.relOrder = append(n.relOrder, r.ID)
	}
	n.relationships[r.ID] = r
	return r.clone(), nil
}

// AddConflict validates and inserts a conflict.
//
// Description:
//
//	Duplicate entries in InvolvedCharacters are collapsed. Empty enums take
//	defaults (subject other, scope personal, phase emerging).
//
// Outputs:
//
//	Conflict - The stored conflict.
//	error - ErrNoInvolvedCharacters, ErrInvalidConflict or ErrStrengthOutOfRange.
func (n *ConflictNetwork) AddConflict(c Conflict) (Conflict, error) {
	if err := normalizeConflict(&c); err != nil {
		return Conflict{}, err
	}

	n.mu.Lock()
	defer n.mu.Unlock()

	if c.ID == "" {
		c.ID = NewID("conf")
	}
	if c.Provenance.CreatedAt.IsZero() {
		c.Provenance.CreatedAt = n.now()
	}

	c = c.clone()
	if _, exists := n.conflicts[c.ID]; !exists {
		n.conflictOrder = append(n.conflictOrder, c.ID)
	}
	n.conflicts[c.ID] = c
	return c.clone(), nil
}

// UpdateConflictPhase moves a conflict to a new phase and records a snapshot.
//
// Description:
//
//	Transition legality is not checked here. Analytics inspects the
//	snapshot history for jumps between non-adjacent phases.
//
// Inputs:
//
//	id - Conflict id.
//	phase - New phase. Must be a known phase.
//	description - Snapshot description.
//
// Outputs:
//
//	Snapshot - The snapshot taken after the update.
//	error - ErrConflictNotFound or ErrInvalidConflict.
func (n *ConflictNetwork) UpdateConflictPhase(id string, phase Phase, description string) (Snapshot, error) {
	if !phase.Valid() {
		return Snapshot{}, fmt.Errorf("%w: unknown phase %q", ErrInvalidConflict, phase)
	}

	n.mu.Lock()
	defer n.mu.Unlock()

	c, ok := n.conflicts[id]
	if !ok {
		return Snapshot{}, fmt.Errorf("%w: %s", ErrConflictNotFound, id)
	}
	c.Phase = phase
	n.conflicts[id] = c

	return n.snapshotLocked(description), nil
}

// CreateSnapshot appends a deep copy of the current state to the history.
//
// Outputs:
//
//	Snapshot - The new snapshot. It shares no mutable state with the network.
func (n *ConflictNetwork) CreateSnapshot(description string) Snapshot {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.snapshotLocked(description)
}

func (n *ConflictNetwork) snapshotLocked(description string) Snapshot {
	s := n.copyLocked(description, len(n.snapshots))
	n.snapshots = append(n.snapshots, s)
	return s.clone()
}

// View returns a deep copy of the current state without recording it in
// the history. Its Sequence is -1.
func (n *ConflictNetwork) View() Snapshot {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.copyLocked("current", -1)
}

func (n *ConflictNetwork) copyLocked(description string, seq int) Snapshot {
	chars := make([]Character, 0, len(n.charOrder))
	for _, id := range n.charOrder {
		chars = append(chars, n.characters[id])
	}
	rels := make([]Relationship, 0, len(n.relOrder))
	for _, id := range n.relOrder {
		rels = append(rels, n.relationships[id])
	}
	conflicts := make([]Conflict, 0, len(n.conflictOrder))
	for _, id := range n.conflictOrder {
		conflicts = append(conflicts, n.conflicts[id])
	}

	s := NewSnapshot(description, n.now(), chars, rels, conflicts)
	s.Sequence = seq
	return s
}

// Snapshots returns deep copies of the recorded history in creation order.
// Editing them never changes the history.
func (n *ConflictNetwork) Snapshots() []Snapshot {
	n.mu.RLock()
	defer n.mu.RUnlock()
	out := make([]Snapshot, len(n.snapshots))
	for i, s := range n.snapshots {
		out[i] = s.clone()
	}
	return out
}

// Character returns a copy of the character with the given id.
func (n *ConflictNetwork) Character(id string) (Character, bool) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	c, ok := n.characters[id]
	if !ok {
		return Character{}, false
	}
	return c.clone(), true
}

// Characters returns copies of all characters in discovery order.
func (n *ConflictNetwork) Characters() []Character {
	return n.View().Characters
}

// Relationships returns copies of all relationships in discovery order.
func (n *ConflictNetwork) Relationships() []Relationship {
	return n.View().Relationships
}

// Conflicts returns copies of all conflicts in discovery order.
func (n *ConflictNetwork) Conflicts() []Conflict {
	return n.View().Conflicts
}

// Counts returns the number of characters, relationships and conflicts.
func (n *ConflictNetwork) Counts() (characters, relationships, conflicts int) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return len(n.characters), len(n.relationships), len(n.conflicts)
}

func normalizeRelationship(r *Relationship) error {
	r.Source = strings.TrimSpace(r.Source)
	r.Target = strings.TrimSpace(r.Target)
	if r.Source == "" || r.Target == "" {
		return fmt.Errorf("%w: missing endpoint (id %q)", ErrInvalidRelationship, r.ID)
	}
	if r.Source == r.Target {
		return fmt.Errorf("%w: %s", ErrSelfRelationship, r.Source)
	}
	if !strengthInRange(r.Strength) {
		return fmt.Errorf("%w: relationship %s has %.2f", ErrStrengthOutOfRange, r.ID, r.Strength)
	}
	if r.Type == "" {
		r.Type = RelationshipOther
	}
	if r.Nature == "" {
		r.Nature = NatureNeutral
	}
	if r.Direction == "" {
		r.Direction = DirectionBidirectional
	}
	if !r.Type.Valid() || !r.Nature.Valid() || !r.Direction.Valid() {
		return fmt.Errorf("%w: type=%q nature=%q direction=%q", ErrInvalidRelationship, r.Type, r.Nature, r.Direction)
	}
	return nil
}

func normalizeConflict(c *Conflict) error {
	involved := make([]string, 0, len(c.InvolvedCharacters))
	seen := make(map[string]bool, len(c.InvolvedCharacters))
	for _, id := range c.InvolvedCharacters {
		id = strings.TrimSpace(id)
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		involved = append(involved, id)
	}
	if len(involved) == 0 {
		return fmt.Errorf("%w: %q", ErrNoInvolvedCharacters, c.Name)
	}
	c.InvolvedCharacters = involved

	if !strengthInRange(c.Strength) {
		return fmt.Errorf("%w: conflict %q has %.2f", ErrStrengthOutOfRange, c.Name, c.Strength)
	}
	if c.Subject == "" {
		c.Subject = SubjectOther
	}
	if c.Scope == "" {
		c.Scope = ScopePersonal
	}
	if c.Phase == "" {
		c.Phase = PhaseEmerging
	}
	if !c.Subject.Valid() || !c.Scope.Valid() || !c.Phase.Valid() {
		return fmt.Errorf("%w: subject=%q scope=%q phase=%q", ErrInvalidConflict, c.Subject, c.Scope, c.Phase)
	}
	return nil
}

func strengthInRange(s float64) bool {
	// NaN fails both comparisons.
	return s >= MinStrength && s <= MaxStrength
}
