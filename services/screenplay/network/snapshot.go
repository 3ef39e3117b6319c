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

import "time"

// Snapshot is an immutable, timestamped copy of a network's state.
//
// Slices are in discovery order. Callers must treat every field as
// read-only; the network never hands out a snapshot that aliases its own
// storage.
type Snapshot struct {
	// Sequence is the position in the network history, or -1 for a View.
	Sequence      int            `json:"sequence"`
	Description   string         `json:"description"`
	Timestamp     time.Time      `json:"timestamp"`
	Characters    []Character    `json:"characters"`
	Relationships []Relationship `json:"relationships"`
	Conflicts     []Conflict     `json:"conflicts"`

	charIndex map[string]int
}

// NewSnapshot builds a snapshot from the given entities, deep-copying them.
//
// Description:
//
//	Used by the network itself and by callers that need to analyse a
//	hand-built state (tests, imported fixtures). No validation is done, so
//	analytics must tolerate dangling character references.
func NewSnapshot(description string, ts time.Time, chars []Character, rels []Relationship, conflicts []Conflict) Snapshot {
	s := Snapshot{
		Description:   description,
		Timestamp:     ts,
		Characters:    make([]Character, len(chars)),
		Relationships: make([]Relationship, len(rels)),
		Conflicts:     make([]Conflict, len(conflicts)),
		charIndex:     make(map[string]int, len(chars)),
	}
	for i, c := range chars {
		s.Characters[i] = c.clone()
		s.charIndex[c.ID] = i
	}
	for i, r := range rels {
		s.Relationships[i] = r.clone()
	}
	for i, c := range conflicts {
		s.Conflicts[i] = c.clone()
	}
	return s
}

// clone returns a deep copy that shares no slices with s.
func (s Snapshot) clone() Snapshot {
	c := NewSnapshot(s.Description, s.Timestamp, s.Characters, s.Relationships, s.Conflicts)
	c.Sequence = s.Sequence
	return c
}

// Character looks up a character by id.
func (s Snapshot) Character(id string) (Character, bool) {
	if s.charIndex != nil {
		i, ok := s.charIndex[id]
		if !ok {
			return Character{}, false
		}
		return s.Characters[i], true
	}
	for _, c := range s.Characters {
		if c.ID == id {
			return c, true
		}
	}
	return Character{}, false
}

// HasCharacter reports whether the snapshot contains the character.
func (s Snapshot) HasCharacter(id string) bool {
	_, ok := s.Character(id)
	return ok
}

// CharacterName returns the character's name, or the id itself when the
// character is unknown.
func (s Snapshot) CharacterName(id string) string {
	if c, ok := s.Character(id); ok {
		return c.Name
	}
	return id
}

// CharacterNames maps ids to names using CharacterName.
func (s Snapshot) CharacterNames(ids []string) []string {
	names := make([]string, len(ids))
	for i, id := range ids {
		names[i] = s.CharacterName(id)
	}
	return names
}

// RelationshipsOf returns the relationships touching the character.
func (s Snapshot) RelationshipsOf(characterID string) []Relationship {
	var out []Relationship
	for _, r := range s.Relationships {
		if r.Involves(characterID) {
			out = append(out, r)
		}
	}
	return out
}

// ConflictsOf returns the conflicts involving the character.
func (s Snapshot) ConflictsOf(characterID string) []Conflict {
	var out []Conflict
	for _, c := range s.Conflicts {
		if c.Involves(characterID) {
			out = append(out, c)
		}
	}
	return out
}

// ConflictByID looks up a conflict by id.
func (s Snapshot) ConflictByID(id string) (Conflict, bool) {
	for _, c := range s.Conflicts {
		if c.ID == id {
			return c, true
		}
	}
	return Conflict{}, false
}

// Empty reports whether the snapshot has no characters.
func (s Snapshot) Empty() bool {
	return len(s.Characters) == 0
}
