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
	"strings"
	"time"
)

// MinStrength and MaxStrength bound relationship and conflict strength.
const (
	MinStrength = 0.0
	MaxStrength = 10.0
)

// RelationshipType classifies a relationship.
type RelationshipType string

const (
	RelationshipFamily       RelationshipType = "family"
	RelationshipFriendship   RelationshipType = "friendship"
	RelationshipRomantic     RelationshipType = "romantic"
	RelationshipProfessional RelationshipType = "professional"
	RelationshipAntagonistic RelationshipType = "antagonistic"
	RelationshipMentorship   RelationshipType = "mentorship"
	RelationshipOther        RelationshipType = "other"
)

// Valid reports whether t is a known relationship type.
func (t RelationshipType) Valid() bool {
	switch t {
	case RelationshipFamily, RelationshipFriendship, RelationshipRomantic,
		RelationshipProfessional, RelationshipAntagonistic, RelationshipMentorship,
		RelationshipOther:
		return true
	}
	return false
}

// Nature is the emotional valence of a relationship.
type Nature string

const (
	NaturePositive Nature = "positive"
	NatureNegative Nature = "negative"
	NatureNeutral  Nature = "neutral"
	NatureVolatile Nature = "volatile"
)

// Valid reports whether n is a known nature.
func (n Nature) Valid() bool {
	switch n {
	case NaturePositive, NatureNegative, NatureNeutral, NatureVolatile:
		return true
	}
	return false
}

// Direction says whether a relationship is felt by one side or both.
type Direction string

const (
	DirectionUnidirectional Direction = "unidirectional"
	DirectionBidirectional  Direction = "bidirectional"
)

// Valid reports whether d is a known direction.
func (d Direction) Valid() bool {
	return d == DirectionUnidirectional || d == DirectionBidirectional
}

// Subject is what a conflict is about.
type Subject string

const (
	SubjectRelationship Subject = "relationship"
	SubjectPower        Subject = "power"
	SubjectIdeology     Subject = "ideology"
	SubjectResources    Subject = "resources"
	SubjectInformation  Subject = "information"
	SubjectTerritory    Subject = "territory"
	SubjectHonor        Subject = "honor"
	SubjectOther        Subject = "other"
)

// Valid reports whether s is a known subject.
func (s Subject) Valid() bool {
	switch s {
	case SubjectRelationship, SubjectPower, SubjectIdeology, SubjectResources,
		SubjectInformation, SubjectTerritory, SubjectHonor, SubjectOther:
		return true
	}
	return false
}

// Scope is how far a conflict reaches.
type Scope string

const (
	ScopePersonal Scope = "personal"
	ScopeGroup    Scope = "group"
	ScopeSocietal Scope = "societal"
)

// Valid reports whether s is a known scope.
func (s Scope) Valid() bool {
	return s == ScopePersonal || s == ScopeGroup || s == ScopeSocietal
}

// Phase is the lifecycle state of a conflict.
type Phase string

const (
	PhaseEmerging   Phase = "emerging"
	PhaseEscalating Phase = "escalating"
	PhasePeak       Phase = "peak"
	PhaseResolving  Phase = "resolving"
	PhaseResolved   Phase = "resolved"
	PhaseAftermath  Phase = "aftermath"
)

var phaseOrder = map[Phase]int{
	PhaseEmerging:   0,
	PhaseEscalating: 1,
	PhasePeak:       2,
	PhaseResolving:  3,
	PhaseResolved:   4,
	PhaseAftermath:  5,
}

// Valid reports whether p is a known phase.
func (p Phase) Valid() bool {
	_, ok := phaseOrder[p]
	return ok
}

// Ordinal returns the position of p in the lifecycle, or -1 if unknown.
func (p Phase) Ordinal() int {
	if o, ok := phaseOrder[p]; ok {
		return o
	}
	return -1
}

// Settled reports whether the conflict has reached resolution.
func (p Phase) Settled() bool {
	return p == PhaseResolved || p == PhaseAftermath
}

// ParseRelationshipType normalizes free text to a RelationshipType,
// mapping unknown values to RelationshipOther.
func ParseRelationshipType(s string) RelationshipType {
	t := RelationshipType(normalizeEnum(s))
	if t.Valid() {
		return t
	}
	return RelationshipOther
}

// ParseNature normalizes free text to a Nature, defaulting to neutral.
func ParseNature(s string) Nature {
	n := Nature(normalizeEnum(s))
	if n.Valid() {
		return n
	}
	return NatureNeutral
}

// ParseSubject normalizes free text to a Subject, defaulting to other.
func ParseSubject(s string) Subject {
	sub := Subject(normalizeEnum(s))
	if sub.Valid() {
		return sub
	}
	return SubjectOther
}

// ParseScope normalizes free text to a Scope, defaulting to personal.
func ParseScope(s string) Scope {
	sc := Scope(normalizeEnum(s))
	if sc.Valid() {
		return sc
	}
	return ScopePersonal
}

// ParsePhase normalizes free text to a Phase. ok is false for unknown values.
func ParsePhase(s string) (Phase, bool) {
	p := Phase(normalizeEnum(s))
	return p, p.Valid()
}

func normalizeEnum(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// CharacterProfile holds optional depth for a character.
type CharacterProfile struct {
	Traits      []string `json:"traits,omitempty"`
	Motivations []string `json:"motivations,omitempty"`
	ArcHint     string   `json:"arc_hint,omitempty"`
}

// Provenance records which stage created an entity and when.
type Provenance struct {
	SourceStage int       `json:"source_stage"`
	CreatedAt   time.Time `json:"created_at"`
}

// Character is a vertex of the network.
type Character struct {
	ID          string            `json:"id"`
	Name        string            `json:"name"`
	Description string            `json:"description,omitempty"`
	Profile     *CharacterProfile `json:"profile,omitempty"`
	Provenance  Provenance        `json:"provenance"`
}

// Relationship is an edge between two characters.
type Relationship struct {
	ID          string           `json:"id"`
	Source      string           `json:"source"`
	Target      string           `json:"target"`
	Type        RelationshipType `json:"type"`
	Nature      Nature           `json:"nature"`
	Direction   Direction        `json:"direction"`
	Strength    float64          `json:"strength"`
	Description string           `json:"description,omitempty"`
	Triggers    []string         `json:"triggers,omitempty"`
	Provenance  Provenance       `json:"provenance"`
}

// Involves reports whether the relationship touches the character.
func (r Relationship) Involves(characterID string) bool {
	return r.Source == characterID || r.Target == characterID
}

// Conflict is a hyperedge over one or more characters.
type Conflict struct {
	ID                   string     `json:"id"`
	Name                 string     `json:"name"`
	Description          string     `json:"description,omitempty"`
	Subject              Subject    `json:"subject"`
	Scope                Scope      `json:"scope"`
	Phase                Phase      `json:"phase"`
	Strength             float64    `json:"strength"`
	InvolvedCharacters   []string   `json:"involved_characters"`
	RelatedRelationships []string   `json:"related_relationships,omitempty"`
	Provenance           Provenance `json:"provenance"`
}

// Involves reports whether the conflict touches the character.
func (c Conflict) Involves(characterID string) bool {
	for _, id := range c.InvolvedCharacters {
		if id == characterID {
			return true
		}
	}
	return false
}

func (c Character) clone() Character {
	if c.Profile != nil {
		p := *c.Profile
		p.Traits = cloneStrings(p.Traits)
		p.Motivations = cloneStrings(p.Motivations)
		c.Profile = &p
	}
	return c
}

func (r Relationship) clone() Relationship {
	r.Triggers = cloneStrings(r.Triggers)
	return r
}

func (c Conflict) clone() Conflict {
	c.InvolvedCharacters = cloneStrings(c.InvolvedCharacters)
	c.RelatedRelationships = cloneStrings(c.RelatedRelationships)
	return c
}

func cloneStrings(in []string) []string {
	if in == nil {
		return nil
	}
	out := make([]string, len(in))
	copy(out, in)
	return out
}
