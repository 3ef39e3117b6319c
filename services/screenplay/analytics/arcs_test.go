// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package analytics

import (
	"testing"

	"github.com/AleutianAI/AleutianScreenplay/services/screenplay/network"
)

func TestClassifyArc(t *testing.T) {
	tests := []struct {
		name       string
		loadChange float64
		balance    int
		want       ArcType
	}{
		{"sharp rise souring", 12, -1, ArcFall},
		{"sharp rise improving", 12, 1, ArcTransformational},
		{"sharp rise neutral", 12, 0, ArcNegative},
		{"moderate rise with allies", 6, 1, ArcPositive},
		{"moderate rise alone", 6, 0, ArcNegative},
		{"release", -6, 0, ArcPositive},
		{"steady", 3, 2, ArcFlat},
		{"boundary is flat", 5, 3, ArcFlat},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := classifyArc(tt.loadChange, tt.balance); got != tt.want {
				t.Errorf("classifyArc(%v, %d) = %s, want %s", tt.loadChange, tt.balance, got, tt.want)
			}
		})
	}
}

func TestArcConfidence(t *testing.T) {
	tests := []struct {
		connections int
		want        float64
	}{
		{0, 0.2}, {1, 0.5}, {2, 0.5}, {3, 0.7}, {5, 0.7}, {6, 0.9}, {20, 0.9},
	}
	for _, tt := range tests {
		if got := arcConfidence(tt.connections); got != tt.want {
			t.Errorf("arcConfidence(%d) = %v, want %v", tt.connections, got, tt.want)
		}
	}
}

func buildTwoActNetwork(t *testing.T) *network.ConflictNetwork {
	t.Helper()
	n := network.New("two acts")
	for _, id := range []string{"a", "b", "c"} {
		if _, err := n.AddCharacter(network.Character{ID: id, Name: id}); err != nil {
			t.Fatal(err)
		}
	}
	if _, err := n.AddRelationship(network.Relationship{ID: "r1", Source: "a", Target: "b", Strength: 5, Nature: network.NaturePositive}); err != nil {
		t.Fatal(err)
	}
	if _, err := n.AddConflict(network.Conflict{ID: "k1", Name: "rivalry", InvolvedCharacters: []string{"a", "b"}, Strength: 4}); err != nil {
		t.Fatal(err)
	}
	n.CreateSnapshot("act one")

	if _, err := n.AddConflict(network.Conflict{ID: "k2", Name: "betrayal", InvolvedCharacters: []string{"a", "c"}, Strength: 8, Phase: network.PhasePeak}); err != nil {
		t.Fatal(err)
	}
	if _, err := n.UpdateConflictPhase("k1", network.PhasePeak, "act two"); err != nil {
		t.Fatal(err)
	}
	return n
}

func TestCharacterArcs(t *testing.T) {
	n := buildTwoActNetwork(t)
	arcs := CharacterArcs(n.View(), n.Snapshots())
	if len(arcs) != 3 {
		t.Fatalf("len(arcs) = %d, want 3", len(arcs))
	}
	byID := make(map[string]CharacterArc)
	for _, a := range arcs {
		byID[a.CharacterID] = a
	}

	a := byID["a"]
	if a.LoadChange != 8 || a.NatureBalance != 1 || a.Type != ArcPositive {
		t.Errorf("arc a = %+v, want load 8, balance 1, positive", a)
	}
	if a.Connections != 3 || a.Confidence != 0.7 {
		t.Errorf("arc a connections=%d confidence=%v", a.Connections, a.Confidence)
	}
	if len(a.Transitions) != 1 || a.Transitions[0].From != network.PhaseEmerging || a.Transitions[0].To != network.PhasePeak {
		t.Errorf("arc a transitions = %+v, want emerging->peak", a.Transitions)
	}

	if c := byID["c"]; c.Type != ArcNegative || c.Confidence != 0.5 {
		t.Errorf("arc c = %+v, want negative with confidence 0.5", c)
	}
	if b := byID["b"]; b.Type != ArcFlat || b.LoadChange != 0 {
		t.Errorf("arc b = %+v, want flat", b)
	}
}

func TestCharacterArcs_NoHistory(t *testing.T) {
	s := snap([]string{"solo"}, nil, nil)
	arcs := CharacterArcs(s, nil)
	if len(arcs) != 1 {
		t.Fatalf("len(arcs) = %d, want 1", len(arcs))
	}
	if arcs[0].Type != ArcFlat || arcs[0].Confidence != 0.2 {
		t.Errorf("arc = %+v, want flat with confidence 0.2", arcs[0])
	}
}

func TestCharacterArcs_NatureBalanceIgnoresNeutralTies(t *testing.T) {
	withNature := func(r network.Relationship, n network.Nature) network.Relationship {
		r.Nature = n
		return r
	}
	s := snap([]string{"a", "b", "c", "d"}, []network.Relationship{
		withNature(rel("r1", "a", "b", 5), network.NatureNeutral),
		withNature(rel("r2", "a", "c", 5), network.NatureVolatile),
		withNature(rel("r3", "a", "d", 5), network.NatureNegative),
	}, nil)

	arcs := CharacterArcs(s, nil)
	byID := make(map[string]CharacterArc)
	for _, a := range arcs {
		byID[a.CharacterID] = a
	}
	if got := byID["a"].NatureBalance; got != -1 {
		t.Errorf("balance a = %d, want -1 from the negative tie only", got)
	}
	if got := byID["b"].NatureBalance; got != 0 {
		t.Errorf("balance b = %d, want 0 for a neutral tie", got)
	}
	if got := byID["c"].NatureBalance; got != 0 {
		t.Errorf("balance c = %d, want 0 for a volatile tie", got)
	}
}

func TestTransitionPoints_AdjacentStepsIgnored(t *testing.T) {
	s0 := snap([]string{"a"}, nil, []network.Conflict{conflict("k", 5, network.PhaseEmerging, "a")})
	s1 := snap([]string{"a"}, nil, []network.Conflict{conflict("k", 5, network.PhaseEscalating, "a")})
	s2 := snap([]string{"a"}, nil, []network.Conflict{conflict("k", 5, network.PhaseResolved, "a")})

	points := TransitionPoints([]network.Snapshot{s0, s1, s2})
	if len(points) != 1 {
		t.Fatalf("len(points) = %d, want 1", len(points))
	}
	if points[0].From != network.PhaseEscalating || points[0].To != network.PhaseResolved {
		t.Errorf("point = %+v", points[0])
	}
}
