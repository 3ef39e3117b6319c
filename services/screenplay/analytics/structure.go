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
	"sort"

	"github.com/AleutianAI/AleutianScreenplay/services/screenplay/network"
)

// StructureResult describes the connectivity of the relationship graph.
type StructureResult struct {
	// Components is the number of connected components, counting every
	// character without relationships as its own component.
	Components int `json:"components"`

	// ComponentSizes lists component sizes, largest first.
	ComponentSizes []int `json:"component_sizes"`

	// ArticulationPoints are characters whose removal disconnects the graph.
	ArticulationPoints []string `json:"articulation_points"`
}

// Structure analyses the relationship graph of the snapshot as an
// undirected graph. Relationships pointing at unknown characters are
// ignored.
func Structure(s network.Snapshot) StructureResult {
	neighbors := undirectedNeighbors(s)
	result := StructureResult{
		ComponentSizes:     []int{},
		ArticulationPoints: []string{},
	}

	visited := make(map[string]bool, len(s.Characters))
	for _, c := range s.Characters {
		if visited[c.ID] {
			continue
		}
		size := 0
		queue := []string{c.ID}
		visited[c.ID] = true
		for len(queue) > 0 {
			id := queue[0]
			queue = queue[1:]
			size++
			for _, next := range neighbors[id] {
				if !visited[next] {
					visited[next] = true
					queue = append(queue, next)
				}
			}
		}
		result.Components++
		result.ComponentSizes = append(result.ComponentSizes, size)
	}
	sort.Sort(sort.Reverse(sort.IntSlice(result.ComponentSizes)))

	isArticulation := articulationPoints(s, neighbors)
	for _, c := range s.Characters {
		if isArticulation[c.ID] {
			result.ArticulationPoints = append(result.ArticulationPoints, c.ID)
		}
	}
	return result
}

func undirectedNeighbors(s network.Snapshot) map[string][]string {
	seen := make(map[string]map[string]bool, len(s.Characters))
	for _, c := range s.Characters {
		seen[c.ID] = make(map[string]bool)
	}
	for _, r := range s.Relationships {
		if r.Source == r.Target {
			continue
		}
		if _, ok := seen[r.Source]; !ok {
			continue
		}
		if _, ok := seen[r.Target]; !ok {
			continue
		}
		seen[r.Source][r.Target] = true
		seen[r.Target][r.Source] = true
	}

	neighbors := make(map[string][]string, len(seen))
	for id, set := range seen {
		list := make([]string, 0, len(set))
		for n := range set {
			list = append(list, n)
		}
		sort.Strings(list)
		neighbors[id] = list
	}
	return neighbors
}

type dfsPhase int

const (
	phaseInit dfsPhase = iota
	phaseEdges
	phasePostChild
	phaseDone
)

type dfsFrame struct {
	id         string
	parent     string
	phase      dfsPhase
	edgeIndex  int
	childID    string
	childCount int
}

// articulationPoints runs Tarjan's algorithm with an explicit stack so deep
// graphs cannot overflow the goroutine stack.
func articulationPoints(s network.Snapshot, neighbors map[string][]string) map[string]bool {
	discovery := make(map[string]int, len(neighbors))
	low := make(map[string]int, len(neighbors))
	visited := make(map[string]bool, len(neighbors))
	result := make(map[string]bool)
	timer := 0

	for _, c := range s.Characters {
		if visited[c.ID] {
			continue
		}
		stack := []dfsFrame{{id: c.ID, phase: phaseInit}}
		for len(stack) > 0 {
			f := &stack[len(stack)-1]
			switch f.phase {
			case phaseInit:
				visited[f.id] = true
				discovery[f.id] = timer
				low[f.id] = timer
				timer++
				f.phase = phaseEdges

			case phaseEdges:
				descended := false
				adj := neighbors[f.id]
				for f.edgeIndex < len(adj) {
					next := adj[f.edgeIndex]
					f.edgeIndex++
					if next == f.parent {
						continue
					}
					if !visited[next] {
						f.childID = next
						f.childCount++
						f.phase = phasePostChild
						stack = append(stack, dfsFrame{id: next, parent: f.id, phase: phaseInit})
						descended = true
						break
					}
					if discovery[next] < low[f.id] {
						low[f.id] = discovery[next]
					}
				}
				if !descended {
					f.phase = phaseDone
				}

			case phasePostChild:
				if low[f.childID] < low[f.id] {
					low[f.id] = low[f.childID]
				}
				if f.parent != "" && low[f.childID] >= discovery[f.id] {
					result[f.id] = true
				}
				f.phase = phaseEdges

			case phaseDone:
				if f.parent == "" && f.childCount >= 2 {
					result[f.id] = true
				}
				stack = stack[:len(stack)-1]
			}
		}
	}
	return result
}
