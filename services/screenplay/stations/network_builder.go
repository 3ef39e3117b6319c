// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package stations

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode"

	"github.com/AleutianAI/AleutianScreenplay/pkg/telemetry"
	"github.com/AleutianAI/AleutianScreenplay/services/screenplay/analytics"
	"github.com/AleutianAI/AleutianScreenplay/services/screenplay/confidence"
	"github.com/AleutianAI/AleutianScreenplay/services/screenplay/network"
	"github.com/AleutianAI/AleutianScreenplay/services/screenplay/pipeline"
)

type networkAnswer struct {
	Characters    []rawCharacter    `json:"characters" validate:"required,min=1"`
	Relationships []rawRelationship `json:"relationships"`
	Conflicts     []rawConflict     `json:"conflicts"`
}

type rawCharacter struct {
	Name        string   `json:"name" validate:"required"`
	Description string   `json:"description"`
	Traits      []string `json:"traits"`
	Motivations []string `json:"motivations"`
	Arc         string   `json:"arc"`
}

type rawRelationship struct {
	Source      string   `json:"source" validate:"required"`
	Target      string   `json:"target" validate:"required,nefield=Source"`
	Type        string   `json:"type"`
	Nature      string   `json:"nature"`
	Directed    bool     `json:"directed"`
	Strength    float64  `json:"strength" validate:"gte=0,lte=10"`
	Description string   `json:"description"`
	Triggers    []string `json:"triggers"`
}

type rawConflict struct {
	Name         string   `json:"name" validate:"required"`
	Description  string   `json:"description"`
	Subject      string   `json:"subject"`
	Scope        string   `json:"scope"`
	Phase        string   `json:"phase" validate:"omitempty,phase"`
	Strength     float64  `json:"strength" validate:"gte=0,lte=10"`
	Characters   []string `json:"characters" validate:"required,min=1"`
	PhaseHistory []string `json:"phase_history" validate:"dive,phase"`
}

type networkStage struct {
	pipeline.BaseStage
	env *env
	now func() time.Time
}

func newNetworkBuilder(e *env) *networkStage {
	return &networkStage{
		BaseStage: pipeline.BaseStage{
			StageNumber: StageNetwork,
			StageName:   NetworkKey.Name(),
			Requires:    []int{StageText, StageConceptual},
		},
		env: e,
		now: time.Now,
	}
}

// Execute maps the cast into a conflict network and analyses it.
func (s *networkStage) Execute(ctx context.Context, in pipeline.Input) (any, error) {
	text, err := pipeline.Get(in.Outputs, TextAnalysisKey)
	if err != nil {
		return nil, err
	}
	concept, err := pipeline.Get(in.Outputs, ConceptualKey)
	if err != nil {
		return nil, err
	}
	excerpt, _, _, err := s.env.excerpt(in.Text)
	if err != nil {
		return nil, err
	}

	prompt := fmt.Sprintf(networkPrompt, TaskNetwork,
		concept.Premise, concept.CoreConflict, list(sketchNames(text.Characters)), excerpt)
	ans, err := ask[networkAnswer](ctx, s.env, analystSystem, prompt)
	if err != nil {
		return nil, err
	}

	title := in.ProjectLabel
	if title == "" {
		title = "Untitled"
	}
	net, skipped := buildNetwork(title, ans, s.now)
	if c, _, _ := net.Counts(); c == 0 {
		return nil, fmt.Errorf("%w: no usable characters in network answer", pipeline.ErrInvalidOutput)
	}

	history := net.Snapshots()
	current := history[len(history)-1]
	report, err := analytics.Analyze(ctx, current, history, s.env.logger)
	if err != nil {
		return nil, err
	}

	signal := report.Uncertainty
	signal.Stage = StageNetwork
	if len(skipped) > 0 {
		signal.Uncertainties = append(signal.Uncertainties, confidence.Uncertainty{
			Type:   confidence.Epistemic,
			Aspect: "network",
			Note:   fmt.Sprintf("%d network entries rejected", len(skipped)),
		})
	}

	logger := telemetry.LoggerWithTrace(ctx, s.env.logger)
	logger.Info("conflict network built",
		slog.Int("characters", len(current.Characters)),
		slog.Int("relationships", len(current.Relationships)),
		slog.Int("conflicts", len(current.Conflicts)),
		slog.Int("snapshots", len(history)),
		slog.Int("skipped", len(skipped)),
	)

	return &NetworkAnalysis{
		Title:   title,
		Network: current,
		History: history,
		Report:  report,
		Skipped: skipped,
		Signal:  signal,
	}, nil
}

// buildNetwork turns a decoded answer into a network with its snapshot
// history.
//
// Description:
//
//	Character ids derive from names, so the same answer always yields
//	the same ids. Entries that fail validation or reference unknown
//	characters are skipped and reported. One snapshot records the
//	initial network; each phase_history step of each conflict then
//	records another, advancing all conflicts one step at a time.
func buildNetwork(title string, ans networkAnswer, now func() time.Time) (*network.ConflictNetwork, []SkippedEntry) {
	net := network.New(title, network.WithClock(now))
	var skipped []SkippedEntry
	skip := func(kind, name, reason string) {
		skipped = append(skipped, SkippedEntry{Kind: kind, Name: name, Reason: reason})
	}
	prov := network.Provenance{SourceStage: StageNetwork}

	ids := make(map[string]string)
	for _, rc := range ans.Characters {
		if err := validate.Struct(rc); err != nil {
			skip("character", rc.Name, describeValidation(err))
			continue
		}
		id := "char_" + slug(rc.Name)
		if id == "char_" {
			skip("character", rc.Name, "name has no letters or digits")
			continue
		}
		c := network.Character{
			ID:          id,
			Name:        rc.Name,
			Description: rc.Description,
			Provenance:  prov,
		}
		if len(rc.Traits) > 0 || len(rc.Motivations) > 0 || rc.Arc != "" {
			c.Profile = &network.CharacterProfile{Traits: rc.Traits, Motivations: rc.Motivations, ArcHint: rc.Arc}
		}
		if _, err := net.AddCharacter(c); err != nil {
			skip("character", rc.Name, err.Error())
			continue
		}
		ids[nameKey(rc.Name)] = id
		ids[id] = id
	}
	resolve := func(name string) (string, bool) {
		if id, ok := ids[nameKey(name)]; ok {
			return id, true
		}
		id, ok := ids[strings.TrimSpace(name)]
		return id, ok
	}

	for i, rr := range ans.Relationships {
		label := rr.Source + " / " + rr.Target
		if err := validate.Struct(rr); err != nil {
			skip("relationship", label, describeValidation(err))
			continue
		}
		src, ok1 := resolve(rr.Source)
		dst, ok2 := resolve(rr.Target)
		if !ok1 || !ok2 {
			skip("relationship", label, "unknown character")
			continue
		}
		dir := network.DirectionBidirectional
		if rr.Directed {
			dir = network.DirectionUnidirectional
		}
		_, err := net.AddRelationship(network.Relationship{
			ID:          fmt.Sprintf("rel_%03d", i+1),
			Source:      src,
			Target:      dst,
			Type:        network.ParseRelationshipType(rr.Type),
			Nature:      network.ParseNature(rr.Nature),
			Direction:   dir,
			Strength:    rr.Strength,
			Description: rr.Description,
			Triggers:    rr.Triggers,
			Provenance:  prov,
		})
		if err != nil {
			skip("relationship", label, err.Error())
		}
	}

	type pending struct {
		id     string
		phases []network.Phase
	}
	var steps []pending
	for i, rk := range ans.Conflicts {
		if err := validate.Struct(rk); err != nil {
			skip("conflict", rk.Name, describeValidation(err))
			continue
		}
		var involved []string
		for _, name := range rk.Characters {
			if id, ok := resolve(name); ok {
				involved = append(involved, id)
			}
		}
		phase, _ := network.ParsePhase(rk.Phase)
		if rk.Phase == "" {
			phase = network.PhaseEmerging
		}
		k, err := net.AddConflict(network.Conflict{
			ID:                 fmt.Sprintf("conf_%03d", i+1),
			Name:               rk.Name,
			Description:        rk.Description,
			Subject:            network.ParseSubject(rk.Subject),
			Scope:              network.ParseScope(rk.Scope),
			Phase:              phase,
			Strength:           rk.Strength,
			InvolvedCharacters: involved,
			Provenance:         prov,
		})
		if err != nil {
			skip("conflict", rk.Name, err.Error())
			continue
		}
		p := pending{id: k.ID}
		for _, h := range rk.PhaseHistory {
			ph, _ := network.ParsePhase(h)
			p.phases = append(p.phases, ph)
		}
		if len(p.phases) > 0 {
			steps = append(steps, p)
		}
	}

	net.CreateSnapshot("initial network")
	for step := 0; ; step++ {
		advanced := false
		for _, p := range steps {
			if step >= len(p.phases) {
				continue
			}
			advanced = true
			desc := fmt.Sprintf("%s: %s", p.id, p.phases[step])
			if _, err := net.UpdateConflictPhase(p.id, p.phases[step], desc); err != nil {
				skip("phase", desc, err.Error())
			}
		}
		if !advanced {
			break
		}
	}
	return net, skipped
}

func nameKey(name string) string {
	return strings.ToLower(strings.Join(strings.Fields(name), " "))
}

// slug lowercases name and joins its letter and digit runs with '_'.
func slug(name string) string {
	var b strings.Builder
	sep := false
	for _, r := range strings.ToLower(name) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			if sep && b.Len() > 0 {
				b.WriteByte('_')
			}
			b.WriteRune(r)
			sep = false
			continue
		}
		sep = true
	}
	return b.String()
}
