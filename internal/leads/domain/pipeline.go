// Package domain provides core business rules for the leads bounded context.
package domain

import (
	"errors"
	"fmt"
	"math"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	StageNewLead          = "New Lead"
	StageInitialContact   = "Initial Contact"
	StageMeetingScheduled = "Meeting Scheduled"
	StageProposalSent     = "Proposal Sent"
	StageNegotiation      = "Negotiation"
	StageClosedWon        = "Closed Won"
	StageClosedLost       = "Closed Lost"
)

// ErrUnknownStage is matched by every UnknownStageError.
var ErrUnknownStage = errors.New("unknown stage")

// UnknownStageError reports a stage name that is not part of the pipeline.
type UnknownStageError struct {
	Name string
}

func (e *UnknownStageError) Error() string {
	return fmt.Sprintf("unknown stage %q", e.Name)
}

func (e *UnknownStageError) Is(target error) bool {
	return target == ErrUnknownStage
}

// Pipeline is the ordered list of sales stages. An optional terminal lost
// stage sits outside the progress order. A Pipeline is never mutated after
// construction, so it can be shared by any number of goroutines.
type Pipeline struct {
	stages []string
	lost   string
	index  map[string]int
}

// NewPipeline validates and builds a pipeline. lost may be empty.
func NewPipeline(stages []string, lost string) (*Pipeline, error) {
	if len(stages) < 2 {
		return nil, errors.New("pipeline needs at least two stages")
	}

	p := &Pipeline{
		stages: make([]string, 0, len(stages)),
		lost:   strings.TrimSpace(lost),
		index:  make(map[string]int, len(stages)+1),
	}
	for _, raw := range stages {
		name := strings.TrimSpace(raw)
		if name == "" {
			return nil, errors.New("pipeline stage names must not be empty")
		}
		if _, dup := p.index[name]; dup {
			return nil, fmt.Errorf("duplicate pipeline stage %q", name)
		}
		p.index[name] = len(p.stages)
		p.stages = append(p.stages, name)
	}
	if p.lost != "" {
		if _, dup := p.index[p.lost]; dup {
			return nil, fmt.Errorf("lost stage %q is also a progress stage", p.lost)
		}
		p.index[p.lost] = len(p.stages)
	}
	return p, nil
}

// DefaultPipeline returns the built-in six stage sales pipeline with Closed Lost
// as its terminal lost stage.
func DefaultPipeline() *Pipeline {
	p, err := NewPipeline([]string{
		StageNewLead,
		StageInitialContact,
		StageMeetingScheduled,
		StageProposalSent,
		StageNegotiation,
		StageClosedWon,
	}, StageClosedLost)
	if err != nil {
		panic(err)
	}
	return p
}

type pipelineFile struct {
	Stages    []string `yaml:"stages"`
	LostStage string   `yaml:"lost_stage"`
}

// LoadPipeline reads a pipeline definition from a YAML file. An empty path
// yields DefaultPipeline.
func LoadPipeline(path string) (*Pipeline, error) {
	if strings.TrimSpace(path) == "" {
		return DefaultPipeline(), nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read pipeline file: %w", err)
	}

	var def pipelineFile
	if err := yaml.Unmarshal(raw, &def); err != nil {
		return nil, fmt.Errorf("parse pipeline file: %w", err)
	}
	return NewPipeline(def.Stages, def.LostStage)
}

// IndexOf returns a stage's position in canonical order. The lost stage
// sorts after every progress stage.
func (p *Pipeline) IndexOf(stage string) (int, error) {
	idx, ok := p.index[stage]
	if !ok {
		return 0, &UnknownStageError{Name: stage}
	}
	return idx, nil
}

// ProgressPercentage is round(index / (progressStages-1) * 100). The lost stage reports 0.
func (p *Pipeline) ProgressPercentage(stage string) (int, error) {
	idx, err := p.IndexOf(stage)
	if err != nil {
		return 0, err
	}
	if p.IsLost(stage) {
		return 0, nil
	}
	return int(math.Round(float64(idx) / float64(len(p.stages)-1) * 100)), nil
}

// Stages returns every stage in canonical order, the lost stage last.
func (p *Pipeline) Stages() []string {
	out := make([]string, 0, len(p.stages)+1)
	out = append(out, p.stages...)
	if p.lost != "" {
		out = append(out, p.lost)
	}
	return out
}

// ProgressStages returns the ordered stages without the lost stage.
func (p *Pipeline) ProgressStages() []string {
	out := make([]string, len(p.stages))
	copy(out, p.stages)
	return out
}

// First is the stage new leads start in.
func (p *Pipeline) First() string {
	return p.stages[0]
}

// LostStage returns the terminal lost stage, or "" when the pipeline has none.
func (p *Pipeline) LostStage() string {
	return p.lost
}

func (p *Pipeline) Contains(stage string) bool {
	_, ok := p.index[stage]
	return ok
}

func (p *Pipeline) IsLost(stage string) bool {
	return p.lost != "" && stage == p.lost
}
