package domain

import (
	"time"
)

// StageChange is one entry of a lead's stage history. FromStage is nil only on
// the first entry. ChangedAt is nil for stages the lead is inferred to have
// passed through without an observed time.
type StageChange struct {
	FromStage *string    `json:"from_stage"`
	ToStage   string     `json:"to_stage"`
	ChangedAt *time.Time `json:"changed_at"`
	Notes     string     `json:"notes,omitempty"`
}

// Direction classifies a stage change relative to pipeline order.
type Direction string

const (
	DirectionNone     Direction = "none"
	DirectionForward  Direction = "forward"
	DirectionBackward Direction = "backward"
	DirectionSideways Direction = "sideways"
)

const (
	notePrevious = "Previous stage: "
	noteCurrent  = "Current stage: "
	noteInferred = "Inferred intermediate stage: "
)

// Genesis builds the history of a lead that starts directly in stage: one
// entry per stage from the first through stage, only the last one timestamped.
// A lead born lost gets the first stage followed by the lost stage.
func (p *Pipeline) Genesis(stage string, now time.Time) ([]StageChange, error) {
	idx, err := p.IndexOf(stage)
	if err != nil {
		return nil, err
	}

	var path []string
	if p.IsLost(stage) {
		path = []string{p.First(), stage}
	} else {
		path = p.stages[:idx+1]
	}

	history := make([]StageChange, 0, len(path))
	var prev *string
	for i, name := range path {
		entry := StageChange{FromStage: prev, ToStage: name, Notes: notePrevious + name}
		if i == len(path)-1 {
			at := now
			entry.ChangedAt = &at
			entry.Notes = noteCurrent + name
		}
		history = append(history, entry)
		prev = stringPtr(name)
	}
	return history, nil
}

// Transition returns the history after a lead moves from oldStage to
// newStage at now. The input slice is never modified.
//
// Moving to the same stage returns history as is. Moving forward records
// every skipped stage as an inferred entry before the timestamped move.
// Moving backward cuts the history back to the most recent visit of the
// target and records the regression; a target never visited gets a genesis
// history instead. Entering the lost stage is a single entry; leaving it
// is judged against the last stage reached before the loss.
func (p *Pipeline) Transition(history []StageChange, oldStage, newStage string, now time.Time) ([]StageChange, Direction, error) {
	oldIdx, err := p.IndexOf(oldStage)
	if err != nil {
		return nil, DirectionNone, err
	}
	newIdx, err := p.IndexOf(newStage)
	if err != nil {
		return nil, DirectionNone, err
	}
	if oldStage == newStage {
		return history, DirectionNone, nil
	}

	base, err := p.repair(history, oldStage)
	if err != nil {
		return nil, DirectionNone, err
	}

	switch {
	case p.IsLost(newStage):
		return append(base, move(oldStage, newStage, now)), DirectionSideways, nil

	case p.IsLost(oldStage):
		anchor := lastProgressStage(base, p)
		if anchor == "" {
			genesis, err := p.Genesis(newStage, now)
			return genesis, DirectionSideways, err
		}
		anchorIdx, _ := p.IndexOf(anchor)
		next, err := p.step(base, anchor, anchorIdx, oldStage, newStage, newIdx, now)
		return next, DirectionSideways, err

	case newIdx > oldIdx:
		next, err := p.step(base, oldStage, oldIdx, oldStage, newStage, newIdx, now)
		return next, DirectionForward, err

	default:
		next, err := p.step(base, oldStage, oldIdx, oldStage, newStage, newIdx, now)
		return next, DirectionBackward, err
	}
}

// step applies the forward or backward rule measured from the position of
// anchor, recording the explicit move as coming from fromStage.
func (p *Pipeline) step(base []StageChange, anchor string, anchorIdx int, fromStage, newStage string, newIdx int, now time.Time) ([]StageChange, error) {
	if newIdx >= anchorIdx {
		seen := toStagesAfter(base, lastIndexTo(base, anchor))
		for i := anchorIdx + 1; i < newIdx; i++ {
			between := p.stages[i]
			if _, ok := seen[between]; ok {
				continue
			}
			base = append(base, StageChange{
				FromStage: stringPtr(base[len(base)-1].ToStage),
				ToStage:   between,
				Notes:     noteInferred + between,
			})
		}
		return append(base, move(fromStage, newStage, now)), nil
	}

	pos := lastIndexTo(base, newStage)
	if pos < 0 {
		return p.Genesis(newStage, now)
	}
	return append(base[:pos+1], move(fromStage, newStage, now)), nil
}

// repair returns a private copy of history whose last entry reaches stage.
// A history that ends elsewhere is cut back to the most recent entry reaching
// stage, or rebuilt from genesis with an unknown timestamp.
func (p *Pipeline) repair(history []StageChange, stage string) ([]StageChange, error) {
	pos := lastIndexTo(history, stage)
	if pos >= 0 {
		out := make([]StageChange, pos+1, len(history)+len(p.stages)+1)
		copy(out, history[:pos+1])
		return out, nil
	}

	genesis, err := p.Genesis(stage, time.Time{})
	if err != nil {
		return nil, err
	}
	genesis[len(genesis)-1].ChangedAt = nil
	return genesis, nil
}

// HistoryConsistent reports whether history is non-empty and ends at current.
func HistoryConsistent(history []StageChange, current string) bool {
	return len(history) > 0 && history[len(history)-1].ToStage == current
}

func move(from, to string, now time.Time) StageChange {
	at := now
	return StageChange{FromStage: stringPtr(from), ToStage: to, ChangedAt: &at}
}

func lastIndexTo(history []StageChange, stage string) int {
	for i := len(history) - 1; i >= 0; i-- {
		if history[i].ToStage == stage {
			return i
		}
	}
	return -1
}

func toStagesAfter(history []StageChange, pos int) map[string]struct{} {
	seen := make(map[string]struct{})
	for _, entry := range history[pos+1:] {
		seen[entry.ToStage] = struct{}{}
	}
	return seen
}

func lastProgressStage(history []StageChange, p *Pipeline) string {
	for i := len(history) - 1; i >= 0; i-- {
		if !p.IsLost(history[i].ToStage) {
			return history[i].ToStage
		}
	}
	return ""
}

func stringPtr(s string) *string {
	return &s
}
