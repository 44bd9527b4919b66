package testutil

import (
	"context"
	"errors"
	"sync"

	"llmspub/internal/pub"
)

// ScriptedGenerator returns canned results, optionally failing a set number
// of times first. Safe for concurrent use.
type ScriptedGenerator struct {
	mu sync.Mutex

	Result *pub.GenerationResult
	// FailuresLeft makes the next N Run calls return Err.
	FailuresLeft int
	Err          error

	Calls int
}

// NewScriptedGenerator creates a generator returning the given content.
func NewScriptedGenerator(summary, full string) *ScriptedGenerator {
	return &ScriptedGenerator{
		Result: &pub.GenerationResult{Summary: summary, Full: full},
	}
}

func (g *ScriptedGenerator) Run(_ context.Context, _ string, _ pub.OutputType) (*pub.GenerationResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.Calls++
	if g.FailuresLeft > 0 {
		g.FailuresLeft--
		if g.Err != nil {
			return nil, g.Err
		}
		return nil, errors.New("scripted generation failure")
	}
	return g.Result, nil
}

var _ pub.Generator = (*ScriptedGenerator)(nil)
