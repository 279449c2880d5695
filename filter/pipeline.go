package filter

import (
	"context"
	"fmt"
)

// Step is one text transformation in a pipeline.
type Step func(text string) (string, error)

// Pipeline is an ordered list of steps, composed left to right.
type Pipeline []Step

// Run feeds text through every step. On error it returns the output of the last
// step that succeeded.
func (p Pipeline) Run(text string) (string, error) {
	return p.RunContext(context.Background(), text)
}

// RunContext is Run, checking ctx before each step.
func (p Pipeline) RunContext(ctx context.Context, text string) (string, error) {
	for i, step := range p {
		if err := ctx.Err(); err != nil {
			return text, err
		}
		if step == nil {
			continue
		}
		out, err := step(text)
		if err != nil {
			return text, fmt.Errorf("step %d: %w", i, err)
		}
		text = out
	}
	return text, nil
}

// Then returns a new pipeline with steps appended.
func (p Pipeline) Then(steps ...Step) Pipeline {
	out := make(Pipeline, 0, len(p)+len(steps))
	out = append(out, p...)
	return append(out, steps...)
}
