package flows

import (
	"context"
	"fmt"

	"github.com/lewisedginton/wallet_chatbot/internal/session"
)

type stepFunc func(ctx context.Context, sc *StepContext, in Input) (Outcome, error)

// machine maps state labels to step handlers for one kind.
type machine struct {
	kind  session.Kind
	start func(ctx context.Context, sc *StepContext) (Outcome, error)
	steps map[string]stepFunc
}

func (m *machine) Kind() session.Kind {
	return m.kind
}

func (m *machine) Start(ctx context.Context, sc *StepContext) (Outcome, error) {
	return m.start(ctx, sc)
}

func (m *machine) Step(ctx context.Context, sc *StepContext, in Input) (Outcome, error) {
	step, ok := m.steps[sc.Session.State]
	if !ok {
		return Outcome{}, fmt.Errorf("%s flow has no step for state %q", m.kind, sc.Session.State)
	}
	return step(ctx, sc, in)
}
