package process

import (
	"context"
	"time"

	"github.com/kbukum/monitkit/observability"
)

const (
	outcomeOK         = observability.OutcomeOK
	outcomeConfig     = observability.OutcomeConfig
	outcomeChildSetup = observability.OutcomeChildSetup
	outcomeExhausted  = observability.OutcomeExhausted
)

func recordSpawn(outcome string) {
	observability.Default().RecordSpawn(context.Background(), outcome)
}

func recordTimeout() {
	observability.Default().RecordTimeout(context.Background())
}

// runHandler calls h and records how long the parent was blocked in it.
func runHandler(name string, h Handler, p *Process) {
	start := time.Now()
	defer func() {
		observability.Default().RecordHandler(context.Background(), name, time.Since(start))
	}()
	h(p)
}
