package engine

import (
	"fmt"
	"sync"
	"time"

	"github.com/chazu/lanegraph/pkg/network"
)

// EvalTimeout is the default hard limit for a single evaluation.
const EvalTimeout = 5 * time.Second

// evalResult passes an evaluation's outcome back from its goroutine.
type evalResult struct {
	net    *network.Network
	errors []EvalError
	err    error
}

// waitWithTimeout waits for a result from ch for at most timeout. A result
// whose generation is no longer current is discarded: a newer evaluation
// has started and owns the caller's attention.
//
// On timeout the goroutine may still be running. It only touches the
// network it created, which is never returned.
func waitWithTimeout(
	ch <-chan evalResult,
	gen uint64,
	mu *sync.Mutex,
	currentGen *uint64,
	timeout time.Duration,
) (*network.Network, []EvalError, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case res := <-ch:
		mu.Lock()
		current := *currentGen
		mu.Unlock()

		if gen != current {
			return nil, nil, fmt.Errorf("evaluation superseded by newer request")
		}
		return res.net, res.errors, res.err

	case <-timer.C:
		return nil, nil, fmt.Errorf("evaluation timed out after %s", timeout)
	}
}
