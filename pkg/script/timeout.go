package script

import (
	"fmt"
	"time"
)

// EvalTimeout is the default hard limit for a single run.
const EvalTimeout = 5 * time.Second

type evalResult struct {
	result *Result
	err    error
}

// wait waits for a result from ch, failing with ErrTimeout once the
// engine's timeout passes. A result whose generation is no longer the
// session's latest is discarded.
//
// On timeout the interpreter goroutine may still be running until its
// next builtin call sees the run cancelled; its result is dropped into
// the buffered channel and never read.
func (e *Engine) wait(ch <-chan evalResult, session string, gen uint64) (*Result, error) {
	timer := time.NewTimer(e.timeout)
	defer timer.Stop()

	select {
	case res := <-ch:
		if session != "" && gen != e.current(session) {
			return nil, ErrSuperseded
		}
		return res.result, res.err
	case <-timer.C:
		return nil, fmt.Errorf("%w after %s", ErrTimeout, e.timeout)
	}
}
