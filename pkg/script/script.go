// Package script evaluates scene scripts: small Lisp programs that create
// and place shapes through a scene.Service. It wraps zygomys in a
// sandboxed environment; each run gets a fresh interpreter.
package script

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/chazu/facet/pkg/scene"
	"github.com/chazu/facet/pkg/tessellate"
	zygo "github.com/glycerine/zygomys/zygo"
	"go.uber.org/zap"
)

var (
	// ErrTimeout is returned when a run exceeds the engine's timeout.
	ErrTimeout = errors.New("script timed out")

	// ErrSuperseded is returned when a newer run for the same session
	// started before this one finished.
	ErrSuperseded = errors.New("script superseded by newer run")
)

// EvalError represents a non-fatal error in user code, such as a parse
// error or a failing builtin.
type EvalError struct {
	Line    int    `json:"line"`
	Col     int    `json:"col"`
	Message string `json:"message"`
}

func (e EvalError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("line %d: %s", e.Line, e.Message)
	}
	return e.Message
}

// Result is the output of one run: the final mesh of every shape the
// script created or transformed, in the order first touched.
type Result struct {
	Meshes []*tessellate.Mesh `json:"meshes"`
	Errors []EvalError        `json:"errors"`
}

// Engine runs scene scripts against a scene.Service. It is safe for
// concurrent use.
type Engine struct {
	scenes  *scene.Service
	timeout time.Duration
	logger  *zap.Logger

	mu          sync.Mutex
	generations map[string]uint64
	active      map[string]*run
}

// NewEngine returns an Engine creating shapes in s. A non-positive
// timeout selects EvalTimeout.
func NewEngine(s *scene.Service, timeout time.Duration, logger *zap.Logger) *Engine {
	if timeout <= 0 {
		timeout = EvalTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		scenes:      s,
		timeout:     timeout,
		logger:      logger,
		generations: make(map[string]uint64),
		active:      make(map[string]*run),
	}
}

// Evaluate runs source. Runs sharing a non-empty session supersede each
// other: only the latest run's result is returned, and starting a run
// cancels the session's previous one. A run that times out or is
// superseded stops touching the scene before Evaluate returns; shapes it
// created until then stay registered.
//
// Return semantics:
//   - On success: result with meshes and no errors, nil error
//   - On parse/eval failure: result with eval errors, nil error
//   - On fatal failure (timeout, superseded, panic): nil result, error
func (e *Engine) Evaluate(session, source string) (*Result, error) {
	r := newRun(e.scenes)
	gen := e.start(session, r)
	defer e.finish(session, r)

	ch := make(chan evalResult, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				ch <- evalResult{err: fmt.Errorf("panic during evaluation: %v", r)}
			}
		}()
		res, err := e.evaluate(r, source)
		ch <- evalResult{result: res, err: err}
	}()

	res, err := e.wait(ch, session, gen)
	if err != nil {
		r.cancel()
		e.logger.Warn("script run failed", zap.String("session", session), zap.Error(err))
		return nil, err
	}
	e.logger.Info("script run complete",
		zap.String("session", session),
		zap.Int("meshes", len(res.Meshes)),
		zap.Int("errors", len(res.Errors)))
	return res, nil
}

// start registers r as the session's latest run and cancels the one it
// replaces. Runs outside a session never cancel each other.
func (e *Engine) start(session string, r *run) uint64 {
	e.mu.Lock()
	e.generations[session]++
	gen := e.generations[session]
	var prev *run
	if session != "" {
		prev = e.active[session]
		e.active[session] = r
	}
	e.mu.Unlock()

	if prev != nil {
		prev.cancel()
	}
	return gen
}

func (e *Engine) finish(session string, r *run) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if session != "" && e.active[session] == r {
		delete(e.active, session)
	}
}

func (e *Engine) current(session string) uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.generations[session]
}

func (e *Engine) evaluate(r *run, source string) (*Result, error) {
	res := &Result{Meshes: []*tessellate.Mesh{}, Errors: []EvalError{}}

	// Empty source is a valid program that touches nothing.
	if strings.TrimSpace(source) == "" {
		return res, nil
	}

	// Sandbox mode keeps user code away from the filesystem and syscalls.
	env := zygo.NewZlispWithFuncs(r.guard(zygo.SandboxSafeFunctions()))
	defer env.Stop()

	registerBuiltins(env, r)

	if err := env.LoadString(preprocessSource(source)); err != nil {
		res.Errors = parseZygomysError(err)
		return res, nil
	}
	if _, err := env.Run(); err != nil {
		res.Errors = parseZygomysError(err)
	}
	// Shapes built before a failing form stay registered and are reported.
	res.Meshes = r.meshes()
	return res, nil
}

// linePattern matches zygomys error messages that include "Error on line N: ..."
var linePattern = regexp.MustCompile(`(?i)(?:error )?on line (\d+):\s*(.*)`)

// linePatternShort matches simpler "line N: ..." patterns.
var linePatternShort = regexp.MustCompile(`(?i)^line (\d+):\s*(.*)`)

// parseZygomysError converts a zygomys error into EvalErrors, extracting
// the line number when the message carries one.
func parseZygomysError(err error) []EvalError {
	msg := err.Error()
	for _, p := range []*regexp.Regexp{linePattern, linePatternShort} {
		if m := p.FindStringSubmatch(msg); m != nil {
			line, _ := strconv.Atoi(m[1])
			return []EvalError{{Line: line, Message: strings.TrimSpace(m[2])}}
		}
	}
	return []EvalError{{Message: strings.TrimSpace(msg)}}
}
