// Package engine evaluates road-network scripts. It wraps zygomys in a
// sandboxed environment whose builtins drive the network mutators, and
// hands back the network the script built.
package engine

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/chazu/lanegraph/pkg/geometry"
	"github.com/chazu/lanegraph/pkg/network"
	zygo "github.com/glycerine/zygomys/zygo"
	"github.com/rs/zerolog"
)

// EvalError represents a non-fatal error encountered during evaluation,
// such as a parse error, a runtime error in user code or a rejected
// network edit.
type EvalError struct {
	Line    int
	Col     int
	Message string
}

func (e EvalError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("line %d: %s", e.Line, e.Message)
	}
	return e.Message
}

// EvalWarning is an advisory finding about the network a script built.
type EvalWarning struct {
	Message string
	NodeID  network.NodeID
}

// EvalResult bundles the full output of an evaluation.
type EvalResult struct {
	Network  *network.Network
	Errors   []EvalError
	Warnings []EvalWarning
}

// Engine wraps the zygomys interpreter. It is safe for concurrent use;
// each call to Evaluate creates a fresh sandboxed environment and a fresh
// network, so the result is owned by the caller alone.
type Engine struct {
	mu         sync.Mutex
	generation uint64

	log     zerolog.Logger
	timeout time.Duration
	geom    geometry.Options
	subs    []func(network.Event)
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger used by the engine and the networks it builds.
func WithLogger(l zerolog.Logger) Option {
	return func(e *Engine) { e.log = l }
}

// WithTimeout replaces EvalTimeout as the hard limit per evaluation.
func WithTimeout(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.timeout = d
		}
	}
}

// WithGeometry sets the mesh resolution of the networks the engine builds.
func WithGeometry(o geometry.Options) Option {
	return func(e *Engine) { e.geom = o }
}

// WithSubscriber subscribes fn to every network the engine builds, before
// the script runs. fn is called from the evaluation goroutine.
func WithSubscriber(fn func(network.Event)) Option {
	return func(e *Engine) { e.subs = append(e.subs, fn) }
}

// NewEngine creates a new Engine instance.
func NewEngine(opts ...Option) *Engine {
	e := &Engine{
		log:     zerolog.Nop(),
		timeout: EvalTimeout,
		geom:    geometry.DefaultOptions(),
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Evaluate runs source and returns the network it built.
//
// Return semantics:
//   - On success: returns network + nil errors + nil error
//   - On parse/eval failure: returns nil network + eval errors + nil error
//   - On fatal failure (timeout, panic, superseded): returns nil + nil + error
func (e *Engine) Evaluate(source string) (*network.Network, []EvalError, error) {
	e.mu.Lock()
	e.generation++
	gen := e.generation
	e.mu.Unlock()

	ch := make(chan evalResult, 1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				ch <- evalResult{err: fmt.Errorf("panic during evaluation: %v", r)}
			}
		}()

		net, evalErrs, err := e.evaluate(source)
		ch <- evalResult{net: net, errors: evalErrs, err: err}
	}()

	start := time.Now()
	net, evalErrs, err := waitWithTimeout(ch, gen, &e.mu, &e.generation, e.timeout)
	switch {
	case err != nil:
		e.log.Warn().Err(err).Uint64("generation", gen).Msg("evaluation failed")
	case len(evalErrs) > 0:
		e.log.Debug().Uint64("generation", gen).Int("errors", len(evalErrs)).Msg("evaluation rejected")
	default:
		e.log.Debug().
			Uint64("generation", gen).
			Dur("elapsed", time.Since(start)).
			Int("nodes", net.NodeCount()).
			Int("strips", len(net.Strips())).
			Msg("evaluation done")
	}
	return net, evalErrs, err
}

// Run evaluates source and validates the resulting network. Fatal errors
// are reported as an EvalError without a line.
func (e *Engine) Run(source string) EvalResult {
	net, evalErrs, err := e.Evaluate(source)
	if err != nil {
		return EvalResult{Errors: []EvalError{{Message: err.Error()}}}
	}
	if len(evalErrs) > 0 {
		return EvalResult{Errors: evalErrs}
	}
	res := EvalResult{Network: net}
	for _, f := range network.Validate(net) {
		if f.Severity == network.SeverityError {
			res.Errors = append(res.Errors, EvalError{Message: f.Error()})
			continue
		}
		res.Warnings = append(res.Warnings, EvalWarning{Message: f.Message, NodeID: f.NodeID})
	}
	return res
}

// evaluate performs the actual zygomys evaluation in a fresh sandbox.
func (e *Engine) evaluate(source string) (*network.Network, []EvalError, error) {
	net := network.New(network.WithLogger(e.log), network.WithGeometry(e.geom))
	for _, fn := range e.subs {
		net.Subscribe(fn)
	}

	// Empty source is a valid program that produces an empty network.
	if strings.TrimSpace(source) == "" {
		return net, nil, nil
	}

	// Sandbox mode prevents user code from accessing the filesystem or syscalls.
	env := zygo.NewZlispSandbox()
	defer env.Stop()
	registerBuiltins(env, net)

	if err := env.LoadString(preprocessSource(source)); err != nil {
		return nil, parseZygomysError(err), nil
	}
	if _, err := env.Run(); err != nil {
		return nil, parseZygomysError(err), nil
	}
	return net, nil, nil
}

// linePattern matches zygomys error messages that include "Error on line N: ..."
var linePattern = regexp.MustCompile(`(?i)(?:error )?on line (\d+):\s*(.*)`)

// linePatternShort matches simpler "line N: ..." patterns.
var linePatternShort = regexp.MustCompile(`(?i)^line (\d+):\s*(.*)`)

// parseZygomysError converts a zygomys error into one or more EvalError values,
// extracting the line number when the message carries one.
func parseZygomysError(err error) []EvalError {
	msg := err.Error()
	for _, re := range []*regexp.Regexp{linePattern, linePatternShort} {
		if m := re.FindStringSubmatch(msg); m != nil {
			line, _ := strconv.Atoi(m[1])
			return []EvalError{{Line: line, Message: strings.TrimSpace(m[2])}}
		}
	}
	return []EvalError{{Message: strings.TrimSpace(msg)}}
}
