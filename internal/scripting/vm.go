package scripting

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dop251/goja"
	"github.com/jonboulle/clockwork"

	"github.com/MJE43/visual-replay-go/internal/engine"
	"github.com/MJE43/visual-replay-go/internal/seeds"
	"github.com/MJE43/visual-replay-go/internal/visuals"
)

// LogEntry represents a single log message from the script.
type LogEntry struct {
	Time    time.Time `json:"time"`
	Message string    `json:"message"`
}

const (
	maxLogs      = 200
	maxCallStack = 512
)

// VM is a sandboxed goja runtime whose only source of randomness is the
// generator for one seed. A VM runs a single script and is then discarded.
type VM struct {
	runtime  *goja.Runtime
	gen      *engine.Generator
	clock    clockwork.Clock
	maxDraws int

	logs      []LogEntry
	overDrawn bool
}

// NewVM creates a runtime bound to seed with the script globals injected.
func NewVM(seed seeds.Seed, in visuals.Input, clock clockwork.Clock, maxDraws int) *VM {
	vm := &VM{
		runtime:  goja.New(),
		gen:      seed.Generator(),
		clock:    clock,
		maxDraws: maxDraws,
	}
	vm.runtime.SetMaxCallStackSize(maxCallStack)
	vm.injectGlobals(seed, in)
	return vm
}

// next draws one float, throwing into the script past the draw limit.
func (vm *VM) next() float64 {
	if vm.maxDraws > 0 && vm.gen.Draws() >= vm.maxDraws {
		vm.overDrawn = true
		panic(vm.runtime.NewGoError(fmt.Errorf("%w (%d)", ErrTooManyDraws, vm.maxDraws)))
	}
	return vm.gen.NextFloat()
}

func (vm *VM) injectGlobals(seed seeds.Seed, in visuals.Input) {
	rt := vm.runtime

	rng := func(goja.FunctionCall) goja.Value {
		return rt.ToValue(vm.next())
	}
	rt.Set("rng", rng)

	// Math.random draws from the seeded generator too, so ported front-end
	// snippets stay deterministic.
	if math := rt.Get("Math"); math != nil {
		_ = math.ToObject(rt).Set("random", rng)
	}

	// pick(arr) returns one element chosen with a single draw.
	rt.Set("pick", func(call goja.FunctionCall) goja.Value {
		items, ok := call.Argument(0).Export().([]any)
		if !ok {
			panic(rt.NewTypeError("pick: argument must be an array"))
		}
		i, err := engine.PickIndex(len(items), vm.next)
		if err != nil {
			panic(rt.NewTypeError("pick: " + err.Error()))
		}
		return rt.ToValue(items[i])
	})

	// shuffle(arr) returns a shuffled copy.
	rt.Set("shuffle", func(call goja.FunctionCall) goja.Value {
		items, ok := call.Argument(0).Export().([]any)
		if !ok {
			panic(rt.NewTypeError("shuffle: argument must be an array"))
		}
		out := append([]any(nil), items...)
		engine.Shuffle(out, vm.next)
		return rt.ToValue(out)
	})

	rt.Set("log", func(call goja.FunctionCall) goja.Value {
		parts := make([]string, len(call.Arguments))
		for i, arg := range call.Arguments {
			parts[i] = arg.String()
		}
		if len(vm.logs) >= maxLogs {
			vm.logs = vm.logs[1:]
		}
		vm.logs = append(vm.logs, LogEntry{Time: vm.clock.Now().UTC(), Message: strings.Join(parts, " ")})
		return goja.Undefined()
	})
	console := rt.NewObject()
	_ = console.Set("log", rt.Get("log"))
	rt.Set("console", console)

	rt.Set("outcome", map[string]any{
		"result_index": in.Outcome.ResultIndex,
		"payout":       in.Outcome.Payout.String(),
		"wager":        in.Outcome.Wager.String(),
		"multiplier":   in.Outcome.Multiplier().InexactFloat64(),
		"win":          in.Outcome.IsWin(),
	})
	params := in.Params
	if params == nil {
		params = map[string]any{}
	}
	rt.Set("params", params)
	rt.Set("seedHash", seed.Hash())
	rt.Set("mode", seed.Mode().String())

	// Block globals that reach outside the sandbox or read the wall clock.
	for _, name := range []string{"require", "fetch", "XMLHttpRequest", "eval", "Function", "Date"} {
		rt.Set(name, goja.Undefined())
	}
}

// Run executes source and returns its exported result: the return value of
// render() when the script defines one, otherwise the completion value.
// The runtime is interrupted when ctx ends.
func (vm *VM) Run(ctx context.Context, source string) (any, error) {
	stop := context.AfterFunc(ctx, func() {
		vm.runtime.Interrupt("script interrupted")
	})
	defer stop()

	value, err := vm.runtime.RunString(source)
	if err == nil {
		if fn, ok := goja.AssertFunction(vm.runtime.Get("render")); ok {
			value, err = fn(goja.Undefined())
		}
	}
	if err != nil {
		return nil, vm.classify(ctx, err)
	}
	// A script that swallows the draw-limit exception still fails.
	if vm.overDrawn {
		return nil, fmt.Errorf("%w (%d)", ErrTooManyDraws, vm.maxDraws)
	}

	if value == nil || goja.IsUndefined(value) || goja.IsNull(value) {
		return nil, nil
	}
	return value.Export(), nil
}

func (vm *VM) classify(ctx context.Context, err error) error {
	var interrupted *goja.InterruptedError
	if errors.As(err, &interrupted) {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return ErrTimeout
		}
		return ErrCanceled
	}
	if vm.overDrawn {
		return fmt.Errorf("%w (%d)", ErrTooManyDraws, vm.maxDraws)
	}
	return fmt.Errorf("%w: %v", ErrScript, err)
}

// Draws reports how many floats the script consumed.
func (vm *VM) Draws() int {
	return vm.gen.Draws()
}

// Logs returns a copy of the log buffer.
func (vm *VM) Logs() []LogEntry {
	out := make([]LogEntry, len(vm.logs))
	copy(out, vm.logs)
	return out
}
