// Package jsengine evaluates JavaScript expressions used by scenarios:
// expectation scripts and ${...} expansion in step fields.
package jsengine

import (
	"context"
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/dop251/goja"
	"go.uber.org/zap"
)

// DefaultTimeout bounds a single evaluation when the context has no deadline.
const DefaultTimeout = time.Second

// envVarPattern matches the environment names imported by ImportSystemEnv.
var envVarPattern = regexp.MustCompile(`^[A-Z][A-Z0-9_]*$`)

// dollarVarPattern matches bare $NAME references.
var dollarVarPattern = regexp.MustCompile(`\$([A-Z][A-Z0-9_]*)`)

// ErrInterrupted is returned when an evaluation is stopped by its deadline.
var ErrInterrupted = errors.New("script interrupted")

// Engine wraps a goja runtime. An Engine is not shared between goroutines;
// create one per evaluation context.
type Engine struct {
	runtime   *goja.Runtime
	variables map[string]interface{}
	log       *zap.Logger
	mu        sync.Mutex
}

// New creates an engine with the console and json helpers installed.
func New(log *zap.Logger) *Engine {
	if log == nil {
		log = zap.NewNop()
	}
	e := &Engine{
		runtime:   goja.New(),
		variables: make(map[string]interface{}),
		log:       log.Named("js"),
	}
	e.runtime.SetFieldNameMapper(goja.TagFieldNameMapper("json", true))
	e.setupConsole()
	e.runtime.Set("json", e.jsonFunc())
	return e
}

// setupConsole routes console.log/warn/error to the logger.
func (e *Engine) setupConsole() {
	makeConsoleFunc := func(level string) func(goja.FunctionCall) goja.Value {
		return func(call goja.FunctionCall) goja.Value {
			parts := make([]string, len(call.Arguments))
			for i, arg := range call.Arguments {
				parts[i] = arg.String()
			}
			msg := strings.Join(parts, " ")
			switch level {
			case "error":
				e.log.Error(msg)
			case "warn":
				e.log.Warn(msg)
			default:
				e.log.Info(msg)
			}
			return goja.Undefined()
		}
	}

	console := e.runtime.NewObject()
	_ = console.Set("log", makeConsoleFunc("info"))
	_ = console.Set("warn", makeConsoleFunc("warn"))
	_ = console.Set("error", makeConsoleFunc("error"))
	e.runtime.Set("console", console)
}

// jsonFunc returns the json(str) helper that parses a JSON string.
func (e *Engine) jsonFunc() func(call goja.FunctionCall) goja.Value {
	return func(call goja.FunctionCall) goja.Value {
		if len(call.Arguments) < 1 {
			panic(e.runtime.NewTypeError("json requires 1 argument"))
		}
		parse, _ := goja.AssertFunction(e.runtime.Get("JSON").ToObject(e.runtime).Get("parse"))
		v, err := parse(goja.Undefined(), call.Arguments[0])
		if err != nil {
			panic(e.runtime.NewTypeError(fmt.Sprintf("invalid JSON: %v", err)))
		}
		return v
	}
}

// SetVariable sets a global visible to scripts. Go structs are exposed with
// their json field names; functions become callable.
func (e *Engine) SetVariable(name string, value interface{}) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.variables[name] = value
	e.runtime.Set(name, value)
}

// SetVariables sets several globals.
func (e *Engine) SetVariables(vars map[string]string) {
	for k, v := range vars {
		e.SetVariable(k, v)
	}
}

// ImportSystemEnv exposes upper-case environment variables (THING, MY_VAR)
// as globals.
func (e *Engine) ImportSystemEnv() {
	for _, env := range os.Environ() {
		name, value, ok := strings.Cut(env, "=")
		if ok && envVarPattern.MatchString(name) {
			e.SetVariable(name, value)
		}
	}
}

// Variable returns a global previously set with SetVariable.
func (e *Engine) Variable(name string) (interface{}, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	v, ok := e.variables[name]
	return v, ok
}

// Eval evaluates script and exports the result. The evaluation is
// interrupted when ctx ends or, without a deadline, after DefaultTimeout.
func (e *Engine) Eval(ctx context.Context, script string) (interface{}, error) {
	v, err := e.run(ctx, script)
	if err != nil {
		return nil, err
	}
	return v.Export(), nil
}

// EvalBool evaluates script and converts the result with JavaScript truthiness.
func (e *Engine) EvalBool(ctx context.Context, script string) (bool, error) {
	v, err := e.run(ctx, script)
	if err != nil {
		return false, err
	}
	return v.ToBoolean(), nil
}

// EvalString evaluates script and formats the result. undefined and null
// become the empty string.
func (e *Engine) EvalString(ctx context.Context, script string) (string, error) {
	v, err := e.run(ctx, script)
	if err != nil {
		return "", err
	}
	if goja.IsUndefined(v) || goja.IsNull(v) {
		return "", nil
	}
	return v.String(), nil
}

func (e *Engine) run(ctx context.Context, script string) (goja.Value, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.runtime.ClearInterrupt()

	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, DefaultTimeout)
		defer cancel()
	}
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			e.runtime.Interrupt(ErrInterrupted)
		case <-done:
		}
	}()

	v, err := e.runtime.RunString(script)
	if err != nil {
		var interrupted *goja.InterruptedError
		if errors.As(err, &interrupted) {
			e.runtime.ClearInterrupt()
			return nil, fmt.Errorf("JS eval: %w", ErrInterrupted)
		}
		return nil, fmt.Errorf("JS eval error: %w", err)
	}
	return v, nil
}

// ExpandVariables replaces ${expr} with the evaluated expression and $NAME
// with a variable's value. Expressions that fail to evaluate are left as-is.
func (e *Engine) ExpandVariables(ctx context.Context, text string) string {
	result := text
	start := 0
	for {
		idx := strings.Index(result[start:], "${")
		if idx == -1 {
			break
		}
		idx += start

		depth, end := 1, idx+2
		for end < len(result) && depth > 0 {
			switch result[end] {
			case '{':
				depth++
			case '}':
				depth--
			}
			end++
		}
		if depth != 0 {
			start = idx + 2
			continue
		}

		value, err := e.EvalString(ctx, result[idx+2:end-1])
		if err != nil {
			start = end
			continue
		}
		result = result[:idx] + value + result[end:]
		start = idx + len(value)
	}

	return dollarVarPattern.ReplaceAllStringFunc(result, func(m string) string {
		if v, ok := e.Variable(m[1:]); ok {
			return fmt.Sprint(v)
		}
		return m
	})
}
