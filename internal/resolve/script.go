package resolve

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"taskforge/internal/value"
	logx "taskforge/pkg/logx"
)

// CallError is a failure raised by the invoked code itself, as opposed to a
// resolution failure. Detail usually carries the target's own trace output.
type CallError struct {
	Message string
	Detail  string
}

func (e *CallError) Error() string { return e.Message }

// ScriptLoader resolves on-disk script files through an interpreter
// subprocess.
//
// The child process receives a call envelope as JSON on stdin:
//
//	{"symbol": "add", "args": [2, 3], "kwargs": {}}
//
// and must print an outcome envelope as the last line of stdout:
//
//	{"ok": true, "result": 5}
//	{"ok": false, "error": {"kind": "symbol_not_found", "message": "..."}}
//
// Interpreter runner shims implement that convention per language; the
// loader itself only speaks the envelope.
type ScriptLoader struct {
	// Interpreters maps a file extension (".py") to the interpreter command.
	// Files with no mapped extension are executed directly.
	Interpreters map[string]string
	Log          logx.Logger
}

func NewScriptLoader(interpreters map[string]string, log logx.Logger) *ScriptLoader {
	if interpreters == nil {
		interpreters = map[string]string{".py": "python3"}
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &ScriptLoader{Interpreters: interpreters, Log: log}
}

func (l *ScriptLoader) resolve(ctx context.Context, location, symbol string) (Callable, error) {
	abs, err := filepath.Abs(location)
	if err != nil {
		return nil, newError(KindSourceNotFound, location, symbol, err)
	}
	fi, err := os.Stat(abs)
	if err != nil {
		return nil, newError(KindSourceNotFound, location, symbol, err)
	}
	if fi.IsDir() {
		return nil, newError(KindSourceNotFound, location, symbol, fmt.Errorf("is a directory"))
	}

	interp := l.Interpreters[strings.ToLower(filepath.Ext(abs))]
	return &scriptCallable{
		loader:   l,
		location: location,
		path:     abs,
		symbol:   symbol,
		interp:   interp,
	}, nil
}

type scriptCallable struct {
	loader   *ScriptLoader
	location string
	path     string
	symbol   string
	interp   string
}

func (c *scriptCallable) Call(ctx context.Context, args value.Args) (value.Value, error) {
	envelope := value.Map(
		value.Entry{Key: "symbol", Value: value.String(c.symbol)},
		value.Entry{Key: "args", Value: value.Seq(args.Positional...)},
		value.Entry{Key: "kwargs", Value: value.Map(args.Named...)},
	)
	in, err := value.ToJSON(envelope)
	if err != nil {
		return value.Value{}, newError(KindLoadError, c.location, c.symbol, err)
	}

	var cmd *exec.Cmd
	if c.interp != "" {
		cmd = exec.CommandContext(ctx, c.interp, c.path)
	} else {
		cmd = exec.CommandContext(ctx, c.path)
	}
	cmd.Dir = filepath.Dir(c.path)
	cmd.Stdin = bytes.NewReader(in)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	runErr := cmd.Run()
	if ctx.Err() != nil {
		return value.Value{}, ctx.Err()
	}

	out, envErr := parseOutcomeEnvelope(stdout.Bytes())
	if envErr != nil {
		// No usable envelope: the unit failed before it could answer
		// (import error, interpreter missing, crash).
		detail := tail(stderr.String(), 2000)
		if runErr != nil {
			return value.Value{}, newError(KindLoadError, c.location, c.symbol,
				fmt.Errorf("%v; stderr: %s", runErr, detail))
		}
		return value.Value{}, newError(KindLoadError, c.location, c.symbol,
			fmt.Errorf("no outcome envelope on stdout; stderr: %s", detail))
	}

	if out.ok {
		return out.result, nil
	}
	switch out.errKind {
	case "source_not_found":
		return value.Value{}, newError(KindSourceNotFound, c.location, c.symbol, fmt.Errorf("%s", out.errMessage))
	case "symbol_not_found":
		return value.Value{}, newError(KindSymbolNotFound, c.location, c.symbol, fmt.Errorf("%s", out.errMessage))
	case "load_error":
		return value.Value{}, newError(KindLoadError, c.location, c.symbol, fmt.Errorf("%s", out.errMessage))
	default:
		detail := out.errDetail
		if detail == "" {
			detail = tail(stderr.String(), 2000)
		}
		return value.Value{}, &CallError{Message: out.errMessage, Detail: detail}
	}
}

type outcomeEnvelope struct {
	ok         bool
	result     value.Value
	errKind    string
	errMessage string
	errDetail  string
}

func parseOutcomeEnvelope(stdout []byte) (outcomeEnvelope, error) {
	lines := bytes.Split(bytes.TrimSpace(stdout), []byte("\n"))
	for i := len(lines) - 1; i >= 0; i-- {
		line := bytes.TrimSpace(lines[i])
		if len(line) == 0 || line[0] != '{' {
			continue
		}
		v, err := value.FromJSON(line)
		if err != nil || v.Kind() != value.KindMap {
			continue
		}
		okVal, found := v.Lookup("ok")
		if !found {
			continue
		}
		ok, isBool := okVal.AsBool()
		if !isBool {
			continue
		}

		var env outcomeEnvelope
		env.ok = ok
		if ok {
			env.result, _ = v.Lookup("result")
			return env, nil
		}
		errVal, _ := v.Lookup("error")
		if k, found := errVal.Lookup("kind"); found {
			env.errKind, _ = k.AsString()
		}
		if m, found := errVal.Lookup("message"); found {
			env.errMessage, _ = m.AsString()
		}
		if d, found := errVal.Lookup("detail"); found {
			env.errDetail, _ = d.AsString()
		}
		if env.errMessage == "" {
			env.errMessage = "task failed"
		}
		return env, nil
	}
	return outcomeEnvelope{}, fmt.Errorf("no outcome envelope found")
}

func tail(s string, maxN int) string {
	s = strings.TrimSpace(s)
	if len(s) <= maxN {
		return s
	}
	return "..." + s[len(s)-maxN:]
}
