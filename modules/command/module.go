package command

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"slices"
	"sort"
	"strings"

	"github.com/vk/burstmission/internal/ctxlog"
	"github.com/vk/burstmission/internal/registry"
)

const schema = `{
  "type": "object",
  "required": ["command"],
  "properties": {
    "command": {"type": "string", "minLength": 1},
    "args": {"type": "array", "items": {"type": "string"}},
    "dir": {"type": "string"},
    "env": {"type": "object", "additionalProperties": {"type": "string"}},
    "allow_failure": {"type": "boolean"}
  }
}`

// Module implements the registry.Module interface for this package.
type Module struct {
	// Allowed restricts the programs that may run. Empty allows any program
	// that passes Check.
	Allowed []string
}

// Input defines the parameters of the command tool.
type Input struct {
	Command      string            `param:"command"`
	Args         []string          `param:"args"`
	Dir          string            `param:"dir"`
	Env          map[string]string `param:"env"`
	AllowFailure bool              `param:"allow_failure"`
}

// Output is the captured result of a process.
type Output struct {
	Stdout   string `json:"stdout"`
	Stderr   string `json:"stderr"`
	ExitCode int    `json:"exit_code"`
}

// Register registers the handler with the engine.
func (m *Module) Register(r *registry.Registry) {
	r.RegisterTool(registry.NewFunc("command", schema, m.Run))
}

// Run executes a program without a shell. When args is empty the command
// string is split on whitespace. A non-zero exit fails the step unless
// allow_failure is set. The process is killed when ctx ends.
func (m *Module) Run(ctx context.Context, params map[string]any) (any, error) {
	var in Input
	if err := registry.Decode(params, &in); err != nil {
		return nil, err
	}

	name, args := in.Command, in.Args
	if len(args) == 0 {
		fields := strings.Fields(in.Command)
		if len(fields) == 0 {
			return nil, errors.New("command must not be empty")
		}
		name, args = fields[0], fields[1:]
	}
	if err := Check(name, args); err != nil {
		return nil, err
	}
	if len(m.Allowed) > 0 && !slices.Contains(m.Allowed, name) {
		return nil, fmt.Errorf("command %q is not in the allowed list", name)
	}

	logger := ctxlog.FromContext(ctx).With("command", name)
	logger.Info("Running command", "args", args)

	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = in.Dir
	if len(in.Env) > 0 {
		cmd.Env = append(os.Environ(), envList(in.Env)...)
	}
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	out := Output{}
	err := cmd.Run()
	out.Stdout = stdout.String()
	out.Stderr = stderr.String()

	var exitErr *exec.ExitError
	switch {
	case err == nil:
	case ctx.Err() != nil:
		return nil, fmt.Errorf("command %q interrupted: %w", name, ctx.Err())
	case errors.As(err, &exitErr):
		out.ExitCode = exitErr.ExitCode()
	default:
		return nil, fmt.Errorf("failed to start command %q: %w", name, err)
	}

	logger.Debug("Command finished", "exit_code", out.ExitCode, "stdout_bytes", len(out.Stdout))
	if out.ExitCode != 0 && !in.AllowFailure {
		return nil, fmt.Errorf("command %q exited with code %d: %s", name, out.ExitCode, strings.TrimSpace(out.Stderr))
	}
	return out, nil
}

func envList(env map[string]string) []string {
	list := make([]string, 0, len(env))
	for k, v := range env {
		list = append(list, k+"="+v)
	}
	sort.Strings(list)
	return list
}
