package builtin

import (
	"context"
	"errors"
	"os/exec"
	"strings"
	"time"

	"github.com/ramptix/leicht/pkg/tool"
)

const defaultCommandTimeout = 120

func NewBashTool() *tool.Capability {
	return tool.Must(tool.New(tool.Definition{
		Name: "bash",
		Doc: `Runs a shell command and returns its combined output.

Args:
    command (str): The command line to run with bash -c.
    timeout (int): Timeout in seconds.
`,
		Params: []tool.Param{
			{Name: "command", Type: tool.TypeStr},
			{Name: "timeout", Type: tool.TypeInt, Default: int64(defaultCommandTimeout), HasDefault: true},
		},
		Handler: func(ctx context.Context, args tool.Values) (any, error) {
			return runCommand(ctx, args.String("command"), time.Duration(args.Int("timeout"))*time.Second), nil
		},
	}))
}

func runCommand(ctx context.Context, command string, timeout time.Duration) string {
	if strings.TrimSpace(command) == "" {
		return failed("empty command")
	}
	if timeout <= 0 {
		timeout = defaultCommandTimeout * time.Second
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	out, err := exec.CommandContext(ctx, "bash", "-c", command).CombinedOutput()
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return string(out) + failed("command timed out after %s", timeout)
	}
	if err != nil {
		return string(out) + failed("%v", err)
	}
	if len(out) == 0 {
		return "(no output)"
	}
	return string(out)
}
