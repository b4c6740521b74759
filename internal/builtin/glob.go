package builtin

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/ramptix/leicht/pkg/tool"
)

const maxGlobResults = 200

func NewGlobTool() *tool.Capability {
	return tool.Must(tool.New(tool.Definition{
		Name: "glob",
		Doc: `Finds files matching a glob pattern.

Args:
    pattern (str): Glob pattern such as "*.go" or "cmd/*/main.go".
    path (str): Directory the pattern is relative to.
`,
		Params: []tool.Param{
			{Name: "pattern", Type: tool.TypeStr},
			{Name: "path", Type: tool.TypeStr, Default: ".", HasDefault: true},
		},
		Handler: func(ctx context.Context, args tool.Values) (any, error) {
			return glob(args.String("pattern"), args.String("path")), nil
		},
	}))
}

func glob(pattern, base string) string {
	if base == "" {
		base = "."
	}

	matches, err := filepath.Glob(filepath.Join(base, pattern))
	if err != nil {
		return failed("glob failed: %v", err)
	}
	if len(matches) == 0 {
		return "No files found"
	}

	sort.Strings(matches)
	if len(matches) > maxGlobResults {
		more := len(matches) - maxGlobResults
		return strings.Join(matches[:maxGlobResults], "\n") + fmt.Sprintf("\n... and %d more", more)
	}
	return strings.Join(matches, "\n")
}
