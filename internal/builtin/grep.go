package builtin

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/ramptix/leicht/pkg/tool"
)

const maxGrepMatches = 100

func NewGrepTool() *tool.Capability {
	return tool.Must(tool.New(tool.Definition{
		Name: "grep",
		Doc: `Searches files for lines matching a regular expression.

Args:
    pattern (str): Regular expression to search for.
    path (str): File or directory to search.
    ignore_case (bool): Match case-insensitively.
    include (str): Only search files whose name matches this glob.
`,
		Params: []tool.Param{
			{Name: "pattern", Type: tool.TypeStr},
			{Name: "path", Type: tool.TypeStr, Default: ".", HasDefault: true},
			{Name: "ignore_case", Type: tool.TypeBool, Default: false, HasDefault: true},
			{Name: "include", Type: tool.TypeStr, Default: "", HasDefault: true},
		},
		Handler: func(ctx context.Context, args tool.Values) (any, error) {
			return grep(ctx, args.String("pattern"), args.String("path"), args.Bool("ignore_case"), args.String("include")), nil
		},
	}))
}

func grep(ctx context.Context, pattern, root string, ignoreCase bool, include string) string {
	if ignoreCase {
		pattern = "(?i)" + pattern
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return failed("invalid regex pattern: %v", err)
	}

	info, err := os.Stat(root)
	if err != nil {
		return failed("path not found: %v", err)
	}

	var results []string
	if !info.IsDir() {
		results = searchFile(root, re)
	} else {
		err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return nil
			}
			if err := ctx.Err(); err != nil {
				return err
			}
			if d.IsDir() {
				if path != root && strings.HasPrefix(d.Name(), ".") {
					return filepath.SkipDir
				}
				return nil
			}
			if include != "" {
				if ok, _ := filepath.Match(include, d.Name()); !ok {
					return nil
				}
			}
			results = append(results, searchFile(path, re)...)
			if len(results) >= maxGrepMatches {
				return filepath.SkipAll
			}
			return nil
		})
		if err != nil {
			return failed("directory walk failed: %v", err)
		}
	}

	if len(results) == 0 {
		return "No matches found"
	}
	if len(results) > maxGrepMatches {
		results = results[:maxGrepMatches]
	}
	return strings.Join(results, "\n")
}

func searchFile(path string, re *regexp.Regexp) []string {
	f, err := os.Open(path)
	if err != nil {
		return nil
	}
	defer f.Close()

	head := make([]byte, 512)
	n, _ := f.Read(head)
	if isBinary(head[:n]) {
		return nil
	}
	if _, err := f.Seek(0, 0); err != nil {
		return nil
	}

	var results []string
	scanner := bufio.NewScanner(f)
	for line := 1; scanner.Scan(); line++ {
		if re.MatchString(scanner.Text()) {
			results = append(results, fmt.Sprintf("%s:%d:%s", path, line, scanner.Text()))
		}
	}
	return results
}

// isBinary reports whether data contains a NUL byte.
func isBinary(data []byte) bool {
	return bytes.IndexByte(data, 0) >= 0
}
