package builtin

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"

	"github.com/ramptix/leicht/pkg/tool"
)

const defaultReadLimit = 64 * 1024

func NewReadTool() *tool.Capability {
	return tool.Must(tool.New(tool.Definition{
		Name: "read_file",
		Doc: `Reads the contents of a text file.

Args:
    path (str): Path of the file to read.
    limit (int): Maximum number of bytes to return.
`,
		Params: []tool.Param{
			{Name: "path", Type: tool.TypeStr},
			{Name: "limit", Type: tool.TypeInt, Default: int64(defaultReadLimit), HasDefault: true},
		},
		Handler: func(ctx context.Context, args tool.Values) (any, error) {
			return readFile(args.String("path"), args.Int("limit")), nil
		},
	}))
}

func readFile(path string, limit int64) string {
	if limit <= 0 {
		return failed("limit must be positive, got %d", limit)
	}

	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return failed("file %s does not exist", path)
	}
	if err != nil {
		return failed("failed to read file: %v", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return failed("failed to read file: %v", err)
	}
	if info.IsDir() {
		return failed("%s is a directory", path)
	}

	data, err := io.ReadAll(io.LimitReader(f, limit))
	if err != nil {
		return failed("failed to read file: %v", err)
	}
	if isBinary(data) {
		return failed("%s is a binary file", path)
	}

	content := string(data)
	if info.Size() > limit {
		content += fmt.Sprintf("\n[truncated, %d of %d bytes shown]", limit, info.Size())
	}
	return content
}
