package builtin

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/ramptix/leicht/pkg/tool"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func call(t *testing.T, c *tool.Capability, args string) string {
	t.Helper()
	out, err := c.CallText(context.Background(), args)
	require.NoError(t, err)
	return tool.FormatResult(out)
}

func TestAll(t *testing.T) {
	reg, err := tool.NewRegistry(All(true)...)
	require.NoError(t, err)
	assert.Equal(t, 5, reg.Len())

	_, ok := reg.Get("bash")
	assert.True(t, ok)

	reg, err = tool.NewRegistry(All(false)...)
	require.NoError(t, err)
	_, ok = reg.Get("bash")
	assert.False(t, ok)
}

func TestTimeTool(t *testing.T) {
	now = func() time.Time { return time.Date(2024, 3, 1, 12, 30, 0, 0, time.UTC) }
	t.Cleanup(func() { now = time.Now })

	c := NewTimeTool()
	assert.Equal(t, "get_time(timezone: str=\"UTC\")\nGets the current date and time.\ntimezone - IANA time zone name, for example \"Europe/Berlin\".", c.Prompt())

	assert.Equal(t, "Friday, 2024-03-01 12:30:00 UTC", call(t, c, ""))
	assert.Contains(t, call(t, c, `"Mars/Olympus"`), "unknown time zone")
}

func TestReadTool(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "notes.txt")
	require.NoError(t, os.WriteFile(path, []byte("line 1\nline 2\n"), 0o644))

	c := NewReadTool()
	assert.Equal(t, "line 1\nline 2\n", call(t, c, `"`+path+`"`))

	out := call(t, c, `"`+path+`", limit=4`)
	assert.True(t, strings.HasPrefix(out, "line\n[truncated, 4 of 14 bytes shown]"))

	assert.Contains(t, call(t, c, `"`+filepath.Join(dir, "missing")+`"`), "does not exist")
	assert.Contains(t, call(t, c, `"`+dir+`"`), "is a directory")

	bin := filepath.Join(dir, "data.bin")
	require.NoError(t, os.WriteFile(bin, []byte{0x7f, 0, 1}, 0o644))
	assert.Contains(t, call(t, c, `"`+bin+`"`), "binary file")
}

func TestReadTool_WrongArgumentType(t *testing.T) {
	_, err := NewReadTool().CallText(context.Background(), "42")
	require.Error(t, err)
	assert.True(t, tool.IsModelError(err))
}

func TestGlobTool(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"b.go", "a.go", "c.txt"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), nil, 0o644))
	}

	c := NewGlobTool()
	out := call(t, c, `"*.go", path="`+dir+`"`)
	assert.Equal(t, filepath.Join(dir, "a.go")+"\n"+filepath.Join(dir, "b.go"), out)

	assert.Equal(t, "No files found", call(t, c, `"*.rs", "`+dir+`"`))
	assert.Contains(t, call(t, c, `"[", "`+dir+`"`), "glob failed")
}

func TestGrepTool(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "main.go"), []byte("package main\n\nfunc main() {}\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "README.md"), []byte("Main entry\n"), 0o644))
	require.NoError(t, os.Mkdir(filepath.Join(dir, ".git"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".git", "HEAD"), []byte("main\n"), 0o644))

	c := NewGrepTool()

	out := call(t, c, `"main", "`+dir+`"`)
	assert.Equal(t, filepath.Join(dir, "main.go")+":1:package main\n"+filepath.Join(dir, "main.go")+":3:func main() {}", out)

	out = call(t, c, `"main", "`+dir+`", ignore_case=True, include="*.md"`)
	assert.Equal(t, filepath.Join(dir, "README.md")+":1:Main entry", out)

	assert.Equal(t, "No matches found", call(t, c, `"absent", "`+dir+`"`))
	assert.Contains(t, call(t, c, `"(", "`+dir+`"`), "invalid regex")
	assert.Contains(t, call(t, c, `"x", "`+filepath.Join(dir, "nope")+`"`), "path not found")
}

func TestBashTool(t *testing.T) {
	if _, err := os.Stat("/bin/bash"); err != nil {
		t.Skip("bash not available")
	}

	c := NewBashTool()
	assert.Equal(t, "hello\n", call(t, c, `"echo hello"`))
	assert.Equal(t, "(no output)", call(t, c, `"true"`))
	assert.Contains(t, call(t, c, `"echo oops; exit 3"`), "oops\nError: exit status 3")
	assert.Contains(t, call(t, c, `"sleep 5", timeout=1`), "timed out")
	assert.Contains(t, call(t, c, `"  "`), "empty command")
}
