// Package builtin provides the capabilities the leicht CLI registers by
// default.
package builtin

import (
	"fmt"

	"github.com/ramptix/leicht/pkg/tool"
)

// All returns every builtin capability. The command runner is included only
// when withShell is set.
func All(withShell bool) []*tool.Capability {
	caps := []*tool.Capability{
		NewTimeTool(),
		NewReadTool(),
		NewGlobTool(),
		NewGrepTool(),
	}
	if withShell {
		caps = append(caps, NewBashTool())
	}
	return caps
}

// failed renders a failure as a tool result, so the model sees what went
// wrong and the run continues.
func failed(format string, args ...any) string {
	return "Error: " + fmt.Sprintf(format, args...)
}
