package builtin

import (
	"context"
	"time"

	"github.com/ramptix/leicht/pkg/tool"
)

const timeLayout = "Monday, 2006-01-02 15:04:05 MST"

var now = time.Now

func NewTimeTool() *tool.Capability {
	return tool.Must(tool.New(tool.Definition{
		Name: "get_time",
		Doc: `Gets the current date and time.

Args:
    timezone (str): IANA time zone name, for example "Europe/Berlin".
`,
		Params: []tool.Param{{Name: "timezone", Type: tool.TypeStr, Default: "UTC", HasDefault: true}},
		Handler: func(ctx context.Context, args tool.Values) (any, error) {
			name := args.String("timezone")
			loc, err := time.LoadLocation(name)
			if err != nil {
				return failed("unknown time zone %q", name), nil
			}
			return now().In(loc).Format(timeLayout), nil
		},
	}))
}
