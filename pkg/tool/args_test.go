package tool

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseArgs_Literals(t *testing.T) {
	tests := []struct {
		raw  string
		want any
	}{
		{`"NYC"`, "NYC"},
		{`'single'`, "single"},
		{`"tab\there"`, "tab\there"},
		{`"\x41\u00e9"`, "Aé"},
		{`r"C:\new"`, `C:\new`},
		{`"""triple "quoted" text"""`, `triple "quoted" text`},
		{`"con" "cat"`, "concat"},
		{`b"bytes"`, []byte("bytes")},
		{`b"\x00\x01"`, []byte{0, 1}},
		{`42`, int64(42)},
		{`-42`, int64(-42)},
		{`+7`, int64(7)},
		{`1_000`, int64(1000)},
		{`0x1f`, int64(31)},
		{`0o17`, int64(15)},
		{`0b101`, int64(5)},
		{`0`, int64(0)},
		{`-9223372036854775808`, int64(math.MinInt64)},
		{`-0x10`, int64(-16)},
		{`(1)`, int64(1)},
		{`(("a"))`, "a"},
		{`( 2.5 )`, 2.5},
		{`3.5`, 3.5},
		{`-0.25`, -0.25},
		{`.5`, 0.5},
		{`5.`, 5.0},
		{`1e3`, 1000.0},
		{`2.5E-1`, 0.25},
		{`True`, true},
		{`False`, false},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			args, err := ParseArgs(tt.raw)
			require.NoError(t, err)
			require.Len(t, args.Positional, 1)
			assert.Equal(t, tt.want, args.Positional[0])
			assert.Empty(t, args.Keyword)
		})
	}
}

func TestParseArgs_ParenthesisedKeyword(t *testing.T) {
	args, err := ParseArgs(`"a", n=(3)`)
	require.NoError(t, err)
	assert.Equal(t, []any{"a"}, args.Positional)
	assert.Equal(t, int64(3), args.Keyword["n"])
}

func TestParseArgs_Keywords(t *testing.T) {
	args, err := ParseArgs(`location="NYC"`)
	require.NoError(t, err)
	assert.Empty(t, args.Positional)
	assert.Equal(t, map[string]any{"location": "NYC"}, args.Keyword)
	assert.Equal(t, []string{"location"}, args.Order)

	args, err = ParseArgs(`1, "two", units = "metric", days=3,`)
	require.NoError(t, err)
	assert.Equal(t, []any{int64(1), "two"}, args.Positional)
	assert.Equal(t, map[string]any{"units": "metric", "days": int64(3)}, args.Keyword)
	assert.Equal(t, []string{"units", "days"}, args.Order)
}

func TestParseArgs_CommasInsideStrings(t *testing.T) {
	args, err := ParseArgs(`"a, b", 'c)d', note="x=y"`)
	require.NoError(t, err)
	assert.Equal(t, []any{"a, b", "c)d"}, args.Positional)
	assert.Equal(t, "x=y", args.Keyword["note"])
}

func TestParseArgs_Empty(t *testing.T) {
	for _, raw := range []string{"", "   "} {
		args, err := ParseArgs(raw)
		require.NoError(t, err)
		assert.Empty(t, args.Positional)
		assert.Empty(t, args.Keyword)
	}
}

func TestParseArgs_CompositeIsTypeError(t *testing.T) {
	for _, raw := range []string{
		"a, [1,2]",
		"[1, 2]",
		"x={'k': 1}",
		"(1, 2)",
		"(1,)",
		"()",
		"x=((1, 2))",
		"1, {2}",
	} {
		t.Run(raw, func(t *testing.T) {
			_, err := ParseArgs(raw)
			var me *ModelError
			require.ErrorAs(t, err, &me)
			assert.Equal(t, KindType, me.Kind)
			assert.Contains(t, err.Error(), "caused by LLM")
		})
	}
}

func TestParseArgs_NonLiteralIsValueError(t *testing.T) {
	for _, raw := range []string{
		"a",
		"None",
		"x=None",
		"x=y",
		"9223372036854775808",
		"os.system('ls')",
		"open('f')",
		"1 + 2",
		"-x",
		`f"{x}"`,
		`"abc".upper()`,
		"a == 1",
		"017",
		"1j",
		`"unterminated`,
		"1, , 2",
		",",
		"a=1, 2",
		"a=1, a=2",
		"(1",
		`b"caf` + "\u00e9" + `"`,
		`"a" b"b"`,
	} {
		t.Run(raw, func(t *testing.T) {
			_, err := ParseArgs(raw)
			var me *ModelError
			require.ErrorAs(t, err, &me)
			assert.Equal(t, KindValue, me.Kind)
		})
	}
}
