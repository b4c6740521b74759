package tool

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"
)

// Args are the literal values of one call, as the model wrote them.
type Args struct {
	Positional []any
	Keyword    map[string]any
	// Order lists keyword names as they appeared.
	Order []string
}

var (
	keywordPrefix = regexp.MustCompile(`^([A-Za-z_][A-Za-z0-9_]*)\s*=`)
	intLiteral    = regexp.MustCompile(`^(0[xX]_?[0-9a-fA-F](_?[0-9a-fA-F])*|0[oO]_?[0-7](_?[0-7])*|0[bB]_?[01](_?[01])*|0(_?0)*|[1-9](_?[0-9])*)$`)
	floatLiteral  = regexp.MustCompile(`^([0-9](_?[0-9])*\.([0-9](_?[0-9])*)?|\.[0-9](_?[0-9])*|[0-9](_?[0-9])*)([eE][+-]?[0-9](_?[0-9])*)?$`)
	stringPrefix  = regexp.MustCompile(`^([A-Za-z]{0,2})['"]`)
)

// ParseArgs parses the text between the parentheses of a call, such as
// `location="NYC", units="metric"`. Only constant literals are accepted:
// int, float, str, bytes and bool. Composite literals fail with a type
// ModelError, anything that is not a literal fails with a value ModelError.
// Grouping parentheses are dropped, so (1) is the int 1 while (1,) is a
// tuple. Complex numbers such as 1j have no parameter type and are rejected
// as values.
func ParseArgs(raw string) (Args, error) {
	args := Args{Keyword: map[string]any{}}

	pieces, err := splitArgs(raw)
	if err != nil {
		return Args{}, err
	}

	// Composites are rejected before anything is evaluated so that the
	// error kind does not depend on argument order.
	type item struct{ name, text string }
	items := make([]item, 0, len(pieces))
	for _, p := range pieces {
		name, text := splitKeyword(p)
		text, tuple := unparen(text)
		if tuple || (text != "" && strings.ContainsRune("[({", rune(text[0]))) {
			return Args{}, modelErrorf(KindType, "composite literal %s is not supported, only int, float, str, bytes and bool", clip(text))
		}
		items = append(items, item{name, text})
	}

	for _, it := range items {
		name, text := it.name, it.text
		if text == "" {
			return Args{}, modelErrorf(KindValue, "invalid syntax in %q", raw)
		}

		v, err := parseLiteral(text)
		if err != nil {
			return Args{}, err
		}

		if name == "" {
			if len(args.Order) > 0 {
				return Args{}, modelErrorf(KindValue, "positional argument %s follows keyword argument", clip(text))
			}
			args.Positional = append(args.Positional, v)
			continue
		}
		if _, dup := args.Keyword[name]; dup {
			return Args{}, modelErrorf(KindValue, "keyword argument %q repeated", name)
		}
		args.Keyword[name] = v
		args.Order = append(args.Order, name)
	}

	return args, nil
}

// splitArgs cuts raw at top-level commas, skipping over string literals and
// bracketed groups. A single trailing comma is allowed.
func splitArgs(raw string) ([]string, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}

	var (
		pieces []string
		depth  int
		start  int
	)
	for i := 0; i < len(raw); {
		switch c := raw[i]; c {
		case '"', '\'':
			end, _, err := stringEnd(raw, i)
			if err != nil {
				return nil, err
			}
			i = end
			continue
		case '(', '[', '{':
			depth++
		case ')', ']', '}':
			depth--
			if depth < 0 {
				return nil, modelErrorf(KindValue, "unmatched %q in %q", c, raw)
			}
		case ',':
			if depth == 0 {
				pieces = append(pieces, strings.TrimSpace(raw[start:i]))
				start = i + 1
			}
		}
		i++
	}
	if depth != 0 {
		return nil, modelErrorf(KindValue, "unclosed bracket in %q", raw)
	}

	last := strings.TrimSpace(raw[start:])
	if last != "" || len(pieces) == 0 {
		pieces = append(pieces, last)
	}
	return pieces, nil
}

// unparen strips parentheses that enclose all of text. tuple reports a
// parenthesised tuple such as () or (1,).
func unparen(text string) (string, bool) {
	for strings.HasPrefix(text, "(") && closingParen(text) == len(text)-1 {
		inner := strings.TrimSpace(text[1 : len(text)-1])
		if inner == "" || strings.HasSuffix(inner, ",") {
			return text, true
		}
		pieces, err := splitArgs(inner)
		if err != nil {
			return text, false
		}
		if len(pieces) > 1 {
			return text, true
		}
		text = inner
	}
	return text, false
}

// closingParen returns the index of the bracket closing the one at s[0], or
// -1.
func closingParen(s string) int {
	depth := 0
	for i := 0; i < len(s); {
		switch s[i] {
		case '"', '\'':
			end, _, err := stringEnd(s, i)
			if err != nil {
				return -1
			}
			i = end
			continue
		case '(', '[', '{':
			depth++
		case ')', ']', '}':
			depth--
			if depth == 0 {
				return i
			}
		}
		i++
	}
	return -1
}

// splitKeyword separates `name=value` into its parts. name is empty for a
// positional argument.
func splitKeyword(piece string) (name, value string) {
	m := keywordPrefix.FindStringSubmatchIndex(piece)
	if m == nil {
		return "", piece
	}
	rest := piece[m[1]:]
	if strings.HasPrefix(rest, "=") {
		// `a == b` is a comparison, not a keyword.
		return "", piece
	}
	return piece[m[2]:m[3]], strings.TrimSpace(rest)
}

func parseLiteral(text string) (any, error) {
	switch text {
	case "True":
		return true, nil
	case "False":
		return false, nil
	case "None":
		return nil, modelErrorf(KindValue, "None is not supported, only int, float, str, bytes and bool")
	}

	if stringPrefix.MatchString(text) {
		return parseStrings(text)
	}

	if c := text[0]; c == '+' || c == '-' || c == '.' || (c >= '0' && c <= '9') {
		return parseNumber(text)
	}

	if identPattern.MatchString(text) {
		return nil, modelErrorf(KindValue, "name %s is not a literal", text)
	}
	return nil, modelErrorf(KindValue, "%s is not a literal", clip(text))
}

func parseNumber(text string) (any, error) {
	neg := false
	body := text
	if body[0] == '+' || body[0] == '-' {
		neg = body[0] == '-'
		body = strings.TrimSpace(body[1:])
	}
	if body == "" {
		return nil, modelErrorf(KindValue, "%s is not a literal", clip(text))
	}

	if intLiteral.MatchString(body) {
		// The sign is parsed along with the digits so that the smallest
		// int64 stays in range.
		signed := body
		if neg {
			signed = "-" + body
		}
		n, err := strconv.ParseInt(signed, 0, 64)
		if err != nil {
			return nil, modelErrorf(KindValue, "integer %s out of range", clip(text))
		}
		return n, nil
	}

	if floatLiteral.MatchString(body) && strings.ContainsAny(body, ".eE") {
		f, err := strconv.ParseFloat(strings.ReplaceAll(body, "_", ""), 64)
		if err != nil {
			return nil, modelErrorf(KindValue, "float %s out of range", clip(body))
		}
		if neg {
			f = -f
		}
		return f, nil
	}

	return nil, modelErrorf(KindValue, "%s is not a literal", clip(text))
}

// parseStrings handles one string or bytes literal, or several adjacent ones
// which are concatenated.
func parseStrings(text string) (any, error) {
	var (
		sb      strings.Builder
		isBytes bool
		first   = true
	)
	for rest := text; rest != ""; rest = strings.TrimLeft(rest, " \t\r\n") {
		m := stringPrefix.FindStringSubmatch(rest)
		if m == nil {
			return nil, modelErrorf(KindValue, "%s is not a literal", clip(text))
		}
		prefix := strings.ToLower(m[1])
		raw, b := false, false
		switch prefix {
		case "", "u":
		case "r":
			raw = true
		case "b":
			b = true
		case "br", "rb":
			raw, b = true, true
		default:
			if strings.Contains(prefix, "f") {
				return nil, modelErrorf(KindValue, "f-string %s is not a literal", clip(text))
			}
			return nil, modelErrorf(KindValue, "invalid string prefix %q", m[1])
		}
		if !first && b != isBytes {
			return nil, modelErrorf(KindValue, "cannot mix bytes and nonbytes literals")
		}
		isBytes, first = b, false

		q := len(m[1])
		end, quote, err := stringEnd(rest, q)
		if err != nil {
			return nil, err
		}
		body := rest[q+quote : end-quote]

		if b {
			for i := 0; i < len(body); i++ {
				if body[i] >= utf8.RuneSelf {
					return nil, modelErrorf(KindValue, "bytes can only contain ASCII literal characters")
				}
			}
		}
		if raw {
			sb.WriteString(body)
		} else {
			s, err := unescape(body, b)
			if err != nil {
				return nil, err
			}
			sb.WriteString(s)
		}
		rest = rest[end:]
	}

	if isBytes {
		return []byte(sb.String()), nil
	}
	return sb.String(), nil
}

// stringEnd returns the index just past the string literal whose opening
// quote is at s[i], and the length of its quote (1 or 3).
func stringEnd(s string, i int) (end, quote int, err error) {
	q := s[i]
	delim := s[i : i+1]
	if strings.HasPrefix(s[i:], strings.Repeat(delim, 3)) {
		delim = strings.Repeat(delim, 3)
	}

	for j := i + len(delim); j < len(s); j++ {
		switch {
		case s[j] == '\\':
			j++
		case len(delim) == 1 && s[j] == '\n':
			return 0, 0, modelErrorf(KindValue, "unterminated string literal")
		case s[j] == q && strings.HasPrefix(s[j:], delim):
			return j + len(delim), len(delim), nil
		}
	}
	return 0, 0, modelErrorf(KindValue, "unterminated string literal")
}

func unescape(body string, isBytes bool) (string, error) {
	if !strings.Contains(body, `\`) {
		return body, nil
	}

	var sb strings.Builder
	for i := 0; i < len(body); i++ {
		c := body[i]
		if c != '\\' {
			sb.WriteByte(c)
			continue
		}
		i++
		if i >= len(body) {
			return "", modelErrorf(KindValue, "trailing backslash in string literal")
		}
		switch e := body[i]; e {
		case '\n':
		case '\\', '\'', '"':
			sb.WriteByte(e)
		case 'a':
			sb.WriteByte('\a')
		case 'b':
			sb.WriteByte('\b')
		case 'f':
			sb.WriteByte('\f')
		case 'n':
			sb.WriteByte('\n')
		case 'r':
			sb.WriteByte('\r')
		case 't':
			sb.WriteByte('\t')
		case 'v':
			sb.WriteByte('\v')
		case '0', '1', '2', '3', '4', '5', '6', '7':
			j := i
			for j < len(body) && j < i+3 && body[j] >= '0' && body[j] <= '7' {
				j++
			}
			n, _ := strconv.ParseUint(body[i:j], 8, 16)
			writeCode(&sb, rune(n), isBytes)
			i = j - 1
		case 'x', 'u', 'U':
			width := map[byte]int{'x': 2, 'u': 4, 'U': 8}[e]
			if e != 'x' && isBytes {
				sb.WriteByte('\\')
				sb.WriteByte(e)
				continue
			}
			if i+1+width > len(body) {
				return "", modelErrorf(KindValue, "truncated \\%c escape", e)
			}
			n, err := strconv.ParseUint(body[i+1:i+1+width], 16, 32)
			if err != nil || (e != 'x' && !utf8.ValidRune(rune(n))) {
				return "", modelErrorf(KindValue, "invalid \\%c escape", e)
			}
			writeCode(&sb, rune(n), isBytes)
			i += width
		default:
			sb.WriteByte('\\')
			sb.WriteByte(e)
		}
	}
	return sb.String(), nil
}

func writeCode(sb *strings.Builder, r rune, isBytes bool) {
	if isBytes {
		sb.WriteByte(byte(r))
		return
	}
	sb.WriteRune(r)
}

func clip(s string) string {
	const limit = 40
	if len(s) <= limit {
		return s
	}
	return fmt.Sprintf("%s...", s[:limit])
}
