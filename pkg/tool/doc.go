package tool

import (
	"regexp"
	"strings"
)

// Doc is the structured form of a tool's free-text documentation.
type Doc struct {
	Description string
	Args        []ArgDoc
}

// ArgDoc documents one parameter. Type is whatever annotation appeared in
// parentheses after the name, if any.
type ArgDoc struct {
	Name        string
	Type        string
	Description string
}

var (
	argsHeader    = regexp.MustCompile(`^(Args|Arguments|Parameters|Params):\s*$`)
	sectionHeader = regexp.MustCompile(`^(Returns|Return|Raises|Yields|Examples?|Notes?|Attributes):\s*$`)
	argLine       = regexp.MustCompile(`^\*{0,2}([A-Za-z_][A-Za-z0-9_]*)\s*(?:\(([^)]*)\))?\s*:\s*(.*)$`)
)

// ParseDoc splits documentation into the description paragraph and the
// entries of its "Args:" section, in declaration order.
//
//	Adds two numbers.
//
//	Args:
//	    a: First number.
//	    b (int): Second number,
//	        continued on the next line.
func ParseDoc(text string) Doc {
	lines := strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")

	var desc []string
	inDesc := true
	i := 0
	for ; i < len(lines); i++ {
		trimmed := strings.TrimSpace(lines[i])
		if argsHeader.MatchString(trimmed) {
			break
		}
		// Sections such as Returns: end the description but may precede Args:.
		if sectionHeader.MatchString(trimmed) {
			inDesc = false
		}
		if inDesc {
			desc = append(desc, trimmed)
		}
	}

	doc := Doc{Description: strings.TrimSpace(strings.Join(desc, "\n"))}
	if i >= len(lines) {
		return doc
	}

	baseIndent := -1
	for i++; i < len(lines); i++ {
		line := lines[i]
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		if sectionHeader.MatchString(trimmed) {
			break
		}

		indent := len(line) - len(strings.TrimLeft(line, " \t"))
		if baseIndent < 0 {
			baseIndent = indent
		}
		if indent < baseIndent {
			break
		}

		if indent == baseIndent {
			if m := argLine.FindStringSubmatch(trimmed); m != nil {
				doc.Args = append(doc.Args, ArgDoc{
					Name:        m[1],
					Type:        strings.TrimSpace(m[2]),
					Description: strings.TrimSpace(m[3]),
				})
				continue
			}
		}

		// Continuation of the previous entry.
		if n := len(doc.Args); n > 0 {
			last := &doc.Args[n-1]
			if last.Description == "" {
				last.Description = trimmed
			} else {
				last.Description += " " + trimmed
			}
		}
	}

	return doc
}
