package cell

import (
	"strings"

	"starquery/internal/domain"
)

// Cut text syntax:
//
//	[!]dimension[@hierarchy]:path          point
//	[!]dimension[@hierarchy]:path-path     range, either side may be empty
//	[!]dimension[@hierarchy]:path;path;... set
//
// Path elements are separated by commas and cuts by '|'. A backslash escapes
// the next character.
const (
	invertMark = '!'
	hierSep    = '@'
	dimSep     = ':'
	pathSep    = ','
	rangeSep   = '-'
	setSep     = ';'
	cutSep     = '|'
	escapeChar = '\\'
)

// ParseCuts parses a '|' separated list of cuts.
func ParseCuts(text string) ([]Cut, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, nil
	}
	var cuts []Cut
	for _, part := range splitUnescaped(text, cutSep) {
		c, err := ParseCut(part)
		if err != nil {
			return nil, err
		}
		cuts = append(cuts, c)
	}
	return cuts, nil
}

// ParseCut parses a single cut.
func ParseCut(text string) (Cut, error) {
	text = strings.TrimSpace(text)
	var target Target
	if strings.HasPrefix(text, string(invertMark)) {
		target.Invert = true
		text = text[1:]
	}

	head, spec, ok := cutUnescaped(text, dimSep)
	if !ok {
		return nil, domain.ErrArgument("cut %q: expected dimension:path", text)
	}
	dim, hier, _ := cutUnescaped(head, hierSep)
	target.Dimension = unescape(strings.TrimSpace(dim))
	target.Hierarchy = unescape(strings.TrimSpace(hier))
	if target.Dimension == "" {
		return nil, domain.ErrArgument("cut %q: dimension name is empty", text)
	}

	if parts := splitUnescaped(spec, setSep); len(parts) > 1 {
		set := &SetCut{Target: target}
		for _, p := range parts {
			set.Paths = append(set.Paths, parsePath(p))
		}
		return set, nil
	}
	if from, to, ok := cutUnescaped(spec, rangeSep); ok {
		if from == "" && to == "" {
			return nil, domain.ErrArgument("cut %q: range needs at least one bound", text)
		}
		return &RangeCut{Target: target, From: parsePath(from), To: parsePath(to)}, nil
	}
	return &PointCut{Target: target, Path: parsePath(spec)}, nil
}

// FormatCuts renders cuts in text syntax, the inverse of ParseCuts.
func FormatCuts(cuts []Cut) string {
	parts := make([]string, len(cuts))
	for i, c := range cuts {
		parts[i] = c.String()
	}
	return strings.Join(parts, string(cutSep))
}

func parsePath(text string) Path {
	if text == "" {
		return nil
	}
	elems := splitUnescaped(text, pathSep)
	path := make(Path, len(elems))
	for i, e := range elems {
		path[i] = unescape(e)
	}
	return path
}

// splitUnescaped splits text at every sep not preceded by the escape
// character. Escapes are kept in the parts.
func splitUnescaped(text string, sep byte) []string {
	var parts []string
	start := 0
	for i := 0; i < len(text); i++ {
		switch text[i] {
		case escapeChar:
			i++
		case sep:
			parts = append(parts, text[start:i])
			start = i + 1
		}
	}
	return append(parts, text[start:])
}

// cutUnescaped splits text around the first unescaped sep.
func cutUnescaped(text string, sep byte) (before, after string, found bool) {
	for i := 0; i < len(text); i++ {
		switch text[i] {
		case escapeChar:
			i++
		case sep:
			return text[:i], text[i+1:], true
		}
	}
	return text, "", false
}

func unescape(text string) string {
	if !strings.ContainsRune(text, escapeChar) {
		return text
	}
	var b strings.Builder
	for i := 0; i < len(text); i++ {
		if text[i] == escapeChar && i+1 < len(text) {
			i++
		}
		b.WriteByte(text[i])
	}
	return b.String()
}

func escape(text string) string {
	if !strings.ContainsAny(text, `!@:,-;|\`) {
		return text
	}
	var b strings.Builder
	for i := 0; i < len(text); i++ {
		switch text[i] {
		case invertMark, hierSep, dimSep, pathSep, rangeSep, setSep, cutSep, escapeChar:
			b.WriteByte(escapeChar)
		}
		b.WriteByte(text[i])
	}
	return b.String()
}
