package pipeline

import (
	"regexp"
	"strings"
)

var (
	markdownLinkRe = regexp.MustCompile(`^\[[^\]]*\]\([^\s)]+\)$`)
	bareURLRe      = regexp.MustCompile(`^https?://\S+$`)
	sourcesLineRe  = regexp.MustCompile(`(?i)^(sources|references):\s*`)
)

// StripTrailingCitations removes citation clutter from the end of
// generated text: a trailing parenthetical group containing only links,
// or a trailing "Sources:"/"References:" line of links. Mid-text links
// and ordinary parentheticals are untouched. Applying the function to
// its own output changes nothing.
func StripTrailingCitations(text string) (string, bool) {
	out := text
	for {
		next := stripOnce(out)
		if next == out {
			break
		}
		out = next
	}
	return out, out != text
}

func stripOnce(text string) string {
	trimmed := strings.TrimRight(text, " \t\r\n")
	if trimmed == "" {
		return text
	}

	// A trailing "(...)" whose contents are only comma-separated links.
	if strings.HasSuffix(trimmed, ")") {
		if open := matchingOpen(trimmed); open >= 0 {
			inner := trimmed[open+1 : len(trimmed)-1]
			if isLinkList(inner, ",") {
				return strings.TrimRight(trimmed[:open], " \t\r\n")
			}
		}
	}

	// A trailing "Sources:" or "References:" line of links separated by
	// commas, middle dots, or pipes.
	line := trimmed
	lineStart := 0
	if idx := strings.LastIndexByte(trimmed, '\n'); idx >= 0 {
		line = trimmed[idx+1:]
		lineStart = idx
	}
	line = strings.TrimSpace(line)
	if loc := sourcesLineRe.FindStringIndex(line); loc != nil {
		rest := line[loc[1]:]
		if rest != "" && isLinkList(rest, ",·|") {
			return strings.TrimRight(trimmed[:lineStart], " \t\r\n")
		}
	}

	return text
}

// matchingOpen returns the index of the "(" that balances the final ")",
// or -1. Scanning backwards keeps markdown link URLs, which close their
// own parens, inside the group.
func matchingOpen(s string) int {
	depth := 0
	for i := len(s) - 1; i >= 0; i-- {
		switch s[i] {
		case ')':
			depth++
		case '(':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

func isLink(s string) bool {
	return markdownLinkRe.MatchString(s) || bareURLRe.MatchString(s)
}

// isLinkList reports whether s is one or more links separated by the
// given separator runes, tolerating stray separators and whitespace.
func isLinkList(s string, seps string) bool {
	parts := strings.FieldsFunc(s, func(r rune) bool {
		return strings.ContainsRune(seps, r)
	})
	saw := false
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if !isLink(p) {
			return false
		}
		saw = true
	}
	return saw
}
