package classify

import (
	"regexp"
	"strings"
)

// NameSpan is a name-like span extracted from free text, with an optional
// position hint picked up from adjacent notation like "WR Justin Jefferson"
// or "Justin Jefferson (WR)".
type NameSpan struct {
	Name         string
	PositionHint string
}

var positions = map[string]struct{}{
	"QB": {}, "RB": {}, "WR": {}, "TE": {}, "K": {}, "DST": {}, "DEF": {},
}

// nameSpan matches two or three consecutive capitalized tokens, allowing
// apostrophes, periods, and hyphens inside tokens (D'Andre, St. Brown,
// Ja'Marr, Amon-Ra).
var nameSpan = regexp.MustCompile(`\b[A-Z][a-zA-Z'.\-]+(?: [A-Z][a-zA-Z'.\-]+){1,2}\b`)

// leading tokens that start headlines but never start a player name.
var nameStopwords = map[string]struct{}{
	"The": {}, "Week": {}, "Fantasy": {}, "Football": {}, "Top": {}, "Best": {},
	"Start": {}, "Sit": {}, "Waiver": {}, "Wire": {}, "Injury": {}, "Report": {},
	"Monday": {}, "Tuesday": {}, "Wednesday": {}, "Thursday": {}, "Friday": {},
	"Saturday": {}, "Sunday": {}, "Night": {}, "Draft": {}, "Trade": {},
	"Rankings": {}, "Sleepers": {}, "Busts": {}, "New": {}, "Los": {},
}

// ExtractNames pulls name-like spans with optional position hints from free
// text. Spans that reduce to fewer than two tokens after stopword trimming
// are discarded as unresolvable.
func ExtractNames(text string) []NameSpan {
	var spans []NameSpan
	seen := make(map[string]struct{})

	for _, loc := range nameSpan.FindAllStringIndex(text, -1) {
		raw := text[loc[0]:loc[1]]
		tokens := strings.Fields(raw)

		// Trim stopwords and position tokens from both ends. A trimmed
		// position token ("WR Justin Jefferson") becomes the hint.
		hint := ""
		for len(tokens) > 0 && isNameStop(tokens[0]) {
			if p := canonicalPosition(tokens[0]); p != "" {
				hint = p
			}
			tokens = tokens[1:]
		}
		for len(tokens) > 0 && isNameStop(tokens[len(tokens)-1]) {
			if p := canonicalPosition(tokens[len(tokens)-1]); p != "" {
				hint = p
			}
			tokens = tokens[:len(tokens)-1]
		}
		if len(tokens) < 2 {
			continue
		}

		if hint == "" {
			hint = positionHint(text, loc[0], loc[1])
		}

		name := strings.Join(tokens, " ")
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}

		spans = append(spans, NameSpan{Name: name, PositionHint: hint})
	}

	return spans
}

func isNameStop(token string) bool {
	if _, stop := nameStopwords[token]; stop {
		return true
	}
	_, pos := positions[strings.TrimRight(token, ".,:;")]
	return pos
}

// positionHint looks for a position token immediately before the span or in
// parentheses immediately after it.
func positionHint(text string, start, end int) string {
	before := strings.Fields(text[:start])
	if len(before) > 0 {
		if p := canonicalPosition(before[len(before)-1]); p != "" {
			return p
		}
	}

	rest := strings.TrimSpace(text[end:])
	if strings.HasPrefix(rest, "(") {
		if close := strings.IndexByte(rest, ')'); close > 1 {
			inner := rest[1:close]
			// Allow "WR" and "WR, MIN" style annotations.
			if comma := strings.IndexByte(inner, ','); comma > 0 {
				inner = inner[:comma]
			}
			if p := canonicalPosition(inner); p != "" {
				return p
			}
		}
	}
	return ""
}

func canonicalPosition(token string) string {
	token = strings.ToUpper(strings.Trim(token, " .,:;"))
	if _, ok := positions[token]; ok {
		return token
	}
	return ""
}
