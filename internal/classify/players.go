package classify

import (
	"regexp"
	"strings"
)

// Player is the read-only roster entry the resolver matches against. It
// mirrors the external roster collaborator's shape so this package stays
// independent of the persistence layer.
type Player struct {
	Key      string
	Name     string
	Position string
	Aliases  []string
}

// Resolver resolves extracted name spans to canonical player keys using a
// three-tier matcher. Each tier runs only when the prior tier found nothing:
// exact full-name match, then first/last-token pattern match allowing
// interior middle names, then case-insensitive alias lookup.
type Resolver struct {
	players []Player
}

// NewResolver builds a resolver over the given roster.
func NewResolver(players []Player) *Resolver {
	return &Resolver{players: players}
}

// Resolve maps a name span to a canonical player key. Returns ok=false when
// no tier matches or the name has fewer than two tokens. The position hint is
// advisory: a hinted tier that fails is retried unconstrained before moving
// to the next tier.
func (r *Resolver) Resolve(span NameSpan) (string, bool) {
	tokens := strings.Fields(span.Name)
	if len(tokens) < 2 {
		return "", false
	}
	first := strings.ToLower(tokens[0])
	last := strings.ToLower(tokens[len(tokens)-1])

	if key, ok := r.exactMatch(span.Name, span.PositionHint); ok {
		return key, true
	}
	if key, ok := r.patternMatch(first, last, span.PositionHint); ok {
		return key, true
	}
	return r.aliasMatch(span.Name)
}

// ResolveAll resolves every span and returns the unique canonical keys.
func (r *Resolver) ResolveAll(spans []NameSpan) []string {
	var keys []string
	seen := make(map[string]struct{})
	for _, span := range spans {
		key, ok := r.Resolve(span)
		if !ok {
			continue
		}
		if _, dup := seen[key]; !dup {
			seen[key] = struct{}{}
			keys = append(keys, key)
		}
	}
	return keys
}

// exactMatch is tier one: the span equals a player's full name. Tried with
// the position constraint first, then without.
func (r *Resolver) exactMatch(name, hint string) (string, bool) {
	match := func(constrained bool) (string, bool) {
		for _, p := range r.players {
			if constrained && !strings.EqualFold(p.Position, hint) {
				continue
			}
			if strings.EqualFold(p.Name, name) {
				return p.Key, true
			}
		}
		return "", false
	}

	if hint != "" {
		if key, ok := match(true); ok {
			return key, true
		}
	}
	return match(false)
}

// patternMatch is tier two: same first and last tokens with any interior
// middle names allowed, e.g. span "Odell Beckham" against roster name
// "Odell Beckham Jr." or "Robert Griffin III".
func (r *Resolver) patternMatch(first, last, hint string) (string, bool) {
	pattern, err := regexp.Compile(`(?i)^` + regexp.QuoteMeta(first) + `(?: \S+)* ` + regexp.QuoteMeta(last) + `(?: \S+)*$`)
	if err != nil {
		return "", false
	}

	match := func(constrained bool) (string, bool) {
		for _, p := range r.players {
			if constrained && !strings.EqualFold(p.Position, hint) {
				continue
			}
			if pattern.MatchString(p.Name) {
				return p.Key, true
			}
		}
		return "", false
	}

	if hint != "" {
		if key, ok := match(true); ok {
			return key, true
		}
	}
	return match(false)
}

// aliasMatch is tier three: case-insensitive lookup against each player's
// known alternate names. Aliases are already canonical, so no position
// constraint applies.
func (r *Resolver) aliasMatch(name string) (string, bool) {
	for _, p := range r.players {
		for _, alias := range p.Aliases {
			if strings.EqualFold(alias, name) {
				return p.Key, true
			}
		}
	}
	return "", false
}
