package classify

import (
	"slices"
	"testing"
)

func testRoster() []Player {
	return []Player{
		{Key: "justin-jefferson", Name: "Justin Jefferson", Position: "WR"},
		{Key: "justin-fields", Name: "Justin Fields", Position: "QB"},
		{Key: "odell-beckham-jr", Name: "Odell Beckham Jr.", Position: "WR"},
		{Key: "amon-ra-st-brown", Name: "Amon-Ra St. Brown", Position: "WR"},
		{Key: "jacob-browning", Name: "Jacob Browning", Position: "QB", Aliases: []string{"Jake Browning"}},
		{Key: "kenneth-walker", Name: "Kenneth Walker III", Position: "RB", Aliases: []string{"Ken Walker"}},
	}
}

func TestResolveExactTier(t *testing.T) {
	r := NewResolver(testRoster())
	key, ok := r.Resolve(NameSpan{Name: "Justin Jefferson"})
	if !ok || key != "justin-jefferson" {
		t.Errorf("expected justin-jefferson, got %q ok=%v", key, ok)
	}
}

func TestResolveExactTierPositionHint(t *testing.T) {
	r := NewResolver(testRoster())
	key, ok := r.Resolve(NameSpan{Name: "Justin Fields", PositionHint: "QB"})
	if !ok || key != "justin-fields" {
		t.Errorf("expected justin-fields, got %q ok=%v", key, ok)
	}
}

func TestResolveHintedMissRetriesUnconstrained(t *testing.T) {
	r := NewResolver(testRoster())
	// Wrong hint must not prevent resolution: the hint is advisory.
	key, ok := r.Resolve(NameSpan{Name: "Justin Jefferson", PositionHint: "RB"})
	if !ok || key != "justin-jefferson" {
		t.Errorf("expected justin-jefferson despite wrong hint, got %q ok=%v", key, ok)
	}
}

func TestResolvePatternTier(t *testing.T) {
	r := NewResolver(testRoster())
	key, ok := r.Resolve(NameSpan{Name: "Odell Beckham"})
	if !ok || key != "odell-beckham-jr" {
		t.Errorf("expected odell-beckham-jr via pattern tier, got %q ok=%v", key, ok)
	}

	key, ok = r.Resolve(NameSpan{Name: "Kenneth Walker"})
	if !ok || key != "kenneth-walker" {
		t.Errorf("expected kenneth-walker via pattern tier, got %q ok=%v", key, ok)
	}
}

func TestResolveAliasTier(t *testing.T) {
	r := NewResolver(testRoster())
	key, ok := r.Resolve(NameSpan{Name: "Jake Browning"})
	if !ok || key != "jacob-browning" {
		t.Errorf("expected jacob-browning via alias tier, got %q ok=%v", key, ok)
	}
}

func TestResolveNoMatch(t *testing.T) {
	r := NewResolver(testRoster())
	if key, ok := r.Resolve(NameSpan{Name: "Taylor Swift"}); ok {
		t.Errorf("expected no match, got %q", key)
	}
}

func TestResolveSingleTokenDiscarded(t *testing.T) {
	r := NewResolver(testRoster())
	if _, ok := r.Resolve(NameSpan{Name: "Jefferson"}); ok {
		t.Error("expected single-token name to be discarded")
	}
}

func TestResolveAll(t *testing.T) {
	r := NewResolver(testRoster())
	spans := []NameSpan{
		{Name: "Justin Jefferson"},
		{Name: "Jake Browning"},
		{Name: "Justin Jefferson"}, // duplicate
		{Name: "Nobody Special"},
	}
	keys := r.ResolveAll(spans)
	want := []string{"justin-jefferson", "jacob-browning"}
	if !slices.Equal(keys, want) {
		t.Errorf("expected %v, got %v", want, keys)
	}
}

func TestExtractNames(t *testing.T) {
	spans := ExtractNames("WR Justin Jefferson questionable; Jake Browning to start for Cincinnati Bengals")
	byName := make(map[string]NameSpan)
	for _, s := range spans {
		byName[s.Name] = s
	}

	jj, ok := byName["Justin Jefferson"]
	if !ok {
		t.Fatalf("expected Justin Jefferson span, got %v", spans)
	}
	if jj.PositionHint != "WR" {
		t.Errorf("expected WR hint, got %q", jj.PositionHint)
	}

	if _, ok := byName["Jake Browning"]; !ok {
		t.Errorf("expected Jake Browning span, got %v", spans)
	}
}

func TestExtractNamesParenHint(t *testing.T) {
	spans := ExtractNames("Fantasy outlook for Justin Jefferson (WR, MIN) this week")
	for _, s := range spans {
		if s.Name == "Justin Jefferson" {
			if s.PositionHint != "WR" {
				t.Errorf("expected WR hint from parens, got %q", s.PositionHint)
			}
			return
		}
	}
	t.Fatalf("expected Justin Jefferson span, got %v", spans)
}
