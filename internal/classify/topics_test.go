package classify

import (
	"slices"
	"testing"
)

func TestTopicsFromTitle(t *testing.T) {
	tests := []struct {
		title string
		want  []string
	}{
		{"Week 10 Waiver Wire Pickups", []string{TopicWaiverWire}},
		{"Start 'Em, Sit 'Em: Week 8 Quarterbacks", []string{TopicStartSit}},
		{"Justin Jefferson questionable with hamstring injury", []string{TopicInjury}},
		{"DraftKings GPP Picks for Sunday", []string{TopicDFS}},
		{"Rest of Season Rankings: Running Backs", []string{TopicRankings}},
		{"Trade Targets and Buy Low Candidates", []string{TopicAdvice}},
		{"Vikings beat Packers in overtime", nil},
	}

	for _, tt := range tests {
		got := Topics(tt.title, "", "")
		if !slices.Equal(got, tt.want) {
			t.Errorf("Topics(%q) = %v, want %v", tt.title, got, tt.want)
		}
	}
}

func TestTopicsFromURLPath(t *testing.T) {
	got := Topics("Week 10 notes", "/nfl/waiver-wire/week-10", "")
	if !slices.Contains(got, TopicWaiverWire) {
		t.Errorf("expected waiver-wire from URL path, got %v", got)
	}
}

func TestTopicsMultipleTags(t *testing.T) {
	got := Topics("Injury Report: Updated Week 9 Rankings", "", "")
	if !slices.Contains(got, TopicInjury) || !slices.Contains(got, TopicRankings) {
		t.Errorf("expected both injury and rankings, got %v", got)
	}
}

func TestTopicsCategoryHint(t *testing.T) {
	got := Topics("Five players to watch", "", "dfs")
	if !slices.Contains(got, TopicDFS) {
		t.Errorf("expected dfs from category hint, got %v", got)
	}

	// "news" is residual and never tagged explicitly, hinted or not.
	got = Topics("Five players to watch", "", "news")
	if len(got) != 0 {
		t.Errorf("expected no tags for news hint, got %v", got)
	}

	// Unknown hints are ignored.
	got = Topics("Five players to watch", "", "opinion")
	if len(got) != 0 {
		t.Errorf("expected no tags for unknown hint, got %v", got)
	}
}
