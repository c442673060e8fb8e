// Package classify assigns topic tags to articles and resolves mentioned
// player names against roster reference data. Both passes are advisory:
// failures yield empty sets, never errors that could stall ingestion.
package classify

import "strings"

// Topic tags form a fixed vocabulary. "news" is the residual bucket: an
// article with no other section tag is implicitly news-eligible, so the rules
// below never need to emit it.
const (
	TopicRankings   = "rankings"
	TopicStartSit   = "start-sit"
	TopicAdvice     = "advice"
	TopicDFS        = "dfs"
	TopicWaiverWire = "waiver-wire"
	TopicInjury     = "injury"
	TopicNews       = "news"
)

// topicRules maps each tag to the keywords that trigger it. Matched against
// the lowercased title and URL path.
var topicRules = []struct {
	tag      string
	keywords []string
}{
	{TopicStartSit, []string{"start-sit", "start/sit", "start or sit", "start 'em", "sit 'em", "start em", "sit em", "who to start"}},
	{TopicWaiverWire, []string{"waiver", "waiver-wire", "pickups", "free agent finds", "streamers", "adds and drops"}},
	{TopicInjury, []string{"injury", "injured", "questionable", "doubtful", "ruled out", "placed on ir", "hamstring", "concussion", "acl", "designation"}},
	{TopicDFS, []string{"dfs", "daily fantasy", "draftkings", "fanduel", "gpp", "cash game", "showdown"}},
	{TopicRankings, []string{"rankings", "ranking", "tiers", "big board", "top 200"}},
	{TopicAdvice, []string{"advice", "strategy", "sleepers", "busts", "trade targets", "draft guide", "buy low", "sell high"}},
}

// validTags is the closed set accepted from category hints.
var validTags = map[string]struct{}{
	TopicRankings:   {},
	TopicStartSit:   {},
	TopicAdvice:     {},
	TopicDFS:        {},
	TopicWaiverWire: {},
	TopicInjury:     {},
	TopicNews:       {},
}

// Topics assigns zero or more tags from the fixed vocabulary using keyword
// rules over the title, the URL path, and an optional source category hint.
func Topics(title, urlPath, categoryHint string) []string {
	haystack := strings.ToLower(title) + " " + normalizePath(urlPath)

	var tags []string
	seen := make(map[string]struct{})
	add := func(tag string) {
		if _, ok := seen[tag]; !ok {
			seen[tag] = struct{}{}
			tags = append(tags, tag)
		}
	}

	for _, rule := range topicRules {
		for _, kw := range rule.keywords {
			if strings.Contains(haystack, kw) {
				add(rule.tag)
				break
			}
		}
	}

	hint := strings.ToLower(strings.TrimSpace(categoryHint))
	if _, ok := validTags[hint]; ok && hint != TopicNews {
		add(hint)
	}

	return tags
}

// normalizePath turns URL path separators into spaces so path segments like
// /waiver-wire/week-10/ match the same keywords titles do.
func normalizePath(p string) string {
	p = strings.ToLower(p)
	return strings.ReplaceAll(p, "/", " ")
}
