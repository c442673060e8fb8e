package database

import "encoding/json"

// Source is one configured external source of articles.
type Source struct {
	ID             int64
	Name           string
	Provider       string
	HomepageURL    *string
	RSSURL         *string
	SitemapURL     *string
	Adapter        *string
	FetchMode      *string
	Allowed        bool
	Priority       int
	Category       *string
	ScrapeSelector *string
	PageBudget     int
	LookbackDays   int
	LastFetchedAt  *string
	LastError      *string
	CreatedAt      *string
}

// Article is a persisted, deduplicated article.
type Article struct {
	ID           int64
	SourceID     int64
	Provider     string
	Fingerprint  string
	URL          string
	Domain       string
	Title        string
	CleanTitle   string
	Slug         *string
	Description  *string
	ImageURL     *string
	Sport        string
	Topics       []string
	Players      []string
	PublishedAt  *string
	DiscoveredAt *string
	IsStatic     bool
	CanonicalOf  *int64
}

// Player is reference roster data used for name resolution.
type Player struct {
	ID       int64
	Key      string
	Name     string
	Position *string
	Team     *string
	Aliases  []string
	Active   bool
}

// Job statuses. pending and running are live; succeeded and failed are terminal.
const (
	JobPending   = "pending"
	JobRunning   = "running"
	JobSucceeded = "succeeded"
	JobFailed    = "failed"
)

// Job is one tracked asynchronous run of the ingestion orchestrator.
type Job struct {
	ID         string
	Type       string
	Status     string
	Params     *string
	Message    *string
	Error      *string
	Progress   int
	CreatedAt  *string
	StartedAt  *string
	FinishedAt *string
}

// Terminal reports whether the job has reached a final status.
func (j *Job) Terminal() bool {
	return j.Status == JobSucceeded || j.Status == JobFailed
}

// Event is one append-only progress entry attached to a job.
type Event struct {
	JobID     string
	Seq       int64
	Level     string
	Message   string
	Meta      *string
	CreatedAt *string
}

// Stats contains aggregate database statistics.
type Stats struct {
	TotalSources    int
	AllowedSources  int
	TotalArticles   int
	TaggedArticles  int
	TotalPlayers    int
	JobsByStatus    map[string]int
}

func encodeStrings(s []string) string {
	if len(s) == 0 {
		return "[]"
	}
	b, err := json.Marshal(s)
	if err != nil {
		return "[]"
	}
	return string(b)
}

func decodeStrings(s *string) []string {
	if s == nil || *s == "" {
		return nil
	}
	var out []string
	if err := json.Unmarshal([]byte(*s), &out); err != nil {
		return nil
	}
	return out
}
