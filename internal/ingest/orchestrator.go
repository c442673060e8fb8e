// Package ingest drives the adapter -> dedup -> classify -> persist pipeline
// across one or many sources and records progress on a job.
package ingest

import (
	"context"
	"fmt"
	"net/url"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/gridwire/gridwire/internal/adapter"
	"github.com/gridwire/gridwire/internal/classify"
	"github.com/gridwire/gridwire/internal/config"
	"github.com/gridwire/gridwire/internal/database"
	"github.com/gridwire/gridwire/internal/fingerprint"
	"github.com/gridwire/gridwire/internal/httpx"
)

// Counts summarizes per-source ingestion outcomes.
type Counts struct {
	Inserted int `json:"inserted"`
	Updated  int `json:"updated"`
	Skipped  int `json:"skipped"`
	Failed   int `json:"failed"`
}

func (c *Counts) add(other Counts) {
	c.Inserted += other.Inserted
	c.Updated += other.Updated
	c.Skipped += other.Skipped
	c.Failed += other.Failed
}

// SourceResult is the outcome of ingesting one source within a batch.
type SourceResult struct {
	SourceID int64  `json:"source_id"`
	Name     string `json:"name"`
	Counts   Counts `json:"counts"`
	Err      error  `json:"-"`
}

// BatchResult aggregates per-source results of a multi-source run.
type BatchResult struct {
	Sources []SourceResult `json:"sources"`
	Totals  Counts         `json:"totals"`
}

// Orchestrator runs ingestion for sources. Sources in a batch are processed
// by a bounded worker pool; within one source the steps run strictly in
// sequence so dedup decisions always see what was just written.
type Orchestrator struct {
	db          *database.DB
	client      *httpx.Client
	log         *zap.SugaredLogger
	concurrency int
}

// New creates an orchestrator.
func New(cfg *config.Config, db *database.DB, client *httpx.Client, log *zap.SugaredLogger) *Orchestrator {
	concurrency := cfg.Ingest.Concurrency
	if concurrency < 1 {
		concurrency = 1
	}
	return &Orchestrator{db: db, client: client, log: log, concurrency: concurrency}
}

// IngestOne ingests a single source outside any job.
func (o *Orchestrator) IngestOne(ctx context.Context, sourceID int64, limit int) (Counts, error) {
	return o.ingestSource(ctx, sourceID, limit, noopRecorder())
}

// IngestAllowed ingests every source with allowed=true.
func (o *Orchestrator) IngestAllowed(ctx context.Context, limit int) (*BatchResult, error) {
	return o.ingestBatch(ctx, limit, true, noopRecorder())
}

// IngestAll ingests every source regardless of eligibility.
func (o *Orchestrator) IngestAll(ctx context.Context, limit int) (*BatchResult, error) {
	return o.ingestBatch(ctx, limit, false, noopRecorder())
}

func (o *Orchestrator) ingestBatch(ctx context.Context, limit int, allowedOnly bool, rec *recorder) (*BatchResult, error) {
	sources, err := o.db.GetSources(allowedOnly)
	if err != nil {
		return nil, fmt.Errorf("listing sources: %w", err)
	}

	result := &BatchResult{}
	if len(sources) == 0 {
		rec.event(levelWarn, "no sources to ingest", nil)
		return result, nil
	}

	rec.event(levelInfo, fmt.Sprintf("ingesting %d sources", len(sources)), map[string]any{
		"sources":     len(sources),
		"concurrency": o.concurrency,
	})

	workers := o.concurrency
	if workers > len(sources) {
		workers = len(sources)
	}

	jobCh := make(chan database.Source)
	results := make([]SourceResult, len(sources))
	indexOf := make(map[int64]int, len(sources))
	for i, s := range sources {
		indexOf[s.ID] = i
	}

	var wg sync.WaitGroup
	var mu sync.Mutex
	processed := 0

	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for src := range jobCh {
				counts, err := o.ingestSource(ctx, src.ID, limit, rec)

				mu.Lock()
				results[indexOf[src.ID]] = SourceResult{SourceID: src.ID, Name: src.Name, Counts: counts, Err: err}
				processed++
				done := processed
				mu.Unlock()

				rec.progress(done)
				rec.message(fmt.Sprintf("%d/%d sources processed", done, len(sources)))
			}
		}()
	}

	for _, src := range sources {
		if ctx.Err() != nil {
			break
		}
		jobCh <- src
	}
	close(jobCh)
	wg.Wait()

	for _, r := range results {
		result.Sources = append(result.Sources, r)
		result.Totals.add(r.Counts)
	}
	return result, nil
}

// ingestSource runs the full pipeline for one source. Internal steps are
// strictly sequential. Adapter and parse failures are contained here: the
// source is marked failed and the error returned for per-source accounting,
// never propagated in a way that could abort sibling sources.
func (o *Orchestrator) ingestSource(ctx context.Context, sourceID int64, limit int, rec *recorder) (Counts, error) {
	var counts Counts

	src, err := o.db.GetSource(sourceID)
	if err != nil {
		return counts, fmt.Errorf("loading source %d: %w", sourceID, err)
	}
	if src == nil {
		return counts, fmt.Errorf("source %d not found", sourceID)
	}

	rec.event(levelInfo, fmt.Sprintf("source %s started", src.Name), map[string]any{"source_id": src.ID})

	a, err := adapter.Select(*src, o.client, o.log)
	if err != nil {
		o.recordSourceFailure(rec, src, err)
		counts.Failed++
		return counts, err
	}

	candidates, err := a.ListIndex(ctx, src.PageBudget)
	if err != nil {
		o.recordSourceFailure(rec, src, err)
		counts.Failed++
		return counts, err
	}

	rec.event(levelInfo, fmt.Sprintf("source %s: %d candidates fetched", src.Name, len(candidates)), map[string]any{
		"source_id":  src.ID,
		"candidates": len(candidates),
	})

	if limit > 0 && len(candidates) > limit {
		candidates = candidates[:limit]
	}

	resolver, err := o.loadResolver()
	if err != nil {
		// Classification is advisory; a missing roster degrades to
		// unclassified articles rather than failing the source.
		o.log.Warnw("loading roster failed, skipping player resolution", "error", err)
		resolver = classify.NewResolver(nil)
	}

	for _, candidate := range candidates {
		outcome, err := o.processCandidate(ctx, a, *src, candidate, resolver)
		if err != nil {
			// Persistence errors abort this source; the batch continues.
			counts.Failed++
			o.recordSourceFailure(rec, src, err)
			return counts, err
		}
		switch outcome {
		case outcomeInserted:
			counts.Inserted++
		case outcomeUpdated:
			counts.Updated++
		case outcomeSkipped:
			counts.Skipped++
		}
	}

	if err := o.db.MarkSourceFetched(src.ID); err != nil {
		o.log.Warnw("marking source fetched failed", "source", src.Name, "error", err)
	}

	rec.event(levelInfo, fmt.Sprintf("source %s done: %d inserted, %d updated, %d skipped",
		src.Name, counts.Inserted, counts.Updated, counts.Skipped), map[string]any{
		"source_id": src.ID,
		"inserted":  counts.Inserted,
		"updated":   counts.Updated,
		"skipped":   counts.Skipped,
	})

	return counts, nil
}

type outcome int

const (
	outcomeInserted outcome = iota
	outcomeUpdated
	outcomeSkipped
)

// processCandidate applies dedup, classification, and persistence to one
// candidate. Only persistence errors are returned; enrichment and
// classification degrade silently.
func (o *Orchestrator) processCandidate(ctx context.Context, a adapter.Adapter, src database.Source, c adapter.Candidate, resolver *classify.Resolver) (outcome, error) {
	cleanTitle := fingerprint.CleanTitle(c.Title)
	fp := fingerprint.Compute(c.URL, cleanTitle)

	decision, err := o.decide(src.ID, fp)
	if err != nil {
		return 0, err
	}

	topics, players := o.classifyCandidate(src, c, cleanTitle, resolver)

	switch decision.action {
	case actionUpdate:
		var imageURL, publishedAt *string
		if c.ImageURL != "" {
			imageURL = &c.ImageURL
		}
		if c.Published != nil {
			s := c.Published.UTC().Format(time.RFC3339)
			publishedAt = &s
		}
		if err := o.db.RefreshArticle(decision.existing.ID, c.Title, cleanTitle, imageURL, publishedAt, topics, players); err != nil {
			return 0, fmt.Errorf("refreshing article %d: %w", decision.existing.ID, err)
		}
		return outcomeUpdated, nil

	case actionDuplicate:
		id, err := o.insertArticle(ctx, a, src, c, cleanTitle, fp, topics, players)
		if err != nil {
			return 0, err
		}
		if err := o.db.MarkDuplicateOf(id, decision.canonical.ID); err != nil {
			return 0, fmt.Errorf("marking duplicate: %w", err)
		}
		// Syndicated copies may carry tags the canonical row is missing.
		if err := o.db.UnionArticleTags(decision.canonical.ID, topics, players); err != nil {
			o.log.Warnw("unioning tags into canonical failed", "article", decision.canonical.ID, "error", err)
		}
		return outcomeSkipped, nil

	default:
		if _, err := o.insertArticle(ctx, a, src, c, cleanTitle, fp, topics, players); err != nil {
			return 0, err
		}
		return outcomeInserted, nil
	}
}

// insertArticle enriches a candidate when its metadata is thin and persists
// it. Enrichment is best-effort.
func (o *Orchestrator) insertArticle(ctx context.Context, a adapter.Adapter, src database.Source, c adapter.Candidate, cleanTitle, fp string, topics, players []string) (int64, error) {
	if c.Description == "" || c.ImageURL == "" {
		if detail, err := a.FetchDetail(ctx, c.URL); err == nil {
			if c.Description == "" {
				c.Description = detail.Description
			}
			if c.ImageURL == "" {
				c.ImageURL = detail.ImageURL
			}
			if c.Published == nil {
				c.Published = detail.Published
			}
		} else {
			o.log.Debugw("detail enrichment failed", "url", c.URL, "error", err)
		}
	}

	article := database.Article{
		SourceID:    src.ID,
		Provider:    src.Provider,
		Fingerprint: fp,
		URL:         c.URL,
		Domain:      fingerprint.Domain(c.URL),
		Title:       c.Title,
		CleanTitle:  cleanTitle,
		Topics:      topics,
		Players:     players,
	}
	if slug := fingerprint.Slug(cleanTitle); slug != "" {
		article.Slug = &slug
	}
	if c.Description != "" {
		article.Description = &c.Description
	}
	if c.ImageURL != "" {
		article.ImageURL = &c.ImageURL
	}
	if c.Published != nil {
		s := c.Published.UTC().Format(time.RFC3339)
		article.PublishedAt = &s
	}

	id, err := o.db.InsertArticle(article)
	if err != nil {
		return 0, err
	}
	return id, nil
}

// classifyCandidate runs both advisory classification passes. Never fatal:
// the worst case is empty tag and player sets.
func (o *Orchestrator) classifyCandidate(src database.Source, c adapter.Candidate, cleanTitle string, resolver *classify.Resolver) (topics, players []string) {
	urlPath := ""
	if u, err := url.Parse(c.URL); err == nil {
		urlPath = u.Path
	}
	category := ""
	if src.Category != nil {
		category = *src.Category
	}

	topics = classify.Topics(cleanTitle, urlPath, category)

	spans := classify.ExtractNames(cleanTitle)
	if c.Description != "" {
		spans = append(spans, classify.ExtractNames(c.Description)...)
	}
	players = resolver.ResolveAll(spans)
	return topics, players
}

func (o *Orchestrator) loadResolver() (*classify.Resolver, error) {
	rows, err := o.db.GetActivePlayers()
	if err != nil {
		return nil, err
	}
	roster := make([]classify.Player, 0, len(rows))
	for _, p := range rows {
		entry := classify.Player{Key: p.Key, Name: p.Name, Aliases: p.Aliases}
		if p.Position != nil {
			entry.Position = *p.Position
		}
		roster = append(roster, entry)
	}
	return classify.NewResolver(roster), nil
}

func (o *Orchestrator) recordSourceFailure(rec *recorder, src *database.Source, err error) {
	o.log.Warnw("source ingestion failed", "source", src.Name, "error", err)
	rec.event(levelError, fmt.Sprintf("source %s failed: %v", src.Name, err), map[string]any{"source_id": src.ID})
	if dbErr := o.db.MarkSourceFailed(src.ID, err.Error()); dbErr != nil {
		o.log.Warnw("marking source failed failed", "source", src.Name, "error", dbErr)
	}
}

