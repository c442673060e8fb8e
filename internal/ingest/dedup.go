package ingest

import (
	"fmt"

	"github.com/gridwire/gridwire/internal/database"
)

type action int

const (
	actionInsert action = iota
	actionUpdate
	actionDuplicate
)

type decision struct {
	action    action
	existing  *database.Article // set for actionUpdate
	canonical *database.Article // set for actionDuplicate
}

// decide applies the dedup policy for a computed fingerprint, in priority
// order: a same-source match is an update; a cross-source match means the
// candidate is a syndicated duplicate of the earliest-discovered article;
// otherwise it is new. The (source, fingerprint) uniqueness constraint
// remains the final authority at insert time.
func (o *Orchestrator) decide(sourceID int64, fp string) (decision, error) {
	existing, err := o.db.GetArticleBySourceFingerprint(sourceID, fp)
	if err != nil {
		return decision{}, fmt.Errorf("looking up fingerprint: %w", err)
	}
	if existing != nil {
		return decision{action: actionUpdate, existing: existing}, nil
	}

	canonical, err := o.db.GetCanonicalByFingerprint(fp)
	if err != nil {
		return decision{}, fmt.Errorf("looking up canonical: %w", err)
	}
	if canonical != nil && canonical.SourceID != sourceID {
		return decision{action: actionDuplicate, canonical: canonical}, nil
	}

	return decision{action: actionInsert}, nil
}
