// Package gate rejects near-duplicate and over-quota submissions before a report
// is persisted. It only reads recent reports; it never writes.
package gate

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode"

	"go.uber.org/zap"

	"github.com/Subho98799/nagar/internal/clock"
	"github.com/Subho98799/nagar/internal/geo"
	"github.com/Subho98799/nagar/internal/models"
	"github.com/Subho98799/nagar/internal/repository"
)

// Config holds the gate thresholds.
type Config struct {
	DuplicateRadiusMeters float64
	DuplicateWindow       time.Duration
	OverlapThreshold      float64
	RateLimitCount        int
	RateLimitWindow       time.Duration
}

// DefaultConfig returns the stock thresholds.
func DefaultConfig() Config {
	return Config{
		DuplicateRadiusMeters: 50,
		DuplicateWindow:       15 * time.Minute,
		OverlapThreshold:      0.70,
		RateLimitCount:        5,
		RateLimitWindow:       time.Hour,
	}
}

// Candidate is a submission that has not been stored yet.
type Candidate struct {
	Description  string
	Locality     string
	Coordinates  *models.Coordinates
	IdentityHash string
}

// Gate runs the duplicate test and then the rate test.
type Gate struct {
	repo   repository.Lister
	clock  clock.Clock
	config Config
	logger *zap.Logger
}

func New(repo repository.Lister, clk clock.Clock, config Config, logger *zap.Logger) *Gate {
	return &Gate{repo: repo, clock: clk, config: config, logger: logger}
}

// Check returns nil if c may be accepted, a *models.DuplicateReportError or
// *models.RateLimitedError if it is vetoed, or a store error. Submissions without
// an identity hash cannot be attributed and pass both tests.
func (g *Gate) Check(ctx context.Context, c Candidate) error {
	if strings.TrimSpace(c.IdentityHash) == "" {
		return nil
	}
	now := g.clock.Now()

	if err := g.checkDuplicate(ctx, c, now); err != nil {
		return err
	}
	return g.checkRate(ctx, c, now)
}

func (g *Gate) checkDuplicate(ctx context.Context, c Candidate, now time.Time) error {
	recent, err := g.repo.List(ctx, repository.Filter{
		IdentityHash: c.IdentityHash,
		Locality:     c.Locality,
		CreatedFrom:  now.Add(-g.config.DuplicateWindow),
		CreatedTo:    now,
	})
	if err != nil {
		return fmt.Errorf("duplicate check: %w", err)
	}

	for _, existing := range recent {
		// The store treats an empty locality filter as "any"; a blank locality
		// only matches another blank one.
		if existing.Locality != c.Locality {
			continue
		}
		if !g.withinRadius(c.Coordinates, existing.Coordinates) {
			continue
		}
		overlap := WordOverlap(c.Description, existing.Description)
		if overlap < g.config.OverlapThreshold {
			continue
		}
		g.logger.Info("Duplicate submission rejected",
			zap.String("existing_id", existing.ID),
			zap.Float64("overlap", overlap))
		return &models.DuplicateReportError{ExistingID: existing.ID}
	}
	return nil
}

// withinRadius is true when either side lacks coordinates: the locality match
// already stands in for proximity.
func (g *Gate) withinRadius(a, b *models.Coordinates) bool {
	if a == nil || b == nil {
		return true
	}
	return geo.DistanceMeters(*a, *b) <= g.config.DuplicateRadiusMeters
}

func (g *Gate) checkRate(ctx context.Context, c Candidate, now time.Time) error {
	if g.config.RateLimitCount <= 0 {
		return nil
	}
	windowStart := now.Add(-g.config.RateLimitWindow)
	recent, err := g.repo.List(ctx, repository.Filter{
		IdentityHash: c.IdentityHash,
		CreatedFrom:  windowStart,
		CreatedTo:    now,
	})
	if err != nil {
		return fmt.Errorf("rate check: %w", err)
	}
	if len(recent) < g.config.RateLimitCount {
		return nil
	}

	// List is newest first, so the slot frees up when the oldest entry ages out.
	oldest := recent[len(recent)-1].CreatedAt
	retryAfter := oldest.Add(g.config.RateLimitWindow).Sub(now)
	if retryAfter < time.Second {
		retryAfter = time.Second
	}
	g.logger.Info("Submission rate limited",
		zap.Int("recent_reports", len(recent)),
		zap.Duration("retry_after", retryAfter))
	return &models.RateLimitedError{RetryAfter: retryAfter}
}

// WordOverlap is the Jaccard ratio of the lowercased word sets of a and b.
// Two empty descriptions have no overlap.
func WordOverlap(a, b string) float64 {
	wa, wb := words(a), words(b)
	if len(wa) == 0 || len(wb) == 0 {
		return 0
	}
	inter := 0
	for w := range wa {
		if _, ok := wb[w]; ok {
			inter++
		}
	}
	union := len(wa) + len(wb) - inter
	return float64(inter) / float64(union)
}

func words(s string) map[string]struct{} {
	fields := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
	set := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		set[f] = struct{}{}
	}
	return set
}
