package llm

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/Subho98799/nagar/internal/clock"
	"github.com/Subho98799/nagar/internal/models"
)

// DefaultTimeout bounds a whole enrichment call, fallbacks included.
const DefaultTimeout = 5 * time.Second

// Interpreter is satisfied by MultiProviderClient.
type Interpreter interface {
	Interpret(ctx context.Context, description, city, locality string) (*models.Interpretation, Provider, error)
}

// Enricher turns a report into advisory annotations under a hard deadline.
type Enricher struct {
	interpreter Interpreter
	timeout     time.Duration
	clock       clock.Clock
	logger      *zap.Logger
}

func NewEnricher(interpreter Interpreter, timeout time.Duration, clk clock.Clock, logger *zap.Logger) *Enricher {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Enricher{interpreter: interpreter, timeout: timeout, clock: clk, logger: logger}
}

// Enrich returns annotations for r. Panics in a provider are turned into errors.
func (e *Enricher) Enrich(ctx context.Context, r *models.Report) (map[string]any, error) {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	type answer struct {
		interp   *models.Interpretation
		provider Provider
		err      error
	}
	done := make(chan answer, 1)
	go func() {
		defer func() {
			if p := recover(); p != nil {
				done <- answer{err: fmt.Errorf("enrichment panicked: %v", p)}
			}
		}()
		interp, provider, err := e.interpreter.Interpret(ctx, r.Description, r.City, r.Locality)
		done <- answer{interp, provider, err}
	}()

	var a answer
	select {
	case a = <-done:
	case <-ctx.Done():
		a.err = ctx.Err()
	}
	if a.err != nil {
		if errors.Is(a.err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("enrichment timed out after %s", e.timeout)
		}
		return nil, a.err
	}

	annotations := a.interp.Annotations()
	if a.provider != nil {
		annotations[models.AnnotationProvider] = a.provider.Name()
		annotations[models.AnnotationModel] = a.provider.Model()
	}
	annotations[models.AnnotationEnrichedAt] = e.clock.Now().Format(time.RFC3339)

	e.logger.Debug("Report enriched",
		zap.String("report_id", r.ID),
		zap.String("category", a.interp.Category))
	return annotations, nil
}
