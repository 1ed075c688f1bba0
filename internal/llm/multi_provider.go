package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/Subho98799/nagar/internal/gemini"
	"github.com/Subho98799/nagar/internal/models"
)

// ProviderType represents the type of enrichment provider
type ProviderType string

const (
	ProviderGemini  ProviderType = "gemini"
	ProviderKeyword ProviderType = "keyword"
)

// ProviderConfig holds configuration for a single provider instance
type ProviderConfig struct {
	Type       ProviderType  `yaml:"type"`
	APIKey     string        `yaml:"api_key"`
	ModelName  string        `yaml:"model_name"`
	MaxRetries int           `yaml:"max_retries"`
	RetryDelay time.Duration `yaml:"retry_delay"`
	// Rate limiting per provider
	RequestsPerMinute int `yaml:"requests_per_minute"`
}

// Provider interface for any interpretation backend
type Provider interface {
	Interpret(ctx context.Context, description, city, locality string) (*models.Interpretation, error)
	Name() string
	Model() string
	Close() error
}

// RateLimitedProvider wraps a provider with rate limiting
type RateLimitedProvider struct {
	provider Provider
	limiter  *RateLimiter
}

// RateLimiter implements token bucket rate limiting
type RateLimiter struct {
	mu         sync.Mutex
	tokens     int
	maxTokens  int
	refillRate time.Duration
	lastRefill time.Time
}

// NewRateLimiter creates a new rate limiter
func NewRateLimiter(requestsPerMinute int) *RateLimiter {
	if requestsPerMinute <= 0 {
		requestsPerMinute = 1
	}
	return &RateLimiter{
		tokens:     requestsPerMinute,
		maxTokens:  requestsPerMinute,
		refillRate: time.Minute / time.Duration(requestsPerMinute),
		lastRefill: time.Now(),
	}
}

// Wait blocks until a token is available or ctx is done.
func (rl *RateLimiter) Wait(ctx context.Context) error {
	for {
		rl.mu.Lock()
		now := time.Now()
		if added := int(now.Sub(rl.lastRefill) / rl.refillRate); added > 0 {
			rl.tokens = min(rl.tokens+added, rl.maxTokens)
			rl.lastRefill = rl.lastRefill.Add(time.Duration(added) * rl.refillRate)
		}
		if rl.tokens > 0 {
			rl.tokens--
			rl.mu.Unlock()
			return nil
		}
		wait := rl.refillRate - now.Sub(rl.lastRefill)
		rl.mu.Unlock()

		select {
		case <-time.After(wait):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// NewRateLimitedProvider wraps a provider with rate limiting
func NewRateLimitedProvider(provider Provider, requestsPerMinute int) *RateLimitedProvider {
	return &RateLimitedProvider{
		provider: provider,
		limiter:  NewRateLimiter(requestsPerMinute),
	}
}

func (p *RateLimitedProvider) Interpret(ctx context.Context, description, city, locality string) (*models.Interpretation, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait cancelled: %w", err)
	}
	return p.provider.Interpret(ctx, description, city, locality)
}

func (p *RateLimitedProvider) Name() string  { return p.provider.Name() }
func (p *RateLimitedProvider) Model() string { return p.provider.Model() }
func (p *RateLimitedProvider) Close() error  { return p.provider.Close() }

// MultiProviderClient manages multiple providers with fallback
type MultiProviderClient struct {
	providers    []Provider
	currentIndex int
	mu           sync.RWMutex
	logger       *zap.Logger
	failureCount map[int]int
	maxFailures  int
}

// MultiProviderConfig holds configuration for multiple providers
type MultiProviderConfig struct {
	Providers   []ProviderConfig `yaml:"providers"`
	MaxFailures int              `yaml:"max_failures"` // consecutive failures before switching provider
}

// NewMultiProviderClient builds every configured provider. Providers that fail to
// initialize are skipped; the keyword classifier is always appended last so
// there is always something to fall back to.
func NewMultiProviderClient(cfg MultiProviderConfig, logger *zap.Logger) (*MultiProviderClient, error) {
	if cfg.MaxFailures == 0 {
		cfg.MaxFailures = 3
	}

	providers := make([]Provider, 0, len(cfg.Providers)+1)
	hasKeyword := false

	for i, providerCfg := range cfg.Providers {
		var provider Provider
		var err error

		switch providerCfg.Type {
		case ProviderGemini:
			provider, err = gemini.NewClient(gemini.Config{
				APIKey:     providerCfg.APIKey,
				ModelName:  providerCfg.ModelName,
				MaxRetries: providerCfg.MaxRetries,
				RetryDelay: providerCfg.RetryDelay,
			}, logger)
		case ProviderKeyword:
			provider = NewKeywordProvider()
			hasKeyword = true
		default:
			logger.Warn("Unknown provider type, skipping",
				zap.String("type", string(providerCfg.Type)),
				zap.Int("index", i))
			continue
		}

		if err != nil {
			logger.Error("Failed to create provider",
				zap.String("type", string(providerCfg.Type)),
				zap.Int("index", i),
				zap.Error(err))
			continue
		}

		if providerCfg.RequestsPerMinute > 0 {
			provider = NewRateLimitedProvider(provider, providerCfg.RequestsPerMinute)
		}
		providers = append(providers, provider)

		logger.Info("Provider initialized",
			zap.String("type", string(providerCfg.Type)),
			zap.String("model", provider.Model()),
			zap.Int("rate_limit", providerCfg.RequestsPerMinute),
			zap.Int("index", i))
	}

	if !hasKeyword {
		providers = append(providers, NewKeywordProvider())
	}

	return NewMultiProvider(providers, cfg.MaxFailures, logger), nil
}

// NewMultiProvider wires already-built providers in fallback order.
func NewMultiProvider(providers []Provider, maxFailures int, logger *zap.Logger) *MultiProviderClient {
	if maxFailures <= 0 {
		maxFailures = 3
	}
	return &MultiProviderClient{
		providers:    providers,
		logger:       logger,
		failureCount: make(map[int]int),
		maxFailures:  maxFailures,
	}
}

func (c *MultiProviderClient) getCurrentProvider() (Provider, int) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.providers[c.currentIndex], c.currentIndex
}

func (c *MultiProviderClient) switchToNextProvider() {
	c.mu.Lock()
	defer c.mu.Unlock()

	oldIndex := c.currentIndex
	c.currentIndex = (c.currentIndex + 1) % len(c.providers)
	c.failureCount[c.currentIndex] = 0

	c.logger.Info("Switching provider",
		zap.Int("from_index", oldIndex),
		zap.Int("to_index", c.currentIndex),
		zap.Int("total_providers", len(c.providers)))
}

// recordFailure reports whether the provider has now failed too often in a row.
func (c *MultiProviderClient) recordFailure(providerIndex int) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.failureCount[providerIndex]++
	if c.failureCount[providerIndex] >= c.maxFailures {
		c.logger.Warn("Provider reached max failures",
			zap.Int("provider_index", providerIndex),
			zap.Int("failures", c.failureCount[providerIndex]))
		return true
	}
	return false
}

func (c *MultiProviderClient) resetFailureCount(providerIndex int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failureCount[providerIndex] = 0
}

// Interpret tries the current provider and walks the fallback chain on failure.
// It returns the answer together with the provider that produced it.
func (c *MultiProviderClient) Interpret(ctx context.Context, description, city, locality string) (*models.Interpretation, Provider, error) {
	if len(c.providers) == 0 {
		return nil, nil, errors.New("no enrichment providers configured")
	}

	var lastErr error
	start := c.currentIndexSnapshot()
	for attempts := 0; attempts < len(c.providers); attempts++ {
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}
		index := (start + attempts) % len(c.providers)
		provider := c.providers[index]

		c.logger.Debug("Attempting interpretation",
			zap.String("provider", provider.Name()),
			zap.Int("attempt", attempts+1))

		result, err := provider.Interpret(ctx, description, city, locality)
		if err == nil {
			c.resetFailureCount(index)
			return result, provider, nil
		}
		lastErr = err

		c.logger.Warn("Provider failed",
			zap.String("provider", provider.Name()),
			zap.Error(err))

		if shouldSwitch := c.recordFailure(index); shouldSwitch || isRateLimitError(err) {
			if _, current := c.getCurrentProvider(); current == index {
				c.switchToNextProvider()
			}
		}
	}

	return nil, nil, fmt.Errorf("all providers failed: %w", lastErr)
}

func (c *MultiProviderClient) currentIndexSnapshot() int {
	_, index := c.getCurrentProvider()
	return index
}

func isRateLimitError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "429") ||
		strings.Contains(msg, "quota") ||
		strings.Contains(msg, "rate limit")
}

// Close closes all providers
func (c *MultiProviderClient) Close() error {
	var errs []error
	for i, provider := range c.providers {
		if err := provider.Close(); err != nil {
			c.logger.Error("Failed to close provider",
				zap.Int("index", i),
				zap.Error(err))
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
