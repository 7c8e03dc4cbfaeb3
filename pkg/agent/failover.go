package agent

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/harun/agentcore/internal/observability"
	"github.com/harun/agentcore/internal/tracing"
	"github.com/rs/zerolog"
)

// FailoverConfig configures a FailoverClient.
type FailoverConfig struct {
	Profiles []AuthProfile
	// Factory defaults to ProviderFactory.
	Factory ProviderCreator
	// MaxRetries is the number of attempts per profile for retryable errors.
	MaxRetries int
	// BaseDelay is the first backoff delay; it doubles per attempt.
	BaseDelay time.Duration
	// Cooldown is multiplied by a profile's failure count.
	Cooldown time.Duration
	Logger   zerolog.Logger
}

// FailoverClient is a ModelClient that walks auth profiles in priority
// order, retrying transient failures with backoff and parking failing
// profiles in a cooldown. Non-retryable errors, including context
// overflows, are returned as-is so the loop can react to them.
type FailoverClient struct {
	factory    ProviderCreator
	maxRetries int
	baseDelay  time.Duration
	cooldown   time.Duration
	logger     zerolog.Logger

	mu        sync.Mutex
	profiles  []AuthProfile
	providers map[string]LLMProvider
	now       func() time.Time
}

// NewFailoverClient creates a failover client over at least one profile.
func NewFailoverClient(cfg FailoverConfig) (*FailoverClient, error) {
	if len(cfg.Profiles) == 0 {
		return nil, fmt.Errorf("at least one auth profile is required")
	}
	factory := cfg.Factory
	if factory == nil {
		factory = &ProviderFactory{}
	}
	maxRetries := cfg.MaxRetries
	if maxRetries <= 0 {
		maxRetries = 3
	}
	baseDelay := cfg.BaseDelay
	if baseDelay <= 0 {
		baseDelay = time.Second
	}
	cooldown := cfg.Cooldown
	if cooldown <= 0 {
		cooldown = time.Minute
	}

	profiles := make([]AuthProfile, len(cfg.Profiles))
	copy(profiles, cfg.Profiles)
	sortProfilesByPriority(profiles)

	return &FailoverClient{
		factory:    factory,
		maxRetries: maxRetries,
		baseDelay:  baseDelay,
		cooldown:   cooldown,
		logger:     cfg.Logger.With().Str("component", "failover").Logger(),
		profiles:   profiles,
		providers:  make(map[string]LLMProvider),
		now:        time.Now,
	}, nil
}

// Complete implements ModelClient.
func (c *FailoverClient) Complete(ctx context.Context, req Request) (*Response, error) {
	return c.execute(ctx, func(p LLMProvider) (*Response, bool, error) {
		resp, err := p.Complete(ctx, req)
		return resp, false, err
	})
}

// StreamComplete implements ModelClient. A stream that already delivered
// deltas is not retried, since the caller has seen partial content.
func (c *FailoverClient) StreamComplete(ctx context.Context, req Request, onDelta DeltaFunc) (*Response, error) {
	return c.execute(ctx, func(p LLMProvider) (*Response, bool, error) {
		emitted := false
		resp, err := p.StreamComplete(ctx, req, func(delta string) {
			emitted = true
			if onDelta != nil {
				onDelta(delta)
			}
		})
		return resp, emitted, err
	})
}

// Profiles returns a snapshot of the profiles with their failure state.
func (c *FailoverClient) Profiles() []AuthProfile {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]AuthProfile, len(c.profiles))
	copy(out, c.profiles)
	return out
}

type attemptFunc func(p LLMProvider) (resp *Response, partial bool, err error)

// execute executes with auth profile failover
func (c *FailoverClient) execute(ctx context.Context, call attemptFunc) (*Response, error) {
	logger := tracing.LoggerFromContext(ctx, c.logger)
	var lastErr error

	for _, profile := range c.Profiles() {
		if profile.CooldownUntil != nil && c.now().UnixMilli() < *profile.CooldownUntil {
			observability.SetProviderCooldown(profile.Provider, true)
			logger.Debug().Str("profile_id", profile.ID).Msg("Skipping profile in cooldown")
			continue
		}

		provider, err := c.provider(profile)
		if err != nil {
			logger.Warn().Str("profile_id", profile.ID).Err(err).Msg("Failed to create provider")
			lastErr = err
			continue
		}

		resp, err := c.callWithRetry(ctx, profile, provider, call)
		if err == nil {
			c.updateProfileSuccess(profile.ID)
			return resp, nil
		}
		lastErr = err

		if ctx.Err() != nil || !IsRetryableError(err) {
			return nil, err
		}

		logger.Warn().Str("profile_id", profile.ID).Err(err).Msg("Auth profile failed")
		c.updateProfileFailure(profile.ID)
	}

	if lastErr == nil {
		return nil, errors.New("all auth profiles are in cooldown")
	}
	logger.Error().Err(lastErr).Msg("All auth profiles failed")
	return nil, fmt.Errorf("all auth profiles failed: %w", lastErr)
}

// callWithRetry calls one provider with exponential backoff
func (c *FailoverClient) callWithRetry(ctx context.Context, profile AuthProfile, provider LLMProvider, call attemptFunc) (*Response, error) {
	var lastErr error
	for attempt := 0; attempt < c.maxRetries; attempt++ {
		start := time.Now()
		resp, partial, err := call(provider)
		observability.RecordModelCall(profile.Provider, time.Since(start), err == nil)
		if err == nil {
			if resp == nil {
				return nil, ErrNoResponse
			}
			return resp, nil
		}
		lastErr = err

		if partial || !IsRetryableError(err) || attempt == c.maxRetries-1 {
			break
		}

		delay := c.baseDelay * time.Duration(1<<attempt)
		c.logger.Info().
			Str("profile_id", profile.ID).
			Int("attempt", attempt+1).
			Dur("delay", delay).
			Msg("Retrying after error")

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
	}
	return nil, lastErr
}

func (c *FailoverClient) provider(profile AuthProfile) (LLMProvider, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if p, ok := c.providers[profile.ID]; ok {
		return p, nil
	}
	p, err := c.factory.NewProvider(profile)
	if err != nil {
		return nil, err
	}
	c.providers[profile.ID] = p
	return p, nil
}

// updateProfileSuccess resets failure count for a profile
func (c *FailoverClient) updateProfileSuccess(profileID string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for i := range c.profiles {
		if c.profiles[i].ID == profileID {
			c.profiles[i].FailureCount = 0
			c.profiles[i].CooldownUntil = nil
			observability.SetProviderCooldown(c.profiles[i].Provider, false)
			break
		}
	}
}

// updateProfileFailure parks a profile for cooldown * failure count
func (c *FailoverClient) updateProfileFailure(profileID string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for i := range c.profiles {
		if c.profiles[i].ID == profileID {
			c.profiles[i].FailureCount++
			until := c.now().Add(c.cooldown * time.Duration(c.profiles[i].FailureCount)).UnixMilli()
			c.profiles[i].CooldownUntil = &until
			observability.SetProviderCooldown(c.profiles[i].Provider, true)
			break
		}
	}
}

// sortProfilesByPriority sorts profiles by priority (lower = higher priority)
func sortProfilesByPriority(profiles []AuthProfile) {
	sort.SliceStable(profiles, func(i, j int) bool {
		return profiles[i].Priority < profiles[j].Priority
	})
}
