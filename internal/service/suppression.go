package service

import (
	"context"
	"log"
	"strings"
	"time"

	"medtransit/internal/domain"
	internalRedis "medtransit/internal/redis"
	"medtransit/internal/repository"
)

// SuppressionService owns the per-address, per-channel opt-out registry.
// Reads go through a short-TTL Redis cache; writes invalidate it so an
// opt-out takes effect on the next dispatch.
type SuppressionService struct {
	repo  repository.SuppressionRepository
	cache internalRedis.SuppressionCacheInterface
}

// NewSuppressionService creates a new SuppressionService.
func NewSuppressionService(repo repository.SuppressionRepository, cache internalRedis.SuppressionCacheInterface) *SuppressionService {
	return &SuppressionService{repo: repo, cache: cache}
}

// normalizeAddress builds the registry key for an address. Phone numbers
// share the resolver's comparison key; emails are lowercased.
func normalizeAddress(channel domain.NotificationChannel, address string) string {
	if channel == domain.ChannelSMS {
		return NormalizePhone(address)
	}
	return strings.ToLower(strings.TrimSpace(address))
}

// IsSuppressed reports whether the address opted out of the channel.
func (s *SuppressionService) IsSuppressed(ctx context.Context, channel domain.NotificationChannel, address string) (bool, error) {
	key := normalizeAddress(channel, address)
	if key == "" {
		return false, ErrInvalidAddress
	}

	if s.cache != nil {
		cached, err := s.cache.GetSuppression(ctx, string(channel), key)
		if err != nil {
			// Cache trouble must not block dispatch; fall through to the DB.
			log.Printf("suppression cache read failed: %v", err)
		} else if cached != nil {
			return cached.Suppressed, nil
		}
	}

	entry, err := s.repo.Get(ctx, key, channel)
	if err != nil {
		return false, err
	}

	suppressed := entry != nil && entry.Suppressed

	if s.cache != nil {
		_ = s.cache.SetSuppression(ctx, &internalRedis.CachedSuppression{
			Address:    key,
			Channel:    string(channel),
			Suppressed: suppressed,
		})
	}

	return suppressed, nil
}

// Suppress records an opt-out for the address on the channel.
func (s *SuppressionService) Suppress(ctx context.Context, channel domain.NotificationChannel, address string) error {
	key := normalizeAddress(channel, address)
	if key == "" {
		return ErrInvalidAddress
	}

	entry := &domain.SuppressionEntry{
		Address:      key,
		Channel:      channel,
		Suppressed:   true,
		SuppressedAt: time.Now(),
	}

	if err := s.repo.Upsert(ctx, entry); err != nil {
		return err
	}

	if s.cache != nil {
		_ = s.cache.InvalidateSuppression(ctx, string(channel), key)
	}

	log.Printf("suppression recorded: channel=%s address=%s", channel, key)
	return nil
}

// Resubscribe reverses an opt-out. Suppression entries are the only
// engine records that re-activate instead of being superseded.
func (s *SuppressionService) Resubscribe(ctx context.Context, channel domain.NotificationChannel, address string) error {
	key := normalizeAddress(channel, address)
	if key == "" {
		return ErrInvalidAddress
	}

	existing, err := s.repo.Get(ctx, key, channel)
	if err != nil {
		return err
	}

	entry := &domain.SuppressionEntry{
		Address:        key,
		Channel:        channel,
		Suppressed:     false,
		ResubscribedAt: time.Now(),
	}
	if existing != nil {
		entry.SuppressedAt = existing.SuppressedAt
	}

	if err := s.repo.Upsert(ctx, entry); err != nil {
		return err
	}

	if s.cache != nil {
		_ = s.cache.InvalidateSuppression(ctx, string(channel), key)
	}

	return nil
}

// Get retrieves the registry entry for an address. Returns nil when the
// address never opted out.
func (s *SuppressionService) Get(ctx context.Context, channel domain.NotificationChannel, address string) (*domain.SuppressionEntry, error) {
	key := normalizeAddress(channel, address)
	if key == "" {
		return nil, ErrInvalidAddress
	}
	return s.repo.Get(ctx, key, channel)
}
