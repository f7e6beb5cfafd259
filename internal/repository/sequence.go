package repository

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// TicketSequence allocates per-guild ticket numbers. Numbers name channels
// only; they are not a uniqueness key.
type TicketSequence interface {
	Next(ctx context.Context, guildID string) (int, error)
}

type ticketSequence struct {
	client  *redis.Client
	prefix  string
	tickets TicketRepository
	logger  *zap.Logger
}

// NewTicketSequence returns a Redis-backed counter seeded from the stored
// ticket count. A nil client, or any Redis failure, degrades to count+1.
func NewTicketSequence(client *redis.Client, prefix string, tickets TicketRepository, logger *zap.Logger) TicketSequence {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ticketSequence{client: client, prefix: prefix, tickets: tickets, logger: logger}
}

func (s *ticketSequence) Next(ctx context.Context, guildID string) (int, error) {
	if s.client == nil {
		return s.countPlusOne(ctx, guildID)
	}

	key := s.key(guildID)
	exists, err := s.client.Exists(ctx, key).Result()
	if err != nil {
		return s.fallback(ctx, guildID, err)
	}
	if exists == 0 {
		count, err := s.tickets.CountByGuild(ctx, guildID)
		if err != nil {
			return 0, err
		}
		// Losing the SETNX race is fine: the winner seeded the same count.
		if err := s.client.SetNX(ctx, key, count, 0).Err(); err != nil {
			return s.fallback(ctx, guildID, err)
		}
	}

	next, err := s.client.Incr(ctx, key).Result()
	if err != nil {
		return s.fallback(ctx, guildID, err)
	}
	return int(next), nil
}

func (s *ticketSequence) fallback(ctx context.Context, guildID string, cause error) (int, error) {
	s.logger.Warn("ticket sequence unavailable; numbering from count",
		zap.String("guild_id", guildID), zap.Error(cause))
	return s.countPlusOne(ctx, guildID)
}

func (s *ticketSequence) countPlusOne(ctx context.Context, guildID string) (int, error) {
	count, err := s.tickets.CountByGuild(ctx, guildID)
	if err != nil {
		return 0, err
	}
	return count + 1, nil
}

func (s *ticketSequence) key(guildID string) string {
	return fmt.Sprintf("%sguild:%s:ticket_seq", s.prefix, guildID)
}
