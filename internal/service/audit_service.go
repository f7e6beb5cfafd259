package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/spec-kit/ticket-bot/internal/domain"
	"github.com/spec-kit/ticket-bot/internal/repository"
)

// AuditService appends and reads LogEntry records.
type AuditService struct {
	logs   repository.LogRepository
	logger *zap.Logger
}

// NewAuditService constructs the service.
func NewAuditService(logs repository.LogRepository, logger *zap.Logger) *AuditService {
	return &AuditService{logs: logs, logger: logger}
}

// Record appends entry. A failed append is logged and never fails the
// transition that produced it.
func (a *AuditService) Record(ctx context.Context, entry domain.LogEntry) {
	if err := a.logs.Create(ctx, &entry); err != nil {
		a.logger.Error("append log entry failed",
			zap.String("guild_id", entry.GuildID),
			zap.String("action", string(entry.Action)),
			zap.Error(err))
		return
	}
	a.logger.Info("action logged",
		zap.String("guild_id", entry.GuildID),
		zap.String("action", string(entry.Action)))
}

// List returns the newest entries of a guild.
func (a *AuditService) List(ctx context.Context, guildID string, limit int) ([]domain.LogEntry, error) {
	return a.logs.ListByGuild(ctx, guildID, limit)
}

// ListByTicket returns a ticket's entries, oldest first.
func (a *AuditService) ListByTicket(ctx context.Context, ticketID string) ([]domain.LogEntry, error) {
	return a.logs.ListByTicket(ctx, ticketID)
}
