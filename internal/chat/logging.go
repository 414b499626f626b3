package chat

import (
	"context"

	"github.com/denhac/memberbridge/internal/observability/logger"
	"go.uber.org/zap"
)

// LogWorkspace records each call and changes nothing. It stands in for the
// workspace API client, which lives outside this service.
type LogWorkspace struct {
	log *zap.Logger
}

func NewLogWorkspace(log *zap.Logger) *LogWorkspace {
	return &LogWorkspace{log: log.Named("chat.workspace")}
}

func (w *LogWorkspace) AddToChannel(ctx context.Context, member Member, channel string) error {
	w.record(ctx, "add_to_channel", member, zap.String("channel", channel))
	return nil
}

func (w *LogWorkspace) RemoveFromChannel(ctx context.Context, member Member, channel string) error {
	w.record(ctx, "remove_from_channel", member, zap.String("channel", channel))
	return nil
}

func (w *LogWorkspace) AddToUserGroup(ctx context.Context, member Member, handle string) error {
	w.record(ctx, "add_to_usergroup", member, zap.String("usergroup", handle))
	return nil
}

func (w *LogWorkspace) RemoveFromUserGroup(ctx context.Context, member Member, handle string) error {
	w.record(ctx, "remove_from_usergroup", member, zap.String("usergroup", handle))
	return nil
}

func (w *LogWorkspace) DemoteToPublicOnly(ctx context.Context, member Member) error {
	w.record(ctx, "demote_public_only", member)
	return nil
}

func (w *LogWorkspace) PromoteToRegular(ctx context.Context, member Member) error {
	w.record(ctx, "promote_regular", member)
	return nil
}

func (w *LogWorkspace) InviteIDCheckOnly(ctx context.Context, member Member) error {
	w.record(ctx, "invite_id_check_only", member)
	return nil
}

func (w *LogWorkspace) record(ctx context.Context, op string, member Member, fields ...zap.Field) {
	fields = append(fields,
		zap.String("op", op),
		zap.Int64("customer_id", member.CustomerID),
	)
	logger.WithContext(ctx, w.log).Info("chat workspace call", fields...)
}
