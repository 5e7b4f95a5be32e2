package memory

import (
	"context"
	"sync"

	"concept-battle-service/internal/domain"
	"github.com/rs/zerolog"
)

// NotificationLog is a Notifier that logs announcements and keeps them in
// memory. Used when no broker is configured.
type NotificationLog struct {
	logger zerolog.Logger

	mu            sync.Mutex
	announcements []domain.Announcement
}

func NewNotificationLog(logger zerolog.Logger) *NotificationLog {
	return &NotificationLog{logger: logger}
}

func (n *NotificationLog) Announce(ctx context.Context, announcement domain.Announcement) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	n.mu.Lock()
	n.announcements = append(n.announcements, announcement)
	n.mu.Unlock()

	n.logger.Info().
		Str("game_id", announcement.GameID).
		Str("community_id", announcement.CommunityID).
		Msg(announcement.Text)
	return nil
}

// Announcements returns what has been announced so far.
func (n *NotificationLog) Announcements() []domain.Announcement {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]domain.Announcement(nil), n.announcements...)
}
