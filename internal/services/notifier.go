package services

import (
	"context"

	"go.uber.org/zap"
)

type NotificationKind string

const (
	NotifyTaskAssigned     NotificationKind = "task_assigned"
	NotifyReviewRequested  NotificationKind = "review_requested"
	NotifyReviewerAssigned NotificationKind = "reviewer_assigned"
	NotifyTaskAccepted     NotificationKind = "task_accepted"
	NotifyTaskRejected     NotificationKind = "task_rejected"
	NotifyTaskPending      NotificationKind = "task_pending"
)

// Notification tells an actor about a change to one of their tasks.
type Notification struct {
	Kind        NotificationKind
	TaskID      uint64
	TaskName    string
	RecipientID uint64
	Message     string
}

// Notifier delivers notifications. Delivery failures never fail the change
// that triggered them.
type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}

// LogNotifier records notifications in the log instead of sending them.
type LogNotifier struct {
	log *zap.Logger
}

// NewLogNotifier creates a Notifier writing to log
func NewLogNotifier(log *zap.Logger) *LogNotifier {
	return &LogNotifier{log: log}
}

func (n *LogNotifier) Notify(_ context.Context, msg Notification) error {
	n.log.Info("notification",
		zap.String("kind", string(msg.Kind)),
		zap.Uint64("task_id", msg.TaskID),
		zap.String("task_name", msg.TaskName),
		zap.Uint64("recipient_id", msg.RecipientID),
		zap.String("message", msg.Message),
	)
	return nil
}

// notify sends n and logs a failure.
func notify(ctx context.Context, notifier Notifier, log *zap.Logger, n Notification) {
	if notifier == nil || n.RecipientID == 0 {
		return
	}
	if err := notifier.Notify(ctx, n); err != nil {
		log.Warn("notification failed",
			zap.String("kind", string(n.Kind)),
			zap.Uint64("task_id", n.TaskID),
			zap.Uint64("recipient_id", n.RecipientID),
			zap.Error(err),
		)
	}
}
