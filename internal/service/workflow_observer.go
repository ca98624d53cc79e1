package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/sekolahku/sims-api/internal/models"
)

// TransitionEvent describes a completed or failed admission status change.
type TransitionEvent struct {
	AdmissionID string
	From        models.AdmissionStatus
	To          models.AdmissionStatus
	ActorID     string
	StudentID   string
	Duration    time.Duration
	Err         error
}

// TransitionObserver is notified after every admission transition attempt.
// Observers must not block; failures in an observer never affect the
// transition outcome.
type TransitionObserver interface {
	TransitionObserved(ctx context.Context, event TransitionEvent)
}

// LoggingTransitionObserver writes structured transition logs and feeds the
// metrics counters.
type LoggingTransitionObserver struct {
	logger  *zap.Logger
	metrics *MetricsService
}

// NewLoggingTransitionObserver constructs the default observer.
func NewLoggingTransitionObserver(logger *zap.Logger, metrics *MetricsService) *LoggingTransitionObserver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LoggingTransitionObserver{logger: logger, metrics: metrics}
}

// TransitionObserved implements TransitionObserver.
func (o *LoggingTransitionObserver) TransitionObserved(_ context.Context, event TransitionEvent) {
	fields := []zap.Field{
		zap.String("admission_id", event.AdmissionID),
		zap.String("from", string(event.From)),
		zap.String("to", string(event.To)),
		zap.String("actor_id", event.ActorID),
		zap.Duration("duration", event.Duration),
	}
	if event.StudentID != "" {
		fields = append(fields, zap.String("student_id", event.StudentID))
	}

	outcome := "success"
	if event.Err != nil {
		outcome = "failure"
		fields = append(fields, zap.Error(event.Err))
		o.logger.Warn("admission transition failed", fields...)
	} else {
		o.logger.Info("admission transition applied", fields...)
	}
	o.metrics.ObserveAdmissionTransition(string(event.From), string(event.To), outcome)
}
