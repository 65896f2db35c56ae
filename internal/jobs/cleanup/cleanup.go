package cleanup

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

type sessionSweeper interface {
	SweepExpired(ctx context.Context) (int64, error)
}

// Job removes expired sessions. One Run is one sweep; scheduling lives with
// the caller.
type Job struct {
	sweeper sessionSweeper
	logger  *zap.Logger
}

func New(sweeper sessionSweeper, logger *zap.Logger) *Job {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Job{sweeper: sweeper, logger: logger}
}

func (j *Job) Run(ctx context.Context) error {
	if j.sweeper == nil {
		return nil
	}

	removed, err := j.sweeper.SweepExpired(ctx)
	if err != nil {
		return fmt.Errorf("sweep expired sessions: %w", err)
	}
	j.logger.Info("expired sessions removed", zap.Int64("removed", removed))
	return nil
}
