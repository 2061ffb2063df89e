package cmd

import (
	"fmt"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"
)

// Worker processes queued email tasks in the background. The returned stop
// function drains active tasks.
func Worker(srv *asynq.Server, mux *asynq.ServeMux, logger *zap.Logger) (func(), error) {
	logger.Info("Starting async worker")
	if err := srv.Start(mux); err != nil {
		return nil, fmt.Errorf("start async worker: %w", err)
	}
	return func() {
		logger.Info("Stopping async worker")
		srv.Shutdown()
	}, nil
}
