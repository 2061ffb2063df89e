package jobs

import (
	"homecare-booking/pkg/utils"

	"github.com/hibiken/asynq"
)

func RedisOpt(config utils.RedisConfig) asynq.RedisClientOpt {
	return asynq.RedisClientOpt{
		Addr:     config.Addr,
		Password: config.Password,
		DB:       config.DB,
	}
}

// NewWorker builds the asynq server and the mux it serves.
func NewWorker(config *utils.Config, emails *EmailHandler) (*asynq.Server, *asynq.ServeMux) {
	srv := asynq.NewServer(
		RedisOpt(config.Redis),
		asynq.Config{
			Concurrency: config.Jobs.WorkerConcurrency,
			Queues: map[string]int{
				"default": 1,
			},
		},
	)

	mux := asynq.NewServeMux()
	mux.HandleFunc(TypeBookingCreated, emails.HandleBookingCreated)

	return srv, mux
}
