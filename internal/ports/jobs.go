package ports

import (
	"context"

	"exposurewatch/internal/domain"
)

type SyncJob struct {
	ID  string
	Key domain.ProviderKey
}

// JobRepository supports queueing, claiming and settling sync jobs.
type JobRepository interface {
	Enqueue(ctx context.Context, key domain.ProviderKey) (jobID string, err error)
	ClaimNext(ctx context.Context) (job SyncJob, found bool, err error)
	MarkCompleted(ctx context.Context, jobID string) error
	MarkFailed(ctx context.Context, jobID string, reason string) error
}
