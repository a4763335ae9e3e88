// Package screening orchestrates virtual screening jobs: the API-side
// service that submits and queries jobs, and the worker-side runner that
// claims library slices, docks their ligands, and folds results back.
package screening

import (
	"context"

	"github.com/turtacn/MolDock-Screen/internal/domain/job"
	"github.com/turtacn/MolDock-Screen/internal/infrastructure/database/redis"
	"github.com/turtacn/MolDock-Screen/internal/infrastructure/messaging/kafka"
)

// StatusCache is the hot-state surface backed by redis.JobCache.
type StatusCache interface {
	SetStatus(ctx context.Context, j *job.Job) error
	GetOrLoadStatus(ctx context.Context, jobID string, loader func(ctx context.Context) (*job.Job, error)) (*job.Job, error)
	IncrProgress(ctx context.Context, jobID string, p job.Progress) error
	Progress(ctx context.Context, jobID string) (job.Progress, error)
	RecordHits(ctx context.Context, jobID string, hits []redis.Hit) error
	TopHits(ctx context.Context, jobID string, k int64) ([]redis.Hit, error)
	InvalidateJob(ctx context.Context, jobID string) error
}

// EventPublisher is the slice of the Kafka producer the pipeline emits
// lifecycle events through.
type EventPublisher interface {
	Publish(ctx context.Context, msg *kafka.ProducerMessage) error
}

// publishEvent wraps a payload in an EventEnvelope keyed by jobID and
// publishes it. Event delivery is best-effort: the database is the source
// of truth, so a failed publish is logged by callers, never fatal.
func publishEvent(ctx context.Context, pub EventPublisher, topic, eventType, source, jobID string, payload interface{}) error {
	env, err := kafka.NewEventEnvelope(eventType, source, payload)
	if err != nil {
		return err
	}
	msg, err := env.ToMessage(topic, jobID)
	if err != nil {
		return err
	}
	return pub.Publish(ctx, msg)
}
