package redis

import (
	"context"
	"encoding/json"
	"math/rand"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"github.com/turtacn/MolDock-Screen/internal/domain/job"
	"github.com/turtacn/MolDock-Screen/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/MolDock-Screen/pkg/errors"
)

var ErrCacheMiss = errors.New(errors.ErrCodeNotFound, "cache miss")

// Hit is one leaderboard entry: a ligand and its best predicted free energy
// in kcal/mol. Lower is better.
type Hit struct {
	Ligand string
	Energy float64
}

// JobCache keeps hot job state in Redis so status polls and live progress
// reads never touch PostgreSQL: a JSON status snapshot per job, a hash of
// running counters workers bump as slices complete, and a sorted-set
// leaderboard of the best hits seen so far.
type JobCache struct {
	client *Client
	logger logging.Logger

	// topHitsLimit bounds the leaderboard size per job.
	topHitsLimit int64
	statusTTL    time.Duration

	group singleflight.Group
}

type JobCacheOption func(*JobCache)

func WithTopHitsLimit(n int64) JobCacheOption {
	return func(c *JobCache) { c.topHitsLimit = n }
}

func WithStatusTTL(ttl time.Duration) JobCacheOption {
	return func(c *JobCache) { c.statusTTL = ttl }
}

func NewJobCache(client *Client, log logging.Logger, opts ...JobCacheOption) *JobCache {
	c := &JobCache{
		client:       client,
		logger:       log,
		topHitsLimit: 1000,
		statusTTL:    30 * time.Second,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *JobCache) statusKey(jobID string) string {
	return c.client.KeyPrefix() + "job:" + jobID + ":status"
}

func (c *JobCache) progressKey(jobID string) string {
	return c.client.KeyPrefix() + "job:" + jobID + ":progress"
}

func (c *JobCache) hitsKey(jobID string) string {
	return c.client.KeyPrefix() + "job:" + jobID + ":tophits"
}

// jitterTTL spreads expiry by +/-10% so a burst of polls does not refill
// every key in the same instant.
func jitterTTL(ttl time.Duration) time.Duration {
	if ttl == 0 {
		return 0
	}
	jitter := float64(ttl) * 0.1 * (rand.Float64()*2 - 1)
	return ttl + time.Duration(jitter)
}

// SetStatus stores a status snapshot for jobID.
func (c *JobCache) SetStatus(ctx context.Context, j *job.Job) error {
	data, err := json.Marshal(j)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeSerialization, "marshal job status")
	}
	return c.client.Set(ctx, c.statusKey(j.ID.String()), data, jitterTTL(c.statusTTL)).Err()
}

// GetStatus returns the cached snapshot or ErrCacheMiss.
func (c *JobCache) GetStatus(ctx context.Context, jobID string) (*job.Job, error) {
	data, err := c.client.Get(ctx, c.statusKey(jobID)).Bytes()
	if err == redis.Nil {
		return nil, ErrCacheMiss
	}
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeCacheError, "get job status")
	}
	var j job.Job
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeSerialization, "unmarshal job status")
	}
	return &j, nil
}

// GetOrLoadStatus returns the cached snapshot, loading and caching it on a
// miss. Concurrent misses for the same job collapse into one loader call.
func (c *JobCache) GetOrLoadStatus(ctx context.Context, jobID string, loader func(ctx context.Context) (*job.Job, error)) (*job.Job, error) {
	if j, err := c.GetStatus(ctx, jobID); err == nil {
		return j, nil
	} else if err != ErrCacheMiss {
		return nil, err
	}

	v, err, _ := c.group.Do(jobID, func() (interface{}, error) {
		j, loadErr := loader(ctx)
		if loadErr != nil {
			return nil, loadErr
		}
		if setErr := c.SetStatus(ctx, j); setErr != nil {
			c.logger.Warn("Failed to cache job status", logging.Err(setErr))
		}
		return j, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*job.Job), nil
}

// IncrProgress folds slice counters into the live progress hash.
func (c *JobCache) IncrProgress(ctx context.Context, jobID string, p job.Progress) error {
	key := c.progressKey(jobID)
	pipe := c.client.Pipeline()
	pipe.HIncrBy(ctx, key, "docked", p.Docked)
	pipe.HIncrBy(ctx, key, "filtered", p.Filtered)
	pipe.HIncrBy(ctx, key, "skipped", p.Skipped)
	pipe.Expire(ctx, key, c.client.DefaultTTL())
	_, err := pipe.Exec(ctx)
	return err
}

// Progress returns the live counters for jobID. A missing hash reads as
// zero progress.
func (c *JobCache) Progress(ctx context.Context, jobID string) (job.Progress, error) {
	fields, err := c.client.HGetAll(ctx, c.progressKey(jobID)).Result()
	if err != nil {
		return job.Progress{}, errors.Wrap(err, errors.ErrCodeCacheError, "get job progress")
	}
	var p job.Progress
	p.Docked, _ = strconv.ParseInt(fields["docked"], 10, 64)
	p.Filtered, _ = strconv.ParseInt(fields["filtered"], 10, 64)
	p.Skipped, _ = strconv.ParseInt(fields["skipped"], 10, 64)
	return p, nil
}

// RecordHits adds docked ligands to the job leaderboard and trims it to the
// configured size. Scores are free energies, so rank 0 is the best hit.
func (c *JobCache) RecordHits(ctx context.Context, jobID string, hits []Hit) error {
	if len(hits) == 0 {
		return nil
	}
	key := c.hitsKey(jobID)
	members := make([]redis.Z, len(hits))
	for i, h := range hits {
		members[i] = redis.Z{Score: h.Energy, Member: h.Ligand}
	}

	pipe := c.client.Pipeline()
	pipe.ZAdd(ctx, key, members...)
	pipe.ZRemRangeByRank(ctx, key, c.topHitsLimit, -1)
	pipe.Expire(ctx, key, c.client.DefaultTTL())
	_, err := pipe.Exec(ctx)
	return err
}

// TopHits returns up to k best hits, strongest binding first.
func (c *JobCache) TopHits(ctx context.Context, jobID string, k int64) ([]Hit, error) {
	if k <= 0 || k > c.topHitsLimit {
		k = c.topHitsLimit
	}
	vals, err := c.client.ZRangeWithScores(ctx, c.hitsKey(jobID), 0, k-1).Result()
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeCacheError, "get top hits")
	}
	hits := make([]Hit, len(vals))
	for i, v := range vals {
		name, _ := v.Member.(string)
		hits[i] = Hit{Ligand: name, Energy: v.Score}
	}
	return hits, nil
}

// InvalidateJob drops every cached key for jobID.
func (c *JobCache) InvalidateJob(ctx context.Context, jobID string) error {
	return c.client.Del(ctx,
		c.statusKey(jobID),
		c.progressKey(jobID),
		c.hitsKey(jobID),
	).Err()
}
