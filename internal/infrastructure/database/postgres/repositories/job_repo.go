package repositories

import (
	"context"
	"database/sql"
	stderrors "errors"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/turtacn/MolDock-Screen/internal/domain/job"
	"github.com/turtacn/MolDock-Screen/internal/infrastructure/monitoring/logging"
	apperrors "github.com/turtacn/MolDock-Screen/pkg/errors"
)

// JobRepository is the PostgreSQL implementation of the job domain's
// Repository interface. Slice claiming uses SELECT ... FOR UPDATE SKIP
// LOCKED so concurrent workers never contend on the same slice.
type JobRepository struct {
	db     *sql.DB
	logger logging.Logger
}

// NewJobRepository constructs a ready-to-use JobRepository.
func NewJobRepository(db *sql.DB, logger logging.Logger) *JobRepository {
	return &JobRepository{db: db, logger: logger}
}

const jobColumns = `
	id, name, receptor_key, library_key, result_key,
	center_x, center_y, center_z, size_x, size_y, size_z,
	status, total_ligands, docked_ligands, filtered_ligands, skipped_ligands,
	num_slices, completed_slices, email, created_at, started_at, completed_at`

func scanJob(row scanner) (*job.Job, error) {
	var j job.Job
	var id string
	var startedAt, completedAt sql.NullTime
	err := row.Scan(
		&id, &j.Name, &j.ReceptorKey, &j.LibraryKey, &j.ResultKey,
		&j.Center[0], &j.Center[1], &j.Center[2], &j.Size[0], &j.Size[1], &j.Size[2],
		&j.Status, &j.TotalLigands, &j.DockedLigands, &j.FilteredLigands, &j.SkippedLigands,
		&j.NumSlices, &j.CompletedSlices, &j.Email, &j.CreatedAt, &startedAt, &completedAt,
	)
	if err != nil {
		return nil, err
	}
	j.ID, err = uuid.Parse(id)
	if err != nil {
		return nil, err
	}
	if startedAt.Valid {
		j.StartedAt = &startedAt.Time
	}
	if completedAt.Valid {
		j.CompletedAt = &completedAt.Time
	}
	return &j, nil
}

// Create persists a new job and its slice set in one transaction.
func (r *JobRepository) Create(ctx context.Context, j *job.Job) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return apperrors.Wrap(err, apperrors.ErrCodeDatabaseError, "begin create job")
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO jobs (`+jobColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,$22)`,
		j.ID.String(), j.Name, j.ReceptorKey, j.LibraryKey, j.ResultKey,
		j.Center[0], j.Center[1], j.Center[2], j.Size[0], j.Size[1], j.Size[2],
		string(j.Status), j.TotalLigands, j.DockedLigands, j.FilteredLigands, j.SkippedLigands,
		j.NumSlices, j.CompletedSlices, j.Email, j.CreatedAt, j.StartedAt, j.CompletedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperrors.Wrap(err, apperrors.ErrCodeJobAlreadyExists, "job already exists")
		}
		return apperrors.Wrap(err, apperrors.ErrCodeDatabaseError, "insert job")
	}

	sliceSize := int((j.TotalLigands + int64(j.NumSlices) - 1) / int64(j.NumSlices))
	for _, s := range j.Slices(sliceSize) {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO job_slices (job_id, slice_index, begin_ligand, end_ligand, status, attempts)
			VALUES ($1,$2,$3,$4,$5,0)`,
			s.JobID.String(), s.Index, s.Begin, s.End, string(s.Status),
		)
		if err != nil {
			return apperrors.Wrap(err, apperrors.ErrCodeDatabaseError, "insert job slice")
		}
	}

	if err := tx.Commit(); err != nil {
		return apperrors.Wrap(err, apperrors.ErrCodeDatabaseError, "commit create job")
	}
	r.logger.Info("job created",
		logging.String("job_id", j.ID.String()),
		logging.Int("num_slices", j.NumSlices),
		logging.Int64("total_ligands", j.TotalLigands),
	)
	return nil
}

func getJob(ctx context.Context, q queryExecutor, id string) (*job.Job, error) {
	return scanJob(q.QueryRowContext(ctx, `SELECT`+jobColumns+` FROM jobs WHERE id = $1`, id))
}

// GetByID fetches one job by primary key.
func (r *JobRepository) GetByID(ctx context.Context, id uuid.UUID) (*job.Job, error) {
	j, err := getJob(ctx, r.db, id.String())
	if err == sql.ErrNoRows {
		return nil, apperrors.Newf(apperrors.ErrCodeJobNotFound, "job %s not found", id)
	}
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeDatabaseError, "query job")
	}
	return j, nil
}

// List returns jobs ordered newest first.
func (r *JobRepository) List(ctx context.Context, status job.Status, limit, offset int) ([]*job.Job, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `SELECT` + jobColumns + ` FROM jobs`
	args := []interface{}{}
	if status != "" {
		query += ` WHERE status = $1`
		args = append(args, string(status))
	}
	query += ` ORDER BY created_at DESC LIMIT ` + itoa(limit) + ` OFFSET ` + itoa(offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeDatabaseError, "list jobs")
	}
	defer rows.Close()

	var out []*job.Job
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, apperrors.Wrap(err, apperrors.ErrCodeDatabaseError, "scan job")
		}
		out = append(out, j)
	}
	return out, rows.Err()
}

// ClaimSlice atomically claims the next pending slice of any runnable job.
func (r *JobRepository) ClaimSlice(ctx context.Context, workerID string) (*job.Job, *job.Slice, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, nil, apperrors.Wrap(err, apperrors.ErrCodeDatabaseError, "begin claim")
	}
	defer tx.Rollback()

	var s job.Slice
	var jobID string
	err = tx.QueryRowContext(ctx, `
		SELECT s.job_id, s.slice_index, s.begin_ligand, s.end_ligand, s.attempts
		FROM job_slices s
		JOIN jobs j ON j.id = s.job_id
		WHERE s.status = 'pending' AND j.status IN ('pending','running')
		ORDER BY j.created_at, s.slice_index
		LIMIT 1
		FOR UPDATE OF s SKIP LOCKED`,
	).Scan(&jobID, &s.Index, &s.Begin, &s.End, &s.Attempts)
	if err == sql.ErrNoRows {
		return nil, nil, apperrors.New(apperrors.ErrCodeJobSliceUnavailable, "no pending slices")
	}
	if err != nil {
		return nil, nil, apperrors.Wrap(err, apperrors.ErrCodeDatabaseError, "select pending slice")
	}
	s.JobID, err = uuid.Parse(jobID)
	if err != nil {
		return nil, nil, apperrors.Wrap(err, apperrors.ErrCodeDatabaseError, "parse slice job id")
	}

	now := time.Now().UTC()
	_, err = tx.ExecContext(ctx, `
		UPDATE job_slices
		SET status = 'claimed', worker_id = $1, attempts = attempts + 1, claimed_at = $2
		WHERE job_id = $3 AND slice_index = $4`,
		workerID, now, jobID, s.Index,
	)
	if err != nil {
		return nil, nil, apperrors.Wrap(err, apperrors.ErrCodeDatabaseError, "claim slice")
	}
	s.Status = job.SliceClaimed
	s.WorkerID = workerID
	s.Attempts++
	s.ClaimedAt = &now

	// First claim moves the job to running.
	_, err = tx.ExecContext(ctx, `
		UPDATE jobs SET status = 'running', started_at = COALESCE(started_at, $1)
		WHERE id = $2 AND status = 'pending'`,
		now, jobID,
	)
	if err != nil {
		return nil, nil, apperrors.Wrap(err, apperrors.ErrCodeDatabaseError, "start job")
	}

	j, err := getJob(ctx, tx, jobID)
	if err != nil {
		return nil, nil, apperrors.Wrap(err, apperrors.ErrCodeDatabaseError, "load claimed job")
	}

	if err := tx.Commit(); err != nil {
		return nil, nil, apperrors.Wrap(err, apperrors.ErrCodeDatabaseError, "commit claim")
	}
	r.logger.Debug("slice claimed",
		logging.String("job_id", jobID),
		logging.Int("slice", s.Index),
		logging.String("worker", workerID),
	)
	return j, &s, nil
}

// CompleteSlice marks a slice done and folds its counters into the job.
func (r *JobRepository) CompleteSlice(ctx context.Context, s *job.Slice, p job.Progress) (*job.Job, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeDatabaseError, "begin complete slice")
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	res, err := tx.ExecContext(ctx, `
		UPDATE job_slices SET status = 'completed', completed_at = $1
		WHERE job_id = $2 AND slice_index = $3 AND status = 'claimed'`,
		now, s.JobID.String(), s.Index,
	)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeDatabaseError, "complete slice")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, apperrors.New(apperrors.ErrCodeJobStateInvalid, "slice is not claimed")
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE jobs SET
			docked_ligands = docked_ligands + $1,
			filtered_ligands = filtered_ligands + $2,
			skipped_ligands = skipped_ligands + $3,
			completed_slices = completed_slices + 1,
			status = CASE WHEN completed_slices + 1 >= num_slices THEN 'completed' ELSE status END,
			completed_at = CASE WHEN completed_slices + 1 >= num_slices THEN $4 ELSE completed_at END
		WHERE id = $5`,
		p.Docked, p.Filtered, p.Skipped, now, s.JobID.String(),
	)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeDatabaseError, "update job progress")
	}

	j, err := getJob(ctx, tx, s.JobID.String())
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeDatabaseError, "load job after slice")
	}

	if err := tx.Commit(); err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeDatabaseError, "commit complete slice")
	}
	return j, nil
}

// ReleaseSlice returns a claimed slice to pending, or fails it for good once
// the retry budget is spent.
func (r *JobRepository) ReleaseSlice(ctx context.Context, s *job.Slice, maxAttempts int) error {
	state := "pending"
	if s.Attempts >= maxAttempts {
		state = "failed"
	}
	_, err := r.db.ExecContext(ctx, `
		UPDATE job_slices SET status = $1, worker_id = ''
		WHERE job_id = $2 AND slice_index = $3 AND status = 'claimed'`,
		state, s.JobID.String(), s.Index,
	)
	if err != nil {
		return apperrors.Wrap(err, apperrors.ErrCodeDatabaseError, "release slice")
	}
	if state == "failed" {
		// One dead slice fails the job; partial results stay queryable.
		_, err = r.db.ExecContext(ctx, `
			UPDATE jobs SET status = 'failed', completed_at = $1
			WHERE id = $2 AND status NOT IN ('completed','failed','canceled')`,
			time.Now().UTC(), s.JobID.String(),
		)
		if err != nil {
			return apperrors.Wrap(err, apperrors.ErrCodeDatabaseError, "fail job")
		}
	}
	return nil
}

// SetResultKey records the result archive location on a job.
func (r *JobRepository) SetResultKey(ctx context.Context, id uuid.UUID, key string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE jobs SET result_key = $1 WHERE id = $2`, key, id.String())
	if err != nil {
		return apperrors.Wrap(err, apperrors.ErrCodeDatabaseError, "set result key")
	}
	return nil
}

// Cancel transitions a non-terminal job to canceled.
func (r *JobRepository) Cancel(ctx context.Context, id uuid.UUID) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE jobs SET status = 'canceled', completed_at = $1
		WHERE id = $2 AND status NOT IN ('completed','failed','canceled')`,
		time.Now().UTC(), id.String(),
	)
	if err != nil {
		return apperrors.Wrap(err, apperrors.ErrCodeDatabaseError, "cancel job")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		j, err := r.GetByID(ctx, id)
		if err != nil {
			return err
		}
		return apperrors.Newf(apperrors.ErrCodeJobStateInvalid, "job is %s", j.Status)
	}
	return nil
}

// isUniqueViolation matches lib/pq unique-constraint errors.
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if stderrors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	return false
}

func itoa(n int) string {
	if n < 0 {
		n = 0
	}
	buf := [20]byte{}
	i := len(buf)
	for {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
		if n == 0 {
			break
		}
	}
	return string(buf[i:])
}
