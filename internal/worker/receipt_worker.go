package worker

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/gradeloop/session-engine/internal/config"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const (
	ReceiptBatchSize    = 50
	ReceiptBatchTimeout = 2 * time.Second
	ReceiptPollTimeout  = 1 * time.Second
)

// ReceiptWorker consumes submission receipts and bulk-inserts them into the
// submission_receipts table. A receipted session's answer snapshots are no
// longer needed for recovery and are cleared in the same flush.
type ReceiptWorker struct {
	pool *pgxpool.Pool
	rdb  *redis.Client
	log  zerolog.Logger
}

// NewReceiptWorker creates a new ReceiptWorker.
func NewReceiptWorker(pool *pgxpool.Pool, rdb *redis.Client, log zerolog.Logger) *ReceiptWorker {
	return &ReceiptWorker{
		pool: pool,
		rdb:  rdb,
		log:  log.With().Str("component", "receipt_worker").Logger(),
	}
}

type receiptPayload struct {
	SessionID    string `json:"session_id"`
	SubmissionID string `json:"submission_id"`
	AssessmentID string `json:"assessment_id"`
	StudentID    int    `json:"student_id"`
	Trigger      string `json:"trigger"`
}

// ----------------------------------------------------------------
// Worker loop with batching
// ----------------------------------------------------------------

func (w *ReceiptWorker) Start(ctx context.Context) {
	w.log.Info().Msg("ReceiptWorker started")

	batch := make([]*receiptPayload, 0, ReceiptBatchSize)
	lastFlush := time.Now()

	for {
		// Should flush?
		if len(batch) > 0 &&
			(len(batch) >= ReceiptBatchSize || time.Since(lastFlush) >= ReceiptBatchTimeout) {

			w.flushSafe(ctx, batch)
			batch = batch[:0]
			lastFlush = time.Now()
		}

		select {
		case <-ctx.Done():
			w.log.Info().Msg("Shutdown requested. Flushing remaining batch...")
			w.flushSafe(context.Background(), batch)
			return

		default:
			item, err := w.rdb.BLPop(ctx, ReceiptPollTimeout, config.WorkerKey.SubmissionReceiptsQueue).Result()
			if err != nil {
				if err != redis.Nil && ctx.Err() == nil {
					w.log.Error().Err(err).Msg("BLPop error")
				}
				continue
			}

			if len(item) < 2 {
				continue
			}

			var p receiptPayload
			if err := json.Unmarshal([]byte(item[1]), &p); err != nil {
				w.log.Error().Err(err).Msg("Invalid JSON payload")
				continue
			}

			batch = append(batch, &p)
		}
	}
}

// ----------------------------------------------------------------
// Batch insert wrapper
// ----------------------------------------------------------------

func (w *ReceiptWorker) flushSafe(ctx context.Context, batch []*receiptPayload) {
	if len(batch) == 0 {
		return
	}

	if err := w.bulkInsertReceipts(ctx, batch); err != nil {
		w.log.Warn().Err(err).Msg("bulk receipt insert failed, using fallback")

		for _, p := range batch {
			if err := w.persistSingle(ctx, p); err != nil {
				w.log.Error().Err(err).Msg("persistSingle failed, requeueing")
				raw, _ := json.Marshal(p)
				w.rdb.RPush(ctx, config.WorkerKey.SubmissionReceiptsQueue, raw)
			}
		}
		return
	}

	// After successful receipts → clear the sessions' answer snapshots.
	w.bulkClearSnapshots(ctx, batch)
}

// ----------------------------------------------------------------
// BULK PostgreSQL INSERT using UNNEST + alias
// ----------------------------------------------------------------

func (w *ReceiptWorker) bulkInsertReceipts(ctx context.Context, batch []*receiptPayload) error {
	n := len(batch)

	sessionIDs := make([]uuid.UUID, 0, n)
	submissionIDs := make([]uuid.UUID, 0, n)
	assessmentIDs := make([]uuid.UUID, 0, n)
	students := make([]int, 0, n)
	triggers := make([]string, 0, n)
	receivedAts := make([]time.Time, n)

	now := time.Now()
	for i, p := range batch {
		sID, err := uuid.Parse(p.SessionID)
		if err != nil {
			return err
		}
		subID, err := uuid.Parse(p.SubmissionID)
		if err != nil {
			return err
		}
		aID, err := uuid.Parse(p.AssessmentID)
		if err != nil {
			return err
		}
		sessionIDs = append(sessionIDs, sID)
		submissionIDs = append(submissionIDs, subID)
		assessmentIDs = append(assessmentIDs, aID)
		students = append(students, p.StudentID)
		triggers = append(triggers, p.Trigger)
		receivedAts[i] = now
	}

	query := `
		INSERT INTO submission_receipts
			(session_id, submission_id, assessment_id, student_id, submit_trigger, received_at)
		SELECT
			u.session_id,
			u.submission_id,
			u.assessment_id,
			u.student_id,
			u.submit_trigger,
			u.received_at
		FROM UNNEST(
			$1::uuid[],
			$2::uuid[],
			$3::uuid[],
			$4::int[],
			$5::text[],
			$6::timestamptz[]
		) AS u (session_id, submission_id, assessment_id, student_id, submit_trigger, received_at)
		ON CONFLICT (session_id) DO NOTHING
	`

	_, err := w.pool.Exec(ctx, query,
		sessionIDs, submissionIDs, assessmentIDs, students, triggers, receivedAts)
	return err
}

// ----------------------------------------------------------------
// BULK snapshot cleanup for receipted sessions
// ----------------------------------------------------------------

func (w *ReceiptWorker) bulkClearSnapshots(ctx context.Context, batch []*receiptPayload) {
	sessionIDs := make([]uuid.UUID, 0, len(batch))
	for _, p := range batch {
		sID, err := uuid.Parse(p.SessionID)
		if err != nil {
			continue
		}
		sessionIDs = append(sessionIDs, sID)
	}

	if _, err := w.pool.Exec(ctx,
		`DELETE FROM answer_snapshots WHERE session_id = ANY($1::uuid[])`,
		sessionIDs,
	); err != nil {
		w.log.Warn().Err(err).Msg("snapshot cleanup failed")
	}
}

// ----------------------------------------------------------------
// FALLBACK single insert
// ----------------------------------------------------------------

func (w *ReceiptWorker) persistSingle(ctx context.Context, p *receiptPayload) error {
	sID, err := uuid.Parse(p.SessionID)
	if err != nil {
		return err
	}
	subID, err := uuid.Parse(p.SubmissionID)
	if err != nil {
		return err
	}
	aID, err := uuid.Parse(p.AssessmentID)
	if err != nil {
		return err
	}

	_, err = w.pool.Exec(ctx,
		`INSERT INTO submission_receipts
			(session_id, submission_id, assessment_id, student_id, submit_trigger, received_at)
		 VALUES ($1, $2, $3, $4, $5, NOW())
		 ON CONFLICT (session_id) DO NOTHING`,
		sID, subID, aID, p.StudentID, p.Trigger,
	)

	return err
}
