package register

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// schemaSQL defines the registration tables. Applied on open; idempotent.
const schemaSQL = `
CREATE TABLE IF NOT EXISTS registration_runs (
	run_id TEXT PRIMARY KEY,
	sequence_name TEXT NOT NULL,
	layer INTEGER NOT NULL,
	frame_count INTEGER NOT NULL,
	succeeded INTEGER NOT NULL,
	failed INTEGER NOT NULL,
	best_frame INTEGER NOT NULL,
	best_quality REAL NOT NULL,
	created_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS registration_frames (
	run_id TEXT NOT NULL,
	frame_index INTEGER NOT NULL,
	included INTEGER NOT NULL,
	attempts INTEGER NOT NULL,
	shift_x REAL NOT NULL,
	shift_y REAL NOT NULL,
	pairs_matched INTEGER NOT NULL,
	sigma REAL NOT NULL,
	fwhm REAL NOT NULL,
	roundness REAL NOT NULL,
	quality REAL NOT NULL,
	error TEXT,
	PRIMARY KEY (run_id, frame_index),
	FOREIGN KEY (run_id) REFERENCES registration_runs(run_id)
);

CREATE INDEX IF NOT EXISTS idx_registration_frames_run
	ON registration_frames(run_id);
`

// Store persists registration runs and their per-frame records.
type Store struct {
	db *sql.DB
}

// NewStore wraps an open database handle and ensures the schema exists.
func NewStore(db *sql.DB) (*Store, error) {
	if _, err := db.Exec(schemaSQL); err != nil {
		return nil, fmt.Errorf("apply registration schema: %w", err)
	}
	return &Store{db: db}, nil
}

// RunRecord is a persisted registration run summary.
type RunRecord struct {
	RunID        string
	SequenceName string
	Layer        int
	FrameCount   int
	Succeeded    int
	Failed       int
	BestFrame    int
	BestQuality  float64
	CreatedAt    int64
}

// InsertRun persists a run summary and its frame records in one
// transaction. If runID is empty a UUID is generated. Returns the run ID.
func (s *Store) InsertRun(runID string, seq *Sequence, res *SequenceResult) (string, error) {
	if runID == "" {
		runID = uuid.New().String()
	}

	err := retryOnBusy(func() error {
		tx, err := s.db.Begin()
		if err != nil {
			return err
		}
		defer tx.Rollback()

		_, err = tx.Exec(`
			INSERT INTO registration_runs (
				run_id, sequence_name, layer, frame_count,
				succeeded, failed, best_frame, best_quality, created_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			runID, seq.Name, seq.Layer, len(res.Frames),
			res.Succeeded, res.Failed, res.BestFrame, res.BestQuality,
			time.Now().UnixNano(),
		)
		if err != nil {
			return fmt.Errorf("insert run %s: %w", runID, err)
		}

		for i := range res.Frames {
			fr := &res.Frames[i]
			var sigma float64
			if fr.Trans != nil {
				sigma = fr.Trans.Sig
			}
			var errMsg interface{}
			if fr.Err != nil {
				errMsg = fr.Err.Error()
			}
			_, err = tx.Exec(`
				INSERT INTO registration_frames (
					run_id, frame_index, included, attempts,
					shift_x, shift_y, pairs_matched, sigma,
					fwhm, roundness, quality, error
				) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
				runID, fr.Index, boolInt(fr.Included), fr.Attempts,
				fr.ShiftX, fr.ShiftY, fr.PairsMatched, sigma,
				fr.FWHM, fr.Roundness, fr.Quality, errMsg,
			)
			if err != nil {
				return fmt.Errorf("insert frame %d of run %s: %w", fr.Index, runID, err)
			}
		}
		return tx.Commit()
	})
	if err != nil {
		return "", err
	}
	return runID, nil
}

// GetRun returns a run summary by ID.
func (s *Store) GetRun(runID string) (*RunRecord, error) {
	row := s.db.QueryRow(`
		SELECT run_id, sequence_name, layer, frame_count,
		       succeeded, failed, best_frame, best_quality, created_at
		FROM registration_runs WHERE run_id = ?`, runID)

	var r RunRecord
	err := row.Scan(&r.RunID, &r.SequenceName, &r.Layer, &r.FrameCount,
		&r.Succeeded, &r.Failed, &r.BestFrame, &r.BestQuality, &r.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("run %s not found", runID)
	}
	if err != nil {
		return nil, fmt.Errorf("scan run: %w", err)
	}
	return &r, nil
}

// FrameRow is a persisted per-frame record.
type FrameRow struct {
	FrameIndex   int
	Included     bool
	Attempts     int
	ShiftX       float64
	ShiftY       float64
	PairsMatched int
	Sigma        float64
	FWHM         float64
	Roundness    float64
	Quality      float64
	Error        string
}

// ListFrames returns a run's frame records ordered by frame index.
func (s *Store) ListFrames(runID string) ([]FrameRow, error) {
	rows, err := s.db.Query(`
		SELECT frame_index, included, attempts, shift_x, shift_y,
		       pairs_matched, sigma, fwhm, roundness, quality, error
		FROM registration_frames
		WHERE run_id = ?
		ORDER BY frame_index`, runID)
	if err != nil {
		return nil, fmt.Errorf("query frames: %w", err)
	}
	defer rows.Close()

	var out []FrameRow
	for rows.Next() {
		var fr FrameRow
		var included int
		var errMsg sql.NullString
		err := rows.Scan(&fr.FrameIndex, &included, &fr.Attempts,
			&fr.ShiftX, &fr.ShiftY, &fr.PairsMatched, &fr.Sigma,
			&fr.FWHM, &fr.Roundness, &fr.Quality, &errMsg)
		if err != nil {
			return nil, fmt.Errorf("scan frame row: %w", err)
		}
		fr.Included = included != 0
		if errMsg.Valid {
			fr.Error = errMsg.String
		}
		out = append(out, fr)
	}
	return out, rows.Err()
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// retryOnBusy retries a write a few times when SQLite reports the database
// as locked by another connection.
func retryOnBusy(fn func() error) error {
	var err error
	for attempt := 0; attempt < 5; attempt++ {
		err = fn()
		if err == nil || !isBusy(err) {
			return err
		}
		time.Sleep(time.Duration(attempt+1) * 10 * time.Millisecond)
	}
	return err
}

func isBusy(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "database is locked") || strings.Contains(msg, "SQLITE_BUSY")
}
