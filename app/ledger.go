package app

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/skyhookml/yolokit/convert"
	"github.com/skyhookml/yolokit/detector"
	"github.com/skyhookml/yolokit/predictions"
)

const (
	StatusClean    = "clean"
	StatusWarnings = "warnings"
	StatusFailed   = "failed"
)

var ErrRunNotFound = errors.New("run not found")

// Run is one recorded tool invocation.
type Run struct {
	ID      string
	Tool    string
	Started time.Time
	Status  string
	Args    map[string]string
	Stats   map[string]int
	Error   string `json:",omitempty"`

	Warnings []RunWarning `json:"-"`
}

type RunWarning struct {
	Kind    string
	Clip    string `json:",omitempty"`
	Frame   string `json:",omitempty"`
	Message string
}

// Ledger is a SQLite-backed history of tool runs.
type Ledger struct {
	db *Database
}

func OpenLedger(fname string) (*Ledger, error) {
	db, err := OpenDatabase(fname)
	if err != nil {
		return nil, err
	}
	if err := InitDB(db); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "error initializing ledger schema")
	}
	return &Ledger{db: db}, nil
}

func (l *Ledger) Close() error {
	return l.db.Close()
}

// Record stores run and its warnings, returning the assigned run id.
func (l *Ledger) Record(run Run) (string, error) {
	run.ID = uuid.New().String()
	if run.Started.IsZero() {
		run.Started = time.Now()
	}
	if run.Status == "" {
		run.Status = StatusClean
	}
	args, err := json.Marshal(run.Args)
	if err != nil {
		return "", err
	}
	stats, err := json.Marshal(run.Stats)
	if err != nil {
		return "", err
	}
	err = l.db.Transaction(func(tx Tx) error {
		var seq int
		if err := tx.QueryRow("SELECT IFNULL(MAX(seq), 0) + 1 FROM runs").Scan(&seq); err != nil {
			return err
		}
		_, err := tx.Exec(
			"INSERT INTO runs (id, seq, tool, started, status, args, stats, error) VALUES (?, ?, ?, ?, ?, ?, ?, ?)",
			run.ID, seq, run.Tool, run.Started.UTC().Format(time.RFC3339Nano), run.Status, string(args), string(stats), run.Error,
		)
		if err != nil {
			return err
		}
		for i, w := range run.Warnings {
			_, err := tx.Exec(
				"INSERT INTO run_warnings (run_id, idx, kind, clip, frame, message) VALUES (?, ?, ?, ?, ?, ?)",
				run.ID, i, w.Kind, w.Clip, w.Frame, w.Message,
			)
			if err != nil {
				return err
			}
		}
		return setKV(tx, "last_run/"+run.Tool, run.ID)
	})
	if err != nil {
		return "", errors.Wrap(err, "error recording run")
	}
	log.Printf("[ledger] recorded %s run %s (%s)", run.Tool, run.ID, run.Status)
	return run.ID, nil
}

func failure(run Run, err error) Run {
	if err != nil {
		run.Status = StatusFailed
		run.Error = err.Error()
	}
	return run
}

// RecordConversion stores the outcome of a dataset conversion. A non-nil err
// marks the run as failed.
func (l *Ledger) RecordConversion(summary convert.Summary, args map[string]string, err error) (string, error) {
	run := Run{
		Tool:   "convert",
		Status: StatusClean,
		Args:   args,
		Stats: map[string]int{
			"clips_processed":  summary.ClipsProcessed,
			"clips_skipped":    summary.ClipsSkipped,
			"frames_converted": summary.FramesConverted,
			"frames_skipped":   summary.FramesSkipped,
		},
	}
	if !summary.Clean() {
		run.Status = StatusWarnings
	}
	for _, w := range summary.Warnings {
		run.Warnings = append(run.Warnings, RunWarning{
			Kind:    string(w.Kind),
			Clip:    w.Clip,
			Frame:   w.Frame,
			Message: w.String(),
		})
	}
	return l.Record(failure(run, err))
}

func (l *Ledger) RecordDetection(report detector.Report, args map[string]string, err error) (string, error) {
	run := Run{
		Tool:   "detect",
		Status: StatusClean,
		Args:   args,
		Stats: map[string]int{
			"results":    len(report.Results),
			"detections": report.Total,
		},
	}
	return l.Record(failure(run, err))
}

func (l *Ledger) RecordDrawing(summary predictions.Summary, args map[string]string, err error) (string, error) {
	run := Run{
		Tool:   "drawpreds",
		Status: StatusClean,
		Args:   args,
		Stats: map[string]int{
			"processed": summary.Processed,
			"skipped":   summary.Skipped,
		},
	}
	if summary.Skipped > 0 {
		run.Status = StatusWarnings
	}
	return l.Record(failure(run, err))
}

const runColumns = "id, tool, started, status, args, stats, error"

func scanRun(scan func(dest ...interface{}) error) (Run, error) {
	var run Run
	var started, args, stats string
	if err := scan(&run.ID, &run.Tool, &started, &run.Status, &args, &stats, &run.Error); err != nil {
		return run, err
	}
	var err error
	run.Started, err = time.Parse(time.RFC3339Nano, started)
	if err != nil {
		return run, fmt.Errorf("run %s: bad start time %q", run.ID, started)
	}
	if err := json.Unmarshal([]byte(args), &run.Args); err != nil {
		return run, errors.Wrapf(err, "run %s: bad args", run.ID)
	}
	if err := json.Unmarshal([]byte(stats), &run.Stats); err != nil {
		return run, errors.Wrapf(err, "run %s: bad stats", run.ID)
	}
	return run, nil
}

// ListRuns returns every run in the order it was recorded.
func (l *Ledger) ListRuns() ([]Run, error) {
	rows, err := l.db.Query("SELECT " + runColumns + " FROM runs ORDER BY seq")
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	runs := []Run{}
	for rows.Next() {
		run, err := scanRun(rows.Scan)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

func (l *Ledger) GetRun(id string) (Run, error) {
	run, err := scanRun(l.db.QueryRow("SELECT "+runColumns+" FROM runs WHERE id = ?", id).Scan)
	if err == sql.ErrNoRows {
		return Run{}, errors.Wrapf(ErrRunNotFound, "run %s", id)
	}
	return run, err
}

func (l *Ledger) ListWarnings(id string) ([]RunWarning, error) {
	if _, err := l.GetRun(id); err != nil {
		return nil, err
	}
	rows, err := l.db.Query("SELECT kind, clip, frame, message FROM run_warnings WHERE run_id = ? ORDER BY idx", id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	warnings := []RunWarning{}
	for rows.Next() {
		var w RunWarning
		if err := rows.Scan(&w.Kind, &w.Clip, &w.Frame, &w.Message); err != nil {
			return nil, err
		}
		warnings = append(warnings, w)
	}
	return warnings, rows.Err()
}

// WithLedger opens the ledger at fname and passes it to record. It does
// nothing if fname is empty; ledger failures are logged, never fatal.
func WithLedger(fname string, record func(l *Ledger) (string, error)) {
	if fname == "" {
		return
	}
	l, err := OpenLedger(fname)
	if err != nil {
		log.Warnf("[ledger] %v", err)
		return
	}
	defer l.Close()
	if _, err := record(l); err != nil {
		log.Warnf("[ledger] %v", err)
	}
}
