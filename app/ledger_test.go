package app

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/pkg/errors"
	"go.viam.com/test"

	"github.com/skyhookml/yolokit/convert"
	"github.com/skyhookml/yolokit/detector"
	"github.com/skyhookml/yolokit/predictions"
)

func openLedger(t *testing.T) *Ledger {
	ledger, err := OpenLedger(filepath.Join(t.TempDir(), "ledger.sqlite3"))
	test.That(t, err, test.ShouldBeNil)
	t.Cleanup(func() { ledger.Close() })
	return ledger
}

var mismatchSummary = convert.Summary{
	ClipsProcessed:  1,
	ClipsSkipped:    1,
	FramesConverted: 1,
	Warnings: []convert.Warning{{
		Kind:   convert.FrameCountMismatch,
		Clip:   "clip_01",
		Frames: 2,
		BBoxes: 3,
	}},
}

func TestRecordConversion(t *testing.T) {
	ledger := openLedger(t)
	id, err := ledger.RecordConversion(mismatchSummary, map[string]string{"index": "train.json"}, nil)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, id, test.ShouldNotBeEmpty)

	run, err := ledger.GetRun(id)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, run.Tool, test.ShouldEqual, "convert")
	test.That(t, run.Status, test.ShouldEqual, StatusWarnings)
	test.That(t, run.Args, test.ShouldResemble, map[string]string{"index": "train.json"})
	test.That(t, run.Stats["clips_skipped"], test.ShouldEqual, 1)
	test.That(t, run.Stats["frames_converted"], test.ShouldEqual, 1)
	test.That(t, run.Started.IsZero(), test.ShouldBeFalse)

	warnings, err := ledger.ListWarnings(id)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, warnings, test.ShouldHaveLength, 1)
	test.That(t, warnings[0].Kind, test.ShouldEqual, "FrameCountMismatch")
	test.That(t, warnings[0].Clip, test.ShouldEqual, "clip_01")
	test.That(t, warnings[0].Message, test.ShouldContainSubstring, "(2 frames, 3 bboxes)")

	id, err = ledger.RecordConversion(convert.Summary{}, nil, nil)
	test.That(t, err, test.ShouldBeNil)
	run, err = ledger.GetRun(id)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, run.Status, test.ShouldEqual, StatusClean)

	id, err = ledger.RecordConversion(convert.Summary{}, nil, errors.New("malformed index"))
	test.That(t, err, test.ShouldBeNil)
	run, err = ledger.GetRun(id)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, run.Status, test.ShouldEqual, StatusFailed)
	test.That(t, run.Error, test.ShouldEqual, "malformed index")
}

func TestListRuns(t *testing.T) {
	ledger := openLedger(t)
	runs, err := ledger.ListRuns()
	test.That(t, err, test.ShouldBeNil)
	test.That(t, runs, test.ShouldBeEmpty)

	first, err := ledger.RecordDetection(detector.Report{Total: 4, Results: make([]detector.Result, 2)}, nil, nil)
	test.That(t, err, test.ShouldBeNil)
	second, err := ledger.RecordDrawing(predictions.Summary{Processed: 2, Skipped: 1}, nil, nil)
	test.That(t, err, test.ShouldBeNil)
	third, err := ledger.RecordDetection(detector.Report{}, nil, nil)
	test.That(t, err, test.ShouldBeNil)

	runs, err = ledger.ListRuns()
	test.That(t, err, test.ShouldBeNil)
	test.That(t, runs, test.ShouldHaveLength, 3)
	test.That(t, runs[0].ID, test.ShouldEqual, first)
	test.That(t, runs[0].Stats, test.ShouldResemble, map[string]int{"results": 2, "detections": 4})
	test.That(t, runs[1].ID, test.ShouldEqual, second)
	test.That(t, runs[1].Status, test.ShouldEqual, StatusWarnings)
	test.That(t, runs[2].ID, test.ShouldEqual, third)

	last, err := ledger.LastRun("detect")
	test.That(t, err, test.ShouldBeNil)
	test.That(t, last.ID, test.ShouldEqual, third)
	_, err = ledger.LastRun("convert")
	test.That(t, errors.Is(err, ErrRunNotFound), test.ShouldBeTrue)

	_, err = ledger.GetRun("nope")
	test.That(t, errors.Is(err, ErrRunNotFound), test.ShouldBeTrue)
	_, err = ledger.ListWarnings("nope")
	test.That(t, errors.Is(err, ErrRunNotFound), test.ShouldBeTrue)
}

func get(t *testing.T, router http.Handler, path string, dest interface{}) int {
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest("GET", path, nil))
	if dest != nil && rec.Code == http.StatusOK {
		test.That(t, json.Unmarshal(rec.Body.Bytes(), dest), test.ShouldBeNil)
	}
	return rec.Code
}

func TestRouter(t *testing.T) {
	ledger := openLedger(t)
	id, err := ledger.RecordConversion(mismatchSummary, nil, nil)
	test.That(t, err, test.ShouldBeNil)
	router := NewRouter(ledger)

	var runs []Run
	test.That(t, get(t, router, "/runs", &runs), test.ShouldEqual, http.StatusOK)
	test.That(t, runs, test.ShouldHaveLength, 1)
	test.That(t, runs[0].ID, test.ShouldEqual, id)

	var run Run
	test.That(t, get(t, router, "/runs/"+id, &run), test.ShouldEqual, http.StatusOK)
	test.That(t, run.Status, test.ShouldEqual, StatusWarnings)
	test.That(t, run.Stats["clips_processed"], test.ShouldEqual, 1)

	var warnings []RunWarning
	test.That(t, get(t, router, "/runs/"+id+"/warnings", &warnings), test.ShouldEqual, http.StatusOK)
	test.That(t, warnings, test.ShouldHaveLength, 1)

	test.That(t, get(t, router, "/tools/convert/last", &run), test.ShouldEqual, http.StatusOK)
	test.That(t, run.ID, test.ShouldEqual, id)

	test.That(t, get(t, router, "/runs/unknown", nil), test.ShouldEqual, http.StatusNotFound)
	test.That(t, get(t, router, "/runs/unknown/warnings", nil), test.ShouldEqual, http.StatusNotFound)
	test.That(t, get(t, router, "/tools/detect/last", nil), test.ShouldEqual, http.StatusNotFound)
}
