// Package detect implements motion detection over raw luma samples with a
// snapshot-and-notify action on trigger. The detector is a single loop: it is
// never reentrant and shares no state with the streaming side beyond the
// frame source it reads from.
package detect

import (
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ayusman/printcam/internal/framebus"
)

// Timestamp layout for snapshot file names: motion_<timestamp>.jpg.
const snapshotTimeLayout = "2006-01-02_150405"

// FrameSource yields luma frames, blocking until one newer than lastSeq is
// available. *framebus.Bus satisfies this.
type FrameSource interface {
	WaitNext(lastSeq uint64) (framebus.Frame, error)
}

// StillFunc captures a full-resolution, high-quality still. It is a capture
// path distinct from the luma samples used for comparison.
type StillFunc func() ([]byte, error)

// Notifier uploads a snapshot file. Implemented by notify.Client.
type Notifier interface {
	Notify(path string) error
}

// Event describes one detected motion occurrence. It is handed to the sink
// right after the snapshot is written and never retained by the detector.
type Event struct {
	ID       string
	Time     time.Time
	Metric   float64
	Snapshot string
}

// EventSink receives motion events. Implementations must not block for long;
// they run on the detector loop.
type EventSink interface {
	MotionDetected(Event)
}

// Config holds the detection parameters.
type Config struct {
	// Threshold is the mean-squared-difference value above which a frame
	// pair counts as motion.
	Threshold float64

	// WaitAfterMotion is the cooldown after a snapshot has been taken,
	// during which no sampling occurs.
	WaitAfterMotion time.Duration

	// MotionNLoops is the number of sampling iterations between throttle
	// pauses. Comparing frames is expensive, so the loop deliberately
	// idles every MotionNLoops iterations. Zero disables the throttle.
	MotionNLoops int

	// WaitAfterNLoops is the duration of each throttle pause.
	WaitAfterNLoops time.Duration

	// SnapshotDir is where motion snapshots are written.
	SnapshotDir string
}

// Detector watches a luma frame source and triggers a snapshot upload when
// the difference between consecutive samples exceeds the threshold.
type Detector struct {
	cfg      Config
	source   FrameSource
	still    StillFunc
	notifier Notifier
	sink     EventSink
	log      *zap.SugaredLogger
	stop     <-chan struct{}

	// sleep is interruptible by stop; replaced in tests.
	sleep func(time.Duration) bool
}

// New creates a Detector. A nil notifier means there is no way to report
// motion, and Run will abstain entirely. A nil sink is allowed.
func New(cfg Config, source FrameSource, still StillFunc, notifier Notifier, sink EventSink, stop <-chan struct{}, log *zap.SugaredLogger) *Detector {
	d := &Detector{
		cfg:      cfg,
		source:   source,
		still:    still,
		notifier: notifier,
		sink:     sink,
		log:      log,
		stop:     stop,
	}
	d.sleep = d.waitFor
	return d
}

// Run executes the detection loop until the frame source is closed or the
// stop channel fires. Individual capture or notify failures are logged and
// survived; the loop itself runs for the life of the process.
func (d *Detector) Run() {
	if d.notifier == nil {
		d.log.Warnw("motion detection disabled: no printer token configured")
		return
	}

	d.log.Infow("motion detection started",
		"threshold", d.cfg.Threshold,
		"cooldown", d.cfg.WaitAfterMotion,
		"throttle_loops", d.cfg.MotionNLoops,
		"throttle_pause", d.cfg.WaitAfterNLoops)

	var prev *LumaBuffer
	var lastSeq uint64
	nloop := 0

	for {
		frame, err := d.source.WaitNext(lastSeq)
		if err != nil {
			d.log.Infow("motion detection stopped", "reason", err)
			return
		}
		lastSeq = frame.Seq

		cur := &LumaBuffer{Pix: frame.Data, Width: frame.Width, Height: frame.Height}

		if prev != nil {
			metric, err := MeanSquaredDiff(*prev, *cur)
			if err != nil {
				// Dimension mismatch or corrupt sample, e.g. across a
				// reconfigure. Re-seed from the next frame.
				d.log.Errorw("motion comparison failed", "error", err)
				prev = nil
				continue
			}

			if metric > d.cfg.Threshold {
				d.trigger(metric)

				// Discard the triggering sample and restart the throttle
				// cycle, so the first frame after cooldown re-seeds the
				// comparison baseline.
				cur = nil
				nloop = 0

				if !d.sleep(d.cfg.WaitAfterMotion) {
					return
				}
			}
		}

		prev = cur

		if d.cfg.MotionNLoops > 0 {
			nloop = (nloop + 1) % d.cfg.MotionNLoops
			if nloop == 0 {
				if !d.sleep(d.cfg.WaitAfterNLoops) {
					return
				}
			}
		}
	}
}

// trigger captures a still, writes the snapshot and fires the notification.
// Every failure is recovered locally; a trigger never takes down the loop.
func (d *Detector) trigger(metric float64) {
	now := time.Now()
	path := filepath.Join(d.cfg.SnapshotDir, "motion_"+now.Format(snapshotTimeLayout)+".jpg")

	data, err := d.still()
	if err != nil {
		d.log.Errorw("snapshot capture failed", "metric", metric, "error", err)
		return
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		d.log.Errorw("snapshot write failed", "file", path, "error", err)
		return
	}

	d.log.Infow("motion detected", "metric", metric, "file", path)

	if err := d.notifier.Notify(path); err != nil {
		d.log.Errorw("snapshot upload failed", "file", path, "error", err)
	} else {
		d.log.Infow("snapshot uploaded", "file", path)
	}

	if d.sink != nil {
		d.sink.MotionDetected(Event{
			ID:       uuid.NewString(),
			Time:     now,
			Metric:   metric,
			Snapshot: path,
		})
	}
}

// waitFor sleeps for the given duration unless stopped first. Returns false
// when the detector should shut down.
func (d *Detector) waitFor(dur time.Duration) bool {
	if dur <= 0 {
		return true
	}

	timer := time.NewTimer(dur)
	defer timer.Stop()

	select {
	case <-timer.C:
		return true
	case <-d.stop:
		return false
	}
}
