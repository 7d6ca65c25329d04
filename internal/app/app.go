// Package app wires the capture pipeline, the frame buses and the motion
// detector into one lifecycle. Exactly one goroutine talks to the camera;
// everything else consumes frames through a bus.
package app

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"gocv.io/x/gocv"

	"github.com/ayusman/printcam/internal/capture"
	"github.com/ayusman/printcam/internal/config"
	"github.com/ayusman/printcam/internal/detect"
	"github.com/ayusman/printcam/internal/framebus"
	"github.com/ayusman/printcam/internal/overlay"
)

// ErrStopped is returned by CaptureStill once the pipeline has shut down.
var ErrStopped = errors.New("capture pipeline stopped")

// Config assembles an App. Camera may be set to substitute the capture
// device; when nil one is opened from the runtime configuration.
type Config struct {
	Runtime  config.Config
	Camera   capture.Camera
	Notifier detect.Notifier
	Sinks    []detect.EventSink
	Log      *zap.SugaredLogger
}

type stillRequest struct {
	reply chan stillResult
}

type stillResult struct {
	data []byte
	err  error
}

// App owns the camera and runs the capture loop, publishing encoded frames
// for streaming and luma samples for motion detection.
type App struct {
	cfg      config.Config
	camera   capture.Camera
	notifier detect.Notifier
	sinks    []detect.EventSink
	log      *zap.SugaredLogger

	streamBus *framebus.Bus
	lumaBus   *framebus.Bus
	overlay   overlay.Processor

	stillCh chan stillRequest
	errCh   chan error
	stopCh  chan struct{}
	wg      sync.WaitGroup

	stopOnce sync.Once
}

// New builds an App from the given configuration. The camera is not opened
// until Start.
func New(c Config) (*App, error) {
	log := c.Log
	if log == nil {
		log = zap.NewNop().Sugar()
	}

	cam := c.Camera
	if cam == nil {
		cam = capture.NewCamera(capture.Settings{
			DeviceID: c.Runtime.DeviceID,
			Width:    c.Runtime.Width,
			Height:   c.Runtime.Height,
			FPS:      c.Runtime.FPS,
		})
	}

	var proc overlay.Processor
	if c.Runtime.OverlayFormat != "" {
		ts, err := overlay.NewTimestamp(c.Runtime.OverlayFormat, c.Runtime.OverlayColor)
		if err != nil {
			return nil, fmt.Errorf("configuring overlay: %w", err)
		}
		proc = ts
	}

	return &App{
		cfg:       c.Runtime,
		camera:    cam,
		notifier:  c.Notifier,
		sinks:     c.Sinks,
		log:       log,
		streamBus: framebus.New(),
		lumaBus:   framebus.New(),
		overlay:   proc,
		stillCh:   make(chan stillRequest),
		errCh:     make(chan error, 1),
		stopCh:    make(chan struct{}),
	}, nil
}

// StreamBus returns the bus carrying JPEG-encoded frames for streaming.
func (a *App) StreamBus() *framebus.Bus { return a.streamBus }

// Errors reports the first fatal pipeline error. A send here means the
// camera is gone and the process should exit.
func (a *App) Errors() <-chan error { return a.errCh }

// Start opens the camera and launches the capture pipeline and, unless
// disabled, the motion detector.
func (a *App) Start() error {
	if err := a.camera.Open(); err != nil {
		return fmt.Errorf("opening camera: %w", err)
	}

	a.log.Infow("capture started",
		"device", a.cfg.DeviceID,
		"resolution", fmt.Sprintf("%dx%d", a.cfg.Width, a.cfg.Height),
		"fps", a.cfg.FPS,
		"rotation", a.cfg.Rotation)

	a.wg.Add(1)
	go a.runPipeline()

	if !a.cfg.DisableDetection {
		det := detect.New(detect.Config{
			Threshold:       a.cfg.MotionThreshold,
			WaitAfterMotion: a.cfg.WaitAfterMotion,
			MotionNLoops:    a.cfg.MotionNLoops,
			WaitAfterNLoops: a.cfg.WaitAfterNLoops,
			SnapshotDir:     a.cfg.SnapshotDir,
		}, a.lumaBus, a.CaptureStill, a.notifier, fanout(a.sinks), a.stopCh, a.log)

		a.wg.Add(1)
		go func() {
			defer a.wg.Done()
			det.Run()
		}()
	}

	return nil
}

// Stop shuts down the pipeline and the detector and releases the camera.
// Safe to call more than once.
func (a *App) Stop() {
	a.stopOnce.Do(func() {
		close(a.stopCh)
		a.streamBus.Close()
		a.lumaBus.Close()
		a.wg.Wait()

		if err := a.camera.Close(); err != nil {
			a.log.Warnw("closing camera", "error", err)
		}
	})
}

// CaptureStill grabs a fresh full-quality frame from the camera, bypassing
// the stream encoder. It is serviced by the pipeline goroutine between
// ticks, so the camera is never read concurrently.
func (a *App) CaptureStill() ([]byte, error) {
	req := stillRequest{reply: make(chan stillResult, 1)}

	select {
	case a.stillCh <- req:
	case <-a.stopCh:
		return nil, ErrStopped
	}

	select {
	case res := <-req.reply:
		return res.data, res.err
	case <-a.stopCh:
		return nil, ErrStopped
	}
}

// runPipeline reads frames at the configured rate and publishes them. A
// camera read failure is fatal: without frames there is nothing to stream
// or compare, so the error is surfaced and the loop exits.
func (a *App) runPipeline() {
	defer a.wg.Done()

	interval := time.Second / time.Duration(a.cfg.FPS)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-a.stopCh:
			return

		case req := <-a.stillCh:
			req.reply <- a.takeStill()

		case <-ticker.C:
			if err := a.tick(); err != nil {
				a.log.Errorw("capture pipeline failed", "error", err)
				select {
				case a.errCh <- err:
				default:
				}
				return
			}
		}
	}
}

// tick reads one frame and publishes its JPEG and luma representations.
func (a *App) tick() error {
	mat, err := a.grab()
	if err != nil {
		return err
	}
	defer mat.Close()

	now := time.Now()

	jpeg, err := capture.EncodeJPEG(mat, a.cfg.StreamQuality)
	if err != nil {
		return err
	}
	a.streamBus.Publish(framebus.Frame{
		Data:      jpeg,
		Width:     mat.Cols(),
		Height:    mat.Rows(),
		Timestamp: now,
	})

	pix, w, h, err := capture.ToLuma(mat)
	if err != nil {
		return err
	}
	a.lumaBus.Publish(framebus.Frame{
		Data:      pix,
		Width:     w,
		Height:    h,
		Timestamp: now,
	})

	return nil
}

// takeStill reads one frame and encodes it at the still quality.
func (a *App) takeStill() stillResult {
	mat, err := a.grab()
	if err != nil {
		return stillResult{err: err}
	}
	defer mat.Close()

	data, err := capture.EncodeJPEG(mat, a.cfg.StillQuality)
	return stillResult{data: data, err: err}
}

// grab reads a frame and applies rotation and overlay. The caller owns the
// returned Mat.
func (a *App) grab() (*gocv.Mat, error) {
	mat, err := a.camera.ReadFrame()
	if err != nil {
		return nil, err
	}

	if a.cfg.Rotation == 180 {
		capture.Rotate180(mat)
	}
	if a.overlay != nil {
		a.overlay.Process(mat)
	}

	return mat, nil
}
