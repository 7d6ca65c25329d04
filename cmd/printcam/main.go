// Command printcam streams a printer camera over HTTP and uploads motion
// snapshots to Prusa Connect.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/ayusman/printcam/internal/app"
	"github.com/ayusman/printcam/internal/config"
	"github.com/ayusman/printcam/internal/detect"
	"github.com/ayusman/printcam/internal/notify"
	"github.com/ayusman/printcam/internal/server"
	"github.com/ayusman/printcam/internal/store"
)

func main() {
	cfg, err := parseFlags(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	log := newLogger(cfg.LogFile)
	defer log.Sync()

	if err := run(cfg, log.Sugar()); err != nil {
		log.Sugar().Fatalw("printcam exited", "error", err)
	}
}

// parseFlags builds a validated Config from the command line.
func parseFlags(args []string) (config.Config, error) {
	cfg := config.Default()

	fs := flag.NewFlagSet("printcam", flag.ContinueOnError)
	fs.IntVar(&cfg.DeviceID, "device", cfg.DeviceID, "camera device index")
	fs.IntVar(&cfg.FPS, "fps", cfg.FPS, "capture frame rate")
	fs.IntVar(&cfg.Port, "port", cfg.Port, "HTTP listen port")
	fs.IntVar(&cfg.Rotation, "rot", cfg.Rotation, "image rotation in degrees (0 or 180)")
	size := fs.String("size", fmt.Sprintf("%dx%d", cfg.Width, cfg.Height), "capture resolution as WIDTHxHEIGHT")
	fs.BoolVar(&cfg.DisableDetection, "no-detect", cfg.DisableDetection, "disable motion detection")
	fs.Float64Var(&cfg.MotionThreshold, "threshold", cfg.MotionThreshold, "motion trigger threshold")
	fs.StringVar(&cfg.SnapshotDir, "snapshot-dir", cfg.SnapshotDir, "directory for motion snapshots")
	fs.StringVar(&cfg.SnapshotURL, "url", cfg.SnapshotURL, "snapshot upload endpoint")
	fs.StringVar(&cfg.TokenPath, "token-path", cfg.TokenPath, "file holding the printer token")
	fs.StringVar(&cfg.Fingerprint, "fingerprint", cfg.Fingerprint, "camera fingerprint (generated when empty)")
	fs.StringVar(&cfg.DBPath, "db", cfg.DBPath, "event log database file (in-memory when empty)")
	fs.StringVar(&cfg.LogFile, "logfile", cfg.LogFile, "log file (stderr when empty)")
	fs.StringVar(&cfg.OverlayFormat, "overlay-format", cfg.OverlayFormat, "timestamp overlay format, e.g. %Y-%m-%d %H:%M:%S (disabled when empty)")
	fs.StringVar(&cfg.OverlayColor, "overlay-color", cfg.OverlayColor, "overlay color as R,G,B")

	if err := fs.Parse(args); err != nil {
		return config.Config{}, err
	}

	var err error
	cfg.Width, cfg.Height, err = config.ParseSize(*size)
	if err != nil {
		return config.Config{}, err
	}

	if err := cfg.Validate(); err != nil {
		return config.Config{}, err
	}

	cfg.Token, err = config.LoadToken(cfg.TokenPath)
	if err != nil {
		return config.Config{}, err
	}

	if cfg.Fingerprint == "" {
		cfg.Fingerprint = strings.ReplaceAll(uuid.NewString(), "-", "")
	}

	return cfg, nil
}

// newLogger builds the process logger: human-readable on stderr, or JSON
// with rotation when a log file is configured.
func newLogger(logFile string) *zap.Logger {
	if logFile == "" {
		encCfg := zap.NewDevelopmentEncoderConfig()
		core := zapcore.NewCore(
			zapcore.NewConsoleEncoder(encCfg),
			zapcore.Lock(os.Stderr),
			zap.InfoLevel,
		)
		return zap.New(core)
	}

	writer := &lumberjack.Logger{
		Filename:   logFile,
		MaxSize:    20, // megabytes
		MaxBackups: 3,
		MaxAge:     14, // days
	}
	core := zapcore.NewCore(
		zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig()),
		zapcore.AddSync(writer),
		zap.InfoLevel,
	)
	return zap.New(core)
}

func run(cfg config.Config, log *zap.SugaredLogger) error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	st, err := store.New(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("opening event log: %w", err)
	}
	defer st.Close()

	var notifier detect.Notifier
	if cfg.Token != "" {
		notifier = notify.NewClient(cfg.SnapshotURL, cfg.Token, cfg.Fingerprint)
	}

	hub := server.NewEventsHub(log.Named("events"))

	a, err := app.New(app.Config{
		Runtime:  cfg,
		Notifier: notifier,
		Sinks: []detect.EventSink{
			app.NewStoreSink(st, log.Named("store")),
			hub,
		},
		Log: log,
	})
	if err != nil {
		return err
	}

	if err := a.Start(); err != nil {
		return err
	}
	defer a.Stop()

	srv := server.New(server.Config{
		Bus:    a.StreamBus(),
		Store:  st,
		Events: hub,
		Log:    log.Named("server"),
	})

	serveErr := make(chan error, 1)
	go func() {
		log.Infow("streaming server listening", "port", cfg.Port)
		if err := srv.ListenAndServe(fmt.Sprintf(":%d", cfg.Port)); !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	select {
	case <-ctx.Done():
		log.Infow("shutting down")
	case err := <-serveErr:
		return fmt.Errorf("http server: %w", err)
	case err := <-a.Errors():
		return fmt.Errorf("capture pipeline: %w", err)
	}

	// Closing the app ends every open stream session, letting the HTTP
	// server drain instead of waiting out the shutdown timeout.
	a.Stop()

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShutdown()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warnw("http shutdown", "error", err)
	}

	return nil
}
