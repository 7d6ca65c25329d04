// Package config holds the immutable runtime configuration for printcam.
// A Config is constructed once in main from flags and environment, validated,
// and then passed by value into each component; nothing mutates it afterwards.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/ayusman/printcam/internal/overlay"
)

// Defaults mirroring the constants the camera has always shipped with.
const (
	DefaultFPS             = 30
	DefaultPort            = 8000
	DefaultWidth           = 1920
	DefaultHeight          = 1080
	DefaultMotionThreshold = 12
	DefaultWaitAfterMotion = 30 * time.Second
	DefaultMotionNLoops    = 15
	DefaultWaitAfterNLoops = 5 * time.Second
	DefaultSnapshotDir     = "/tmp"
	DefaultSnapshotURL     = "https://webcam.connect.prusa3d.com/c/snapshot"
	DefaultStreamQuality   = 80
	DefaultStillQuality    = 95
)

// TokenEnv overrides the token file when set.
const TokenEnv = "PRINTCAM_TOKEN"

// ErrInvalidRotation is returned for any rotation other than 0 or 180 degrees.
var ErrInvalidRotation = errors.New("rotation must be 0 or 180 degrees")

// Config is the complete runtime configuration.
type Config struct {
	// Camera.
	DeviceID int
	FPS      int
	Width    int
	Height   int
	Rotation int

	// Streaming.
	Port          int
	StreamQuality int

	// Motion detection.
	DisableDetection bool
	MotionThreshold  float64
	WaitAfterMotion  time.Duration
	MotionNLoops     int
	WaitAfterNLoops  time.Duration
	SnapshotDir      string
	StillQuality     int

	// Notification.
	SnapshotURL string
	Token       string
	TokenPath   string
	Fingerprint string

	// Overlay. Empty OverlayFormat disables the overlay.
	OverlayFormat string
	OverlayColor  string

	// Event log. Empty DBPath keeps the log in memory.
	DBPath string

	// Logging. Empty LogFile logs to stderr.
	LogFile string
}

// Default returns a Config populated with the defaults above. The token path
// defaults to ~/.api/prusa/token.
func Default() Config {
	tokenPath := ""
	if home, err := os.UserHomeDir(); err == nil {
		tokenPath = filepath.Join(home, ".api", "prusa", "token")
	}

	return Config{
		FPS:             DefaultFPS,
		Port:            DefaultPort,
		Width:           DefaultWidth,
		Height:          DefaultHeight,
		StreamQuality:   DefaultStreamQuality,
		StillQuality:    DefaultStillQuality,
		MotionThreshold: DefaultMotionThreshold,
		WaitAfterMotion: DefaultWaitAfterMotion,
		MotionNLoops:    DefaultMotionNLoops,
		WaitAfterNLoops: DefaultWaitAfterNLoops,
		SnapshotDir:     DefaultSnapshotDir,
		SnapshotURL:     DefaultSnapshotURL,
		TokenPath:       tokenPath,
		OverlayColor:    "255,255,255",
	}
}

// Validate checks every field that can be misconfigured from the command
// line. Process-breaking values are reported as errors; optional subsystems
// with unmet prerequisites (a missing token) are not errors and are handled
// by the components that need them.
func (c Config) Validate() error {
	if c.Rotation != 0 && c.Rotation != 180 {
		return fmt.Errorf("%w (got %d)", ErrInvalidRotation, c.Rotation)
	}
	if c.FPS <= 0 {
		return fmt.Errorf("fps must be positive (got %d)", c.FPS)
	}
	if c.Width <= 0 || c.Height <= 0 {
		return fmt.Errorf("resolution must be positive (got %dx%d)", c.Width, c.Height)
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("port must be in 1..65535 (got %d)", c.Port)
	}
	if c.StreamQuality < 1 || c.StreamQuality > 100 {
		return fmt.Errorf("stream quality must be in 1..100 (got %d)", c.StreamQuality)
	}
	if c.StillQuality < 1 || c.StillQuality > 100 {
		return fmt.Errorf("still quality must be in 1..100 (got %d)", c.StillQuality)
	}
	if c.MotionThreshold <= 0 {
		return fmt.Errorf("motion threshold must be positive (got %g)", c.MotionThreshold)
	}
	if c.MotionNLoops < 0 {
		return fmt.Errorf("motion loop count must not be negative (got %d)", c.MotionNLoops)
	}

	if c.OverlayFormat != "" {
		if _, err := overlay.Layout(c.OverlayFormat); err != nil {
			return err
		}
		if _, err := overlay.ParseColor(c.OverlayColor); err != nil {
			return err
		}
	}

	return nil
}

// ParseSize parses a "WIDTHxHEIGHT" resolution string.
func ParseSize(s string) (width, height int, err error) {
	parts := strings.SplitN(s, "x", 2)
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("resolution %q: want WIDTHxHEIGHT", s)
	}

	width, err = strconv.Atoi(parts[0])
	if err != nil {
		return 0, 0, fmt.Errorf("resolution %q: bad width: %w", s, err)
	}
	height, err = strconv.Atoi(parts[1])
	if err != nil {
		return 0, 0, fmt.Errorf("resolution %q: bad height: %w", s, err)
	}

	return width, height, nil
}

// LoadToken resolves the notification token: the environment variable wins,
// then the first line of the token file. A missing file is not an error; it
// just leaves the token empty and detection disabled.
func LoadToken(tokenPath string) (string, error) {
	if tok := os.Getenv(TokenEnv); tok != "" {
		return tok, nil
	}
	if tokenPath == "" {
		return "", nil
	}

	data, err := os.ReadFile(tokenPath)
	if errors.Is(err, os.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("reading token file %s: %w", tokenPath, err)
	}

	line, _, _ := strings.Cut(string(data), "\n")
	return strings.TrimSpace(line), nil
}
