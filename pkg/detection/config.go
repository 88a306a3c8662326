package detection

import (
	"time"

	"github.com/teslashibe/drowsy/pkg/fatigue"
	"github.com/teslashibe/drowsy/pkg/score"
	"github.com/teslashibe/drowsy/pkg/yawn"
)

// Frame rate bounds for SetProcessingRate.
const (
	MinFPS = 1
	MaxFPS = 60
)

// Config configures a Machine and the components it owns.
type Config struct {
	// NoFaceFrames is how many consecutive faceless frames enter NO_FACE.
	NoFaceFrames int

	// AckCooldown suppresses alerts and speeds up recovery after an acknowledgement.
	AckCooldown time.Duration

	// FPS is the target processing rate; frames arriving faster are skipped.
	FPS int

	// RecentYawnWindow is the default window for RecentYawnCount.
	RecentYawnWindow time.Duration

	Fatigue fatigue.Config
	Yawn    yawn.Config
	Score   score.Config
}

// DefaultConfig returns the standard configuration.
func DefaultConfig() Config {
	return Config{
		NoFaceFrames:     5,
		AckCooldown:      8 * time.Second,
		FPS:              20,
		RecentYawnWindow: time.Minute,
		Fatigue:          fatigue.DefaultConfig(),
		Yawn:             yawn.DefaultConfig(),
		Score:            score.DefaultConfig(),
	}
}

// ClampFPS bounds fps to [MinFPS, MaxFPS].
func ClampFPS(fps int) int {
	return min(max(fps, MinFPS), MaxFPS)
}

// frameInterval is the minimum spacing between processed frames.
func frameInterval(fps int) time.Duration {
	return time.Second / time.Duration(ClampFPS(fps))
}

func (c Config) sanitize() Config {
	d := DefaultConfig()
	if c.NoFaceFrames <= 0 {
		c.NoFaceFrames = d.NoFaceFrames
	}
	if c.AckCooldown < 0 {
		c.AckCooldown = d.AckCooldown
	}
	if c.FPS == 0 {
		c.FPS = d.FPS
	}
	c.FPS = ClampFPS(c.FPS)
	if c.RecentYawnWindow <= 0 {
		c.RecentYawnWindow = d.RecentYawnWindow
	}
	if c.Fatigue == (fatigue.Config{}) {
		c.Fatigue = d.Fatigue
	}
	if c.Yawn == (yawn.Config{}) {
		c.Yawn = d.Yawn
	}
	if c.Score == (score.Config{}) {
		c.Score = d.Score
	}
	return c
}
