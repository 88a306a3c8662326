// Package score keeps the bounded 0-100 fatigue score: event penalties, a
// post-yawn hold and time-paced recovery.
package score

import (
	"time"

	"github.com/teslashibe/drowsy/pkg/fatigue"
)

const (
	Min = 0
	Max = 100
)

// Config holds penalty and recovery parameters.
type Config struct {
	YawnPenalty       int
	BlinkPenalty      int
	EyeClosureFloor   int           // Score forced up to at least this
	EyeClosureMin     time.Duration // Closure length that triggers the floor
	HoldAfterYawn     time.Duration // Recovery suppressed this long after a yawn
	BlinkLimit        int           // Blinks per BlinkWindow above which the blink penalty applies
	BlinkWindow       time.Duration
	RecoverStep       int
	RecoverPeriod     time.Duration
	FastRecoverStep   int
	FastRecoverPeriod time.Duration
	NoticeAt          int
	WarningAt         int
}

// DefaultConfig returns the standard scoring rules.
func DefaultConfig() Config {
	return Config{
		YawnPenalty:       25,
		BlinkPenalty:      10,
		EyeClosureFloor:   70,
		EyeClosureMin:     1000 * time.Millisecond,
		HoldAfterYawn:     2000 * time.Millisecond,
		BlinkLimit:        25,
		BlinkWindow:       60 * time.Second,
		RecoverStep:       1,
		RecoverPeriod:     1500 * time.Millisecond,
		FastRecoverStep:   3,
		FastRecoverPeriod: 1000 * time.Millisecond,
		NoticeAt:          31,
		WarningAt:         61,
	}
}

// Input is what one frame contributes to scoring.
type Input struct {
	EyeClosure   time.Duration // Current closure length
	Yawn         bool          // A yawn was observed this frame by either channel
	RecentBlinks int           // Blinks within BlinkWindow
	Fast         bool          // Use the fast recovery rate
}

// Rule names the scoring rule applied by Evaluate.
type Rule string

const (
	RuleEyeClosure Rule = "eye_closure"
	RuleYawn       Rule = "yawn"
	RuleBlinks     Rule = "blinks"
	RuleRecover    Rule = "recover"
)

// Engine is owned by a single detection session. Not safe for concurrent use.
type Engine struct {
	cfg Config

	score         int
	lastRecoverAt time.Time
	holdUntil     time.Time
}

// New creates an engine at score 0.
func New(cfg Config) *Engine {
	return &Engine{cfg: cfg}
}

// Evaluate applies exactly one rule, in priority order, and returns it.
func (e *Engine) Evaluate(in Input, now time.Time) Rule {
	switch {
	case in.EyeClosure >= e.cfg.EyeClosureMin:
		e.score = max(e.score, e.cfg.EyeClosureFloor)
		return RuleEyeClosure
	case in.Yawn:
		e.add(e.cfg.YawnPenalty)
		if hold := now.Add(e.cfg.HoldAfterYawn); hold.After(e.holdUntil) {
			e.holdUntil = hold
		}
		return RuleYawn
	case in.RecentBlinks > e.cfg.BlinkLimit:
		e.add(e.cfg.BlinkPenalty)
		return RuleBlinks
	default:
		e.recover(now, in.Fast)
		return RuleRecover
	}
}

func (e *Engine) add(n int) {
	e.score = min(e.score+n, Max)
}

func (e *Engine) recover(now time.Time, fast bool) {
	if now.Before(e.holdUntil) {
		return
	}
	step, period := e.cfg.RecoverStep, e.cfg.RecoverPeriod
	if fast {
		step, period = e.cfg.FastRecoverStep, e.cfg.FastRecoverPeriod
	}
	if e.lastRecoverAt.IsZero() {
		e.lastRecoverAt = now
		return
	}
	if now.Sub(e.lastRecoverAt) >= period && e.score > Min {
		e.score = max(e.score-step, Min)
		e.lastRecoverAt = now
	}
}

// Score returns the current score.
func (e *Engine) Score() int { return e.score }

// Level maps the score onto the fatigue levels.
func (e *Engine) Level() fatigue.Level {
	switch {
	case e.score >= e.cfg.WarningAt:
		return fatigue.LevelWarning
	case e.score >= e.cfg.NoticeAt:
		return fatigue.LevelNotice
	default:
		return fatigue.LevelNormal
	}
}

// Holding reports whether recovery is suppressed at now.
func (e *Engine) Holding(now time.Time) bool {
	return now.Before(e.holdUntil)
}

// Reset returns the engine to score 0 with no hold.
func (e *Engine) Reset() {
	e.score = 0
	e.lastRecoverAt = time.Time{}
	e.holdUntil = time.Time{}
}
