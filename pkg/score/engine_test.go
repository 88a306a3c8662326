package score

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teslashibe/drowsy/pkg/fatigue"
)

var t0 = time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)

func at(ms int) time.Time {
	return t0.Add(time.Duration(ms) * time.Millisecond)
}

func TestYawnPenaltyHoldAndRecovery(t *testing.T) {
	e := New(DefaultConfig())

	require.Equal(t, RuleYawn, e.Evaluate(Input{Yawn: true}, at(0)))
	require.Equal(t, 25, e.Score())

	scores := map[int]int{}
	for ms := 100; ms <= 6600; ms += 100 {
		e.Evaluate(Input{}, at(ms))
		scores[ms] = e.Score()
	}

	assert.Equal(t, 25, scores[1900], "held")
	assert.Equal(t, 25, scores[2000], "first recovery tick only starts the clock")
	assert.Equal(t, 25, scores[3400])
	assert.Equal(t, 24, scores[3500])
	assert.Equal(t, 24, scores[4900])
	assert.Equal(t, 23, scores[5000])
	assert.Equal(t, 22, scores[6500])
}

func TestRecoveryReachesZero(t *testing.T) {
	e := New(DefaultConfig())
	e.Evaluate(Input{Yawn: true}, at(0))

	for ms := 100; ms <= 60000; ms += 100 {
		e.Evaluate(Input{}, at(ms))
	}
	assert.Equal(t, 0, e.Score())
	assert.Equal(t, fatigue.LevelNormal, e.Level())
}

func TestFastRecovery(t *testing.T) {
	e := New(DefaultConfig())
	e.Evaluate(Input{Yawn: true}, at(0))
	e.Evaluate(Input{Yawn: true}, at(0))
	require.Equal(t, 50, e.Score())

	e.Evaluate(Input{Fast: true}, at(2000))
	e.Evaluate(Input{Fast: true}, at(2999))
	assert.Equal(t, 50, e.Score())
	e.Evaluate(Input{Fast: true}, at(3000))
	assert.Equal(t, 47, e.Score())
	e.Evaluate(Input{Fast: true}, at(4000))
	assert.Equal(t, 44, e.Score())
}

func TestEyeClosureFloor(t *testing.T) {
	tests := []struct {
		name    string
		start   int
		closure time.Duration
		want    int
	}{
		{"forces up", 0, time.Second, 70},
		{"never forces down", 4, time.Second, 100},
		{"below minimum recovers instead", 0, 999 * time.Millisecond, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := New(DefaultConfig())
			for i := 0; i < tt.start; i++ {
				e.Evaluate(Input{Yawn: true}, at(0))
			}
			e.Evaluate(Input{EyeClosure: tt.closure}, at(100))
			assert.Equal(t, tt.want, e.Score())
		})
	}
}

func TestRulePriority(t *testing.T) {
	e := New(DefaultConfig())

	rule := e.Evaluate(Input{EyeClosure: 2 * time.Second, Yawn: true, RecentBlinks: 40}, at(0))
	assert.Equal(t, RuleEyeClosure, rule)
	assert.Equal(t, 70, e.Score(), "yawn penalty is not added on top")
	assert.False(t, e.Holding(at(100)))

	rule = e.Evaluate(Input{Yawn: true, RecentBlinks: 40}, at(100))
	assert.Equal(t, RuleYawn, rule)
	assert.Equal(t, 95, e.Score())

	rule = e.Evaluate(Input{RecentBlinks: 40}, at(200))
	assert.Equal(t, RuleBlinks, rule)
	assert.Equal(t, Max, e.Score())
}

func TestBlinkLimitIsExclusive(t *testing.T) {
	e := New(DefaultConfig())

	assert.Equal(t, RuleRecover, e.Evaluate(Input{RecentBlinks: 25}, at(0)))
	assert.Equal(t, RuleBlinks, e.Evaluate(Input{RecentBlinks: 26}, at(100)))
	assert.Equal(t, 10, e.Score())
}

func TestLevel(t *testing.T) {
	tests := []struct {
		yawns int
		want  fatigue.Level
	}{
		{0, fatigue.LevelNormal},
		{1, fatigue.LevelNormal},
		{2, fatigue.LevelNotice},
		{3, fatigue.LevelWarning},
	}

	for _, tt := range tests {
		t.Run(tt.want.String(), func(t *testing.T) {
			e := New(DefaultConfig())
			for i := 0; i < tt.yawns; i++ {
				e.Evaluate(Input{Yawn: true}, at(0))
			}
			assert.Equal(t, tt.want, e.Level())
		})
	}
}

func TestReset(t *testing.T) {
	e := New(DefaultConfig())
	e.Evaluate(Input{Yawn: true}, at(0))

	e.Reset()

	assert.Equal(t, 0, e.Score())
	assert.False(t, e.Holding(at(100)))
}
