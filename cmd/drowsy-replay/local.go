package main

import (
	"context"
	"fmt"
	"time"

	"github.com/teslashibe/drowsy/internal/log"
	"github.com/teslashibe/drowsy/pkg/detection"
	"github.com/teslashibe/drowsy/pkg/fatigue"
	"github.com/teslashibe/drowsy/pkg/landmark"
	"github.com/teslashibe/drowsy/pkg/protocol"
)

// printer reports machine notifications on stdout.
type printer struct {
	detection.NopNotifier
	verbose bool
}

func (p *printer) OnStateChanged(from, to detection.State) {
	fmt.Printf("🔀 %s → %s\n", from, to)
}

func (p *printer) OnNotice()  { fmt.Println("⚠️  notice") }
func (p *printer) OnWarning() { fmt.Println("🚨 warning") }
func (p *printer) OnNoFace()  { fmt.Println("👤 no face") }

func (p *printer) OnScoreUpdated(score int, level fatigue.Level) {
	if p.verbose {
		fmt.Printf("📊 score %d (%s)\n", score, level)
	}
}

func (p *printer) OnBlink() {
	if p.verbose {
		fmt.Println("👁  blink")
	}
}

func (p *printer) OnCalibrationCompleted(r fatigue.CalibrationResult) {
	fmt.Printf("🎯 calibrated: threshold %.3f\n", r.Threshold)
}

func (p *printer) OnError(err error) {
	fmt.Printf("❌ %v\n", err)
}

// replayLocal runs frames through an in-process machine using their own
// timestamps as the clock.
func replayLocal(ctx context.Context, cfg detection.Config, frames []protocol.FrameData, opts replayOptions) (fatigue.Report, error) {
	now := time.Now()
	m := detection.NewMachine(cfg,
		detection.WithNotifier(&printer{verbose: opts.verbose}),
		detection.WithLogger(log.Component("replay")),
		detection.WithClock(func() time.Time { return now }),
	)
	schema, err := m.Negotiate([]landmark.Schema{landmark.SchemaMeshBlendshapes, landmark.SchemaMesh})
	if err != nil {
		return fatigue.Report{}, err
	}
	m.Start()

	var prev protocol.FrameData
	for i := range frames {
		if err := ctx.Err(); err != nil {
			return m.Report(), err
		}
		if opts.realtime && i > 0 {
			time.Sleep(gap(prev, frames[i], opts.maxGap))
		}
		prev = frames[i]

		f := frames[i].Frame(schema)
		if f.Timestamp.IsZero() {
			now = now.Add(time.Second / time.Duration(cfg.FPS))
		} else {
			now = f.Timestamp
		}
		res := m.ProcessFrame(f)
		printResult(i, protocol.NewResultData("", res), opts.verbose)
	}
	return m.Report(), nil
}

func printResult(i int, r protocol.ResultData, verbose bool) {
	for _, ev := range r.Events {
		fmt.Printf("#%d event %s %dms\n", i, ev.Kind, ev.DurationMs)
	}
	if !verbose || r.Skipped {
		return
	}
	fmt.Printf("#%d face=%v ear=%.3f mar=%.3f level=%s\n", i, r.FaceDetected, r.EAR, r.MAR, r.Level)
}
