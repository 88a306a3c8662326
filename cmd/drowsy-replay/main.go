// drowsy-replay: replays recorded or synthetic landmark frames through the
// detection engine, either in-process or against a running drowsyd.
//
//	drowsy-replay -file drive.jsonl
//	drowsy-replay -scenario open:3s,closed:1.5s,yawn:4s -verbose
//	drowsy-replay -file drive.jsonl -server http://localhost:8080 -session car1
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/teslashibe/drowsy/internal/config"
	"github.com/teslashibe/drowsy/internal/log"
	"github.com/teslashibe/drowsy/pkg/protocol"
)

type replayOptions struct {
	verbose  bool
	realtime bool
	maxGap   time.Duration
}

func main() {
	var (
		file     = flag.String("file", "", "JSONL file of frames (- for stdin)")
		scenario = flag.String("scenario", "open:2s,closed:1.5s,open:2s,yawn:4s,open:1s", "Synthetic scenario when no file is given")
		fps      = flag.Int("fps", 10, "Synthetic frame rate")
		server   = flag.String("server", "", "drowsyd base URL; empty replays in-process")
		session  = flag.String("session", "replay", "Session ID on the server")
		cleanup  = flag.Bool("cleanup", false, "Delete the server session afterwards")
		preset   = flag.String("preset", config.PresetStandard, "Detection preset for in-process replay")
		realtime = flag.Bool("realtime", false, "Pace frames by their timestamps")
		verbose  = flag.Bool("verbose", false, "Print every result")
		logLevel = flag.String("log-level", "warn", "Log level")
	)
	flag.Parse()
	log.Init(*logLevel)

	frames, err := loadFrames(*file, *scenario, *fps)
	if err != nil {
		fmt.Fprintf(os.Stderr, "❌ %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("🎞  %d frames\n", len(frames))

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	opts := replayOptions{verbose: *verbose, realtime: *realtime, maxGap: 2 * time.Second}

	cfg := config.Default().Detection
	cfg.Preset = *preset

	var report fmt.Stringer
	if *server == "" {
		r, err := replayLocal(ctx, cfg.Machine(), frames, opts)
		if err != nil && ctx.Err() == nil {
			fmt.Fprintf(os.Stderr, "❌ %v\n", err)
			os.Exit(1)
		}
		report = r
	} else {
		r, err := replayRemote(ctx, *server, *session, frames, opts)
		if err != nil {
			fmt.Fprintf(os.Stderr, "❌ %v\n", err)
			os.Exit(1)
		}
		report = r
		if *cleanup {
			if err := deleteSession(ctx, *server, *session); err != nil {
				fmt.Fprintf(os.Stderr, "⚠️  cleanup: %v\n", err)
			}
		}
	}

	fmt.Println()
	fmt.Print(report.String())
}

func loadFrames(file, scenario string, fps int) ([]protocol.FrameData, error) {
	if file == "" {
		phases, err := parseScenario(scenario)
		if err != nil {
			return nil, err
		}
		return synthesize(phases, fps, time.Now()), nil
	}

	var r io.Reader = os.Stdin
	if file != "-" {
		f, err := os.Open(file)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		r = f
	}
	return readFrames(r)
}
