package main

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/teslashibe/drowsy/internal/httpc"
	"github.com/teslashibe/drowsy/pkg/fatigue"
	"github.com/teslashibe/drowsy/pkg/landmark"
	"github.com/teslashibe/drowsy/pkg/protocol"
)

// remote streams frames to a running drowsyd as an extractor.
type remote struct {
	base    string // http(s)://host:port
	session string
	conn    *websocket.Conn
}

func wsURL(base, session string) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", err
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return "", fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	u.Path = strings.TrimSuffix(u.Path, "/") + "/ws/session/" + session
	return u.String(), nil
}

func httpBase(base string) string {
	base = strings.TrimSuffix(base, "/")
	switch {
	case strings.HasPrefix(base, "ws://"):
		return "http://" + strings.TrimPrefix(base, "ws://")
	case strings.HasPrefix(base, "wss://"):
		return "https://" + strings.TrimPrefix(base, "wss://")
	}
	return base
}

func dialRemote(ctx context.Context, base, session string) (*remote, error) {
	target, err := wsURL(base, session)
	if err != nil {
		return nil, err
	}
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, target, nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", target, err)
	}
	return &remote{base: httpBase(base), session: session, conn: conn}, nil
}

func (r *remote) Close() error {
	r.conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	return r.conn.Close()
}

func (r *remote) send(msg *protocol.Message, err error) error {
	if err != nil {
		return err
	}
	data, err := msg.Bytes()
	if err != nil {
		return err
	}
	return r.conn.WriteMessage(websocket.TextMessage, data)
}

// await reads until a message of type want arrives, printing notifications
// seen on the way. Server errors are returned.
func (r *remote) await(want protocol.MessageType, timeout time.Duration) (*protocol.Message, error) {
	r.conn.SetReadDeadline(time.Now().Add(timeout))
	for {
		_, data, err := r.conn.ReadMessage()
		if err != nil {
			return nil, err
		}
		msg, err := protocol.ParseMessage(data)
		if err != nil {
			return nil, err
		}
		switch msg.Type {
		case want:
			return msg, nil
		case protocol.TypeError:
			var ed protocol.ErrorData
			msg.ParseData(&ed)
			return nil, fmt.Errorf("server: %s", ed.Error)
		case protocol.TypeState:
			var sd protocol.StateData
			if msg.ParseData(&sd) == nil {
				fmt.Printf("🔀 %s → %s\n", sd.From, sd.To)
			}
		case protocol.TypeAlert:
			var ad protocol.AlertData
			if msg.ParseData(&ad) == nil {
				fmt.Printf("🔔 %s\n", ad.Kind)
			}
		}
	}
}

// replayRemote sends hello, then every frame, waiting for each result.
func replayRemote(ctx context.Context, base, session string, frames []protocol.FrameData, opts replayOptions) (fatigue.Report, error) {
	r, err := dialRemote(ctx, base, session)
	if err != nil {
		return fatigue.Report{}, err
	}
	defer r.Close()

	if err := r.send(protocol.NewHelloMessage(landmark.SchemaMeshBlendshapes, landmark.SchemaMesh)); err != nil {
		return fatigue.Report{}, err
	}
	msg, err := r.await(protocol.TypeWelcome, 5*time.Second)
	if err != nil {
		return fatigue.Report{}, fmt.Errorf("handshake: %w", err)
	}
	welcome, err := msg.GetWelcomeData()
	if err != nil {
		return fatigue.Report{}, err
	}
	fmt.Printf("🤝 session %s schema %s at %d fps\n", welcome.Session, welcome.SchemaName, welcome.FPS)

	var prev protocol.FrameData
	for i := range frames {
		if err := ctx.Err(); err != nil {
			break
		}
		if opts.realtime && i > 0 {
			time.Sleep(gap(prev, frames[i], opts.maxGap))
		}
		prev = frames[i]

		if err := r.send(protocol.NewMessage(protocol.TypeFrame, frames[i])); err != nil {
			return fatigue.Report{}, err
		}
		msg, err := r.await(protocol.TypeResult, 5*time.Second)
		if err != nil {
			return fatigue.Report{}, fmt.Errorf("frame %d: %w", i, err)
		}
		res, err := msg.GetResultData()
		if err != nil {
			return fatigue.Report{}, err
		}
		printResult(i, *res, opts.verbose)
	}

	var report fatigue.Report
	reportURL := fmt.Sprintf("%s/api/sessions/%s/report", r.base, url.PathEscape(session))
	if err := httpc.GetJSON(ctx, reportURL, &report); err != nil {
		return report, fmt.Errorf("fetch report: %w", err)
	}
	return report, nil
}

// deleteSession removes the session from the server.
func deleteSession(ctx context.Context, base, session string) error {
	u := fmt.Sprintf("%s/api/sessions/%s", httpBase(base), url.PathEscape(session))
	return httpc.DoJSON(ctx, "DELETE", u, nil, nil)
}
