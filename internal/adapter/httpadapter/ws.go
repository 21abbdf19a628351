package httpadapter

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/couchcryptid/complaint-map-console/internal/session"
)

const (
	wsWriteWait      = 10 * time.Second
	wsPongWait       = 60 * time.Second
	wsPingPeriod     = wsPongWait * 9 / 10
	wsMaxMessageSize = 64 << 10
	wsSendBuffer     = 64
)

var errConnClosed = errors.New("websocket connection closed")

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin:     func(*http.Request) bool { return true },
}

// wsSink queues frames for the connection's writer goroutine.
type wsSink struct {
	out  chan session.Frame
	done <-chan struct{}
}

func (s *wsSink) Send(ctx context.Context, f session.Frame) error {
	select {
	case s.out <- f:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-s.done:
		return errConnClosed
	}
}

// handleWS mounts one map view for the lifetime of the connection.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already replied with an HTTP error.
		s.logger.Debug("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	stop := context.AfterFunc(s.baseCtx, cancel)
	defer stop()

	sink := &wsSink{out: make(chan session.Frame, wsSendBuffer), done: ctx.Done()}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		defer cancel()
		s.writeLoop(ctx, conn, sink.out)
	}()

	sess := s.hub.Open(ctx, sink)
	if sess == nil {
		cancel()
		wg.Wait()
		return
	}
	logger := s.logger.With("session", sess.ID())
	logger.Info("map view connected", "remote", r.RemoteAddr)

	s.readLoop(ctx, conn, sess, sink)

	s.hub.Close(sess.ID())
	cancel()
	wg.Wait()
	logger.Info("map view disconnected")
}

func (s *Server) readLoop(ctx context.Context, conn *websocket.Conn, sess *session.Session, sink *wsSink) {
	conn.SetReadLimit(wsMaxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) && ctx.Err() == nil {
				s.logger.Warn("websocket read failed", "session", sess.ID(), "error", err)
			}
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))

		var e session.Event
		if err := json.Unmarshal(data, &e); err != nil {
			_ = sink.Send(ctx, session.Frame{Type: session.FrameError, Error: "malformed event"})
			continue
		}
		// Rejections are reported to the client by the session itself.
		_ = sess.HandleEvent(e)
	}
}

func (s *Server) writeLoop(ctx context.Context, conn *websocket.Conn, out <-chan session.Frame) {
	ticker := time.NewTicker(wsPingPeriod)
	defer ticker.Stop()
	// Unblocks the reader once writing is over.
	defer conn.Close()

	for {
		select {
		case f := <-out:
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteJSON(f); err != nil {
				s.logger.Debug("websocket write failed", "error", err)
				return
			}
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteWait)); err != nil {
				return
			}
		case <-ctx.Done():
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(wsWriteWait))
			return
		}
	}
}
