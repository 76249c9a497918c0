package server

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/vango-dev/filterbind/internal/errors"
	"github.com/vango-dev/filterbind/pkg/filter"
	"github.com/vango-dev/filterbind/pkg/navigation"
	"github.com/vango-dev/filterbind/pkg/protocol"
)

const writeTimeout = 5 * time.Second

// Session is one websocket connection with its own history and filters.
type Session struct {
	ID string

	ctx     context.Context
	conn    *websocket.Conn
	history *navigation.History
	metrics *Metrics
	tracer  trace.Tracer
	logger  *slog.Logger

	fields map[string]Field
	order  []string

	writeMu   sync.Mutex
	closeOnce sync.Once

	// urlMu orders url frames; clientURL is the address the client shows.
	urlMu     sync.Mutex
	clientURL string
}

// randRead fills session IDs. Tests replace it.
var randRead = rand.Read

func newSessionID() (string, error) {
	var b [8]byte
	if _, err := randRead(b[:]); err != nil {
		return "", err
	}
	return hex.EncodeToString(b[:]), nil
}

// bind creates one field per declared filter. Bindings navigate through a
// sessionRouter so every commit is traced and forwarded to the client.
func (s *Session) bind(srv *Server) error {
	router := sessionRouter{History: s.history, session: s}

	s.fields = make(map[string]Field, len(srv.cfg.Filters))
	for _, fc := range srv.cfg.Filters {
		name := fc.Name
		f, err := NewField(fc, router,
			filter.WithLogger(s.logger),
			filter.OnCommit(s.metrics.commit),
			filter.OnReconcile(s.metrics.reconcile),
			filter.OnError(func(err error) {
				s.metrics.navigationError(name)
				s.logger.Error("filter navigation failed", "filter", name, "error", err)
				s.send(protocol.NewErrorMessage(err))
			}),
		)
		if err != nil {
			s.closeFields()
			return err
		}
		s.fields[name] = f
		s.order = append(s.order, name)
	}
	return nil
}

// Values returns the current value of every filter.
func (s *Session) Values() map[string]any {
	out := make(map[string]any, len(s.order))
	for _, name := range s.order {
		out[name] = s.fields[name].Current()
	}
	return out
}

// History returns the session's navigation history.
func (s *Session) History() *navigation.History {
	return s.history
}

// readLoop handles client frames until the connection fails.
func (s *Session) readLoop() {
	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.logger.Warn("websocket read failed", "error", err)
			}
			return
		}

		msg, err := protocol.DecodeClient(data)
		if err != nil {
			s.metrics.message("invalid", err)
			s.send(protocol.NewErrorMessage(err))
			continue
		}

		err = s.handle(msg)
		s.metrics.message(msg.Type, err)
		if err != nil {
			s.logger.Debug("message rejected", "type", msg.Type, "error", err)
			s.send(protocol.NewErrorMessage(err))
		}
	}
}

func (s *Session) handle(msg protocol.ClientMessage) error {
	switch msg.Type {
	case protocol.TypeInput:
		f, ok := s.fields[msg.Name]
		if !ok {
			return errors.New("F002").WithDetailf("%q", msg.Name)
		}
		return f.SetJSON(msg.Value)

	case protocol.TypeNavigate:
		loc, err := navigation.ParseLocation(msg.Href)
		if err != nil {
			return err
		}
		s.setClientURL(loc.Href())

		// Subscribers run synchronously, so every binding has reconciled
		// by the time Visit returns. Bindings with a zero delay have
		// already committed too, and their url frames precede the state.
		if err := s.history.Visit(msg.Href); err != nil {
			return err
		}
		return s.send(protocol.NewStateMessage(s.Values()))

	case protocol.TypeFlush:
		for _, name := range s.order {
			s.fields[name].Flush()
		}
		return nil
	}
	return errors.New("F005").WithDetailf("%q", msg.Type)
}

// send writes one frame. It is safe to call from binding timer goroutines.
func (s *Session) send(msg protocol.ServerMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	s.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return s.conn.WriteMessage(websocket.TextMessage, data)
}

func (s *Session) setClientURL(href string) {
	s.urlMu.Lock()
	s.clientURL = href
	s.urlMu.Unlock()
}

// syncURL sends the current location to the client if it differs from the
// last one sent. Reading the location under urlMu guarantees the last frame
// sent carries the latest location even when commits race.
func (s *Session) syncURL(mode navigation.Mode, opts navigation.Options) (bool, error) {
	s.urlMu.Lock()
	defer s.urlMu.Unlock()

	href := s.history.Current().Href()
	if href == s.clientURL {
		return false, nil
	}
	if err := s.send(protocol.NewURLMessage(mode.String(), href, opts.Scroll)); err != nil {
		return false, err
	}
	s.clientURL = href
	return true, nil
}

func (s *Session) closeFields() {
	for _, f := range s.fields {
		f.Close()
	}
}

// Close stops all filters and closes the connection.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		s.closeFields()
		s.writeMu.Lock()
		s.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		s.writeMu.Unlock()
		s.conn.Close()
	})
}

// sessionRouter is the filter.Router handed to a session's bindings.
type sessionRouter struct {
	*navigation.History
	session *Session
}

// Update applies a binding commit inside a span and forwards the resulting
// URL to the client.
func (r sessionRouter) Update(fn func(navigation.Location) (string, navigation.Mode, navigation.Options)) error {
	s := r.session
	_, span := s.tracer.Start(s.ctx, "filter.navigate",
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(attribute.String("filterd.session_id", s.ID)),
	)
	defer span.End()

	var mode navigation.Mode
	var opts navigation.Options
	err := r.History.Update(func(cur navigation.Location) (string, navigation.Mode, navigation.Options) {
		var href string
		href, mode, opts = fn(cur)
		span.SetAttributes(
			attribute.String("filter.href", href),
			attribute.String("filter.mode", mode.String()),
		)
		return href, mode, opts
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	sent, err := s.syncURL(mode, opts)
	span.SetAttributes(attribute.Bool("filter.changed", sent))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	span.SetStatus(codes.Ok, "")
	return nil
}

var _ filter.Router = sessionRouter{}
