package session

import (
	"context"

	"github.com/couchcryptid/complaint-map-console/internal/domain"
	"github.com/couchcryptid/complaint-map-console/internal/draw"
	"github.com/couchcryptid/complaint-map-console/internal/panel"
	"github.com/couchcryptid/complaint-map-console/internal/report"
)

// EventType is the kind of a client event.
type EventType string

const (
	EventDraw         EventType = "draw"
	EventMoveEnd      EventType = "move_end"
	EventDismissPanel EventType = "dismiss_panel"
	EventOpenReport   EventType = "open_report"
	EventCloseReport  EventType = "close_report"
)

// Event is one UI event sent by the client.
type Event struct {
	Type     EventType           `json:"type"`
	Kind     draw.Kind           `json:"kind,omitempty"`     // draw
	Vertices []domain.Coordinate `json:"vertices,omitempty"` // draw
	Center   *domain.Coordinate  `json:"center,omitempty"`   // move_end
}

// FrameType is the kind of a server frame.
type FrameType string

const (
	FrameHello   FrameType = "hello"
	FrameLabels  FrameType = "labels"
	FrameHeat    FrameType = "heat"
	FrameAddress FrameType = "address"
	FramePanel   FrameType = "panel"
	FrameReport  FrameType = "report"
	FrameError   FrameType = "error"
)

// Frame is one view update pushed to the client. Only the field matching
// Type is set. Labels and Heat are full replacements, so an empty set is
// sent as [] rather than omitted.
type Frame struct {
	Type    FrameType              `json:"type"`
	Hello   *Hello                 `json:"hello,omitempty"`
	Labels  *[]domain.OverlayPoint `json:"labels,omitempty"`
	Heat    *[][3]float64          `json:"heat,omitempty"`
	Address string                 `json:"address,omitempty"`
	Panel   *panel.View            `json:"panel,omitempty"`
	Report  *ReportState           `json:"report,omitempty"`
	Error   string                 `json:"error,omitempty"`
}

// Hello is the first frame of a session: everything the client needs to set
// up its map before the first overlay arrives.
type Hello struct {
	SessionID string          `json:"session_id"`
	Style     domain.MapStyle `json:"style"`
	Tools     []draw.Tool     `json:"tools"`
	Address   string          `json:"address"`
}

// ReportState is the report modal. Modal is nil while closed.
type ReportState struct {
	Open  bool          `json:"open"`
	Modal *report.Modal `json:"modal,omitempty"`
}

// Sink delivers frames to the client. Send may block until the frame is
// accepted or ctx is done.
type Sink interface {
	Send(ctx context.Context, f Frame) error
}
