package sink

import (
	"context"
	"time"

	"github.com/jonboulle/clockwork"

	"brandsite/internal/model"
)

// Sender delivers one telemetry envelope to its store or transport.
type Sender interface {
	Send(ctx context.Context, env model.Envelope) error
}

// SenderFunc adapts a function to Sender.
type SenderFunc func(ctx context.Context, env model.Envelope) error

// Send calls f.
func (f SenderFunc) Send(ctx context.Context, env model.Envelope) error {
	return f(ctx, env)
}

// Recorder turns tracker writes into envelopes for a Sender.
type Recorder struct {
	sender Sender
	clock  clockwork.Clock
}

// NewRecorder wraps sender. A nil clock means the real clock.
func NewRecorder(sender Sender, clock clockwork.Clock) *Recorder {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Recorder{sender: sender, clock: clock}
}

func (r *Recorder) InsertPageView(ctx context.Context, pv model.PageView) error {
	return r.send(ctx, model.Envelope{Kind: model.KindPageViewInsert, PageView: &pv})
}

func (r *Recorder) UpdatePageView(ctx context.Context, pv model.PageView) error {
	return r.send(ctx, model.Envelope{Kind: model.KindPageViewUpdate, PageView: &pv})
}

func (r *Recorder) InsertButtonClick(ctx context.Context, click model.ButtonClick) error {
	return r.send(ctx, model.Envelope{Kind: model.KindButtonClick, ButtonClick: &click})
}

func (r *Recorder) InsertFunnelEvent(ctx context.Context, evt model.FunnelEvent) error {
	return r.send(ctx, model.Envelope{Kind: model.KindFunnelEvent, FunnelEvent: &evt})
}

func (r *Recorder) send(ctx context.Context, env model.Envelope) error {
	env.SentAt = r.clock.Now().UTC().Truncate(time.Millisecond)
	return r.sender.Send(ctx, env)
}
