package kafka

import (
	"context"
	"errors"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/require"

	"brandsite/internal/model"
)

type fakeWriter struct {
	msgs []kafka.Message
	err  error
}

func (f *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if f.err != nil {
		return f.err
	}
	f.msgs = append(f.msgs, msgs...)
	return nil
}

func (f *fakeWriter) Close() error { return nil }

func TestPublisherKeysBySession(t *testing.T) {
	w := &fakeWriter{}
	p := &Publisher{w: w}
	env := model.Envelope{
		Kind:        model.KindButtonClick,
		ButtonClick: &model.ButtonClick{SessionID: "sess-9", ButtonName: "Buy", ButtonType: model.ButtonPurchase},
	}
	require.NoError(t, p.Send(context.Background(), env))
	require.Len(t, w.msgs, 1)
	require.Equal(t, "sess-9", string(w.msgs[0].Key))

	got, err := Decode(w.msgs[0])
	require.NoError(t, err)
	require.Equal(t, model.KindButtonClick, got.Kind)
	require.Equal(t, "Buy", got.ButtonClick.ButtonName)
	require.Equal(t, model.ButtonPurchase, got.ButtonClick.ButtonType)
}

func TestPublisherWrapsWriteErrors(t *testing.T) {
	down := errors.New("broker down")
	p := &Publisher{w: &fakeWriter{err: down}}
	err := p.Send(context.Background(), model.Envelope{Kind: model.KindFunnelEvent, FunnelEvent: &model.FunnelEvent{}})
	require.ErrorIs(t, err, down)
}

func TestDecodeRejectsBadMessages(t *testing.T) {
	_, err := Decode(kafka.Message{Value: []byte("not json")})
	require.Error(t, err)
	_, err = Decode(kafka.Message{Value: []byte(`{"kind":"button_click"}`)})
	require.Error(t, err)
}
