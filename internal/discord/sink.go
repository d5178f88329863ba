package discord

import (
	"context"

	"github.com/slskdbot/slskd-bot/internal/notify"
)

// Sink delivers notifications through a Discord session.
type Sink struct {
	session Session
}

// NewSink wraps a session as a notify.Sink.
func NewSink(session Session) *Sink {
	return &Sink{session: session}
}

// ResolveUser implements notify.Sink.
func (s *Sink) ResolveUser(ctx context.Context, id string) (notify.User, error) {
	u, err := s.session.User(id, withCtx(ctx))
	if err != nil {
		return notify.User{}, err
	}
	return notify.User{ID: u.ID, Mention: u.Mention()}, nil
}

// ResolveChannel implements notify.Sink.
func (s *Sink) ResolveChannel(ctx context.Context, id string) (notify.Channel, error) {
	c, err := s.session.Channel(id, withCtx(ctx))
	if err != nil {
		return notify.Channel{}, err
	}
	return notify.Channel{ID: c.ID, Name: c.Name}, nil
}

// Send implements notify.Sink.
func (s *Sink) Send(ctx context.Context, channelID, text string) error {
	_, err := s.session.ChannelMessageSend(channelID, text, withCtx(ctx))
	return err
}

var _ notify.Sink = (*Sink)(nil)
