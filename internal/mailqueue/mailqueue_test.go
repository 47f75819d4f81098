package mailqueue

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/sysu-ecnc-dev/job-board/backend/internal/domain"
)

type fakeChannel struct {
	key  string
	msgs []amqp.Publishing
	err  error
}

func (f *fakeChannel) PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error {
	if _, ok := ctx.Deadline(); !ok {
		return errors.New("publish without deadline")
	}
	f.key = key
	f.msgs = append(f.msgs, msg)
	return f.err
}

func TestSend(t *testing.T) {
	ch := &fakeChannel{}
	p := NewPublisher(ch, "", time.Second)

	err := p.Send(context.Background(), domain.MailMessage{
		Type: domain.MailVerifyEmail,
		To:   "alice@example.com",
		Data: domain.VerifyEmailMailData{Username: "alice", Link: "http://x/verify?token=t", Expiration: 24},
	})
	require.NoError(t, err)
	require.Len(t, ch.msgs, 1)
	assert.Equal(t, DefaultQueue, ch.key)
	assert.Equal(t, "application/json", ch.msgs[0].ContentType)
	assert.Equal(t, domain.MailVerifyEmail, ch.msgs[0].Type)

	var got struct {
		Type string         `json:"type"`
		To   string         `json:"to"`
		Data map[string]any `json:"data"`
	}
	require.NoError(t, json.Unmarshal(ch.msgs[0].Body, &got))
	assert.Equal(t, "verify_email", got.Type)
	assert.Equal(t, "alice@example.com", got.To)
	assert.Equal(t, "alice", got.Data["username"])
}

func TestSendPropagatesErrors(t *testing.T) {
	ch := &fakeChannel{err: amqp.ErrClosed}
	p := NewPublisher(ch, "mails", time.Second)

	err := p.Send(context.Background(), domain.MailMessage{Type: domain.MailResetPassword})
	assert.ErrorIs(t, err, amqp.ErrClosed)
	assert.Equal(t, "mails", ch.key)
}
