package email

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/dropDatabas3/gatehouse/internal/observability/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type captureSender struct {
	mu   sync.Mutex
	sent []Message
}

func (c *captureSender) Send(_ context.Context, m Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sent = append(c.sent, m)
	return nil
}

func TestMailer_RendersLink(t *testing.T) {
	cs := &captureSender{}
	m := NewMailer(cs, "https://app.example/")

	link, err := m.Send(context.Background(), KindPasswordReset, "a@x.io", "Ann", "tok/+", 15*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, "https://app.example/reset-password?token=tok%2F%2B", link)

	require.Len(t, cs.sent, 1)
	msg := cs.sent[0]
	assert.Equal(t, "a@x.io", msg.To)
	assert.Equal(t, "Reset your password", msg.Subject)
	assert.Contains(t, msg.Text, "Hi Ann,")
	assert.Contains(t, msg.Text, link)
	assert.Contains(t, msg.Text, "15m0s")
	assert.Contains(t, msg.HTML, `href="https://app.example/reset-password?token=tok%2F%2B"`)
}

func TestMailer_LinkKinds(t *testing.T) {
	m := NewMailer(&captureSender{}, "http://h")
	assert.Equal(t, "http://h/set-password?token=t", m.Link(KindActivation, "t"))
	assert.Equal(t, "http://h/register?token=t", m.Link(KindInvitation, "t"))
}

func TestThrottled_HonoursContext(t *testing.T) {
	cs := &captureSender{}
	th := NewThrottled(cs, 1)
	require.NoError(t, th.Send(context.Background(), Message{To: "a"}))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.Error(t, th.Send(ctx, Message{To: "b"}))
	assert.Len(t, cs.sent, 1)
}

func TestLogSender_OmitsBody(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	ctx := logger.ToContext(context.Background(), zap.New(core))

	m := NewMailer(LogSender{}, "https://app.example")
	link, err := m.Send(ctx, KindPasswordReset, "ann@example.com", "Ann", "secret-token", time.Hour)
	require.NoError(t, err)
	assert.Contains(t, link, "secret-token")

	require.Equal(t, 1, logs.Len())
	e := logs.All()[0]
	assert.Equal(t, "Reset your password", e.ContextMap()["subject"])
	for _, f := range e.Context {
		assert.NotContains(t, f.String, "secret-token", f.Key)
	}
	assert.NotEqual(t, "ann@example.com", e.ContextMap()["email"])
}
