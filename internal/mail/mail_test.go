package mail

import (
	"context"
	"encoding/json"
	"errors"
	"net/smtp"
	"strings"
	"sync"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type fakeTransport struct {
	mu       sync.Mutex
	failures map[string]int
	sent     []Message
	attempts map[string]int
}

func (f *fakeTransport) Send(_ context.Context, msg Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.attempts == nil {
		f.attempts = map[string]int{}
	}
	f.attempts[msg.Email]++
	if f.failures[msg.Email] > 0 {
		f.failures[msg.Email]--
		return errors.New("connection refused")
	}
	f.sent = append(f.sent, msg)
	return nil
}

func noWait(context.Context, time.Duration) error { return nil }

func TestQueueDeliversAndRetries(t *testing.T) {
	tr := &fakeTransport{failures: map[string]int{"flaky@x.com": 2, "dead@x.com": 10}}
	core, observed := observer.New(zapcore.DebugLevel)

	q := NewQueue(tr, QueueConfig{Workers: 3, MaxRetries: 3}, zap.New(core))
	q.wait = noWait
	q.Start(context.Background())

	q.Enqueue("<p>hi</p>", "ok@x.com", "Ok", "Hello")
	q.Enqueue("<p>hi</p>", "flaky@x.com", "Flaky", "Hello")
	q.Enqueue("<p>hi</p>", "dead@x.com", "Dead", "Hello")
	q.Close()

	var delivered []string
	for _, m := range tr.sent {
		delivered = append(delivered, m.Email)
	}
	assert.ElementsMatch(t, []string{"ok@x.com", "flaky@x.com"}, delivered)
	assert.Equal(t, 3, tr.attempts["flaky@x.com"])
	assert.Equal(t, 3, tr.attempts["dead@x.com"])
	assert.Equal(t, 1, observed.FilterMessage("mail delivery failed, message dropped").Len())
}

func TestQueueDropsAfterClose(t *testing.T) {
	tr := &fakeTransport{}
	core, observed := observer.New(zapcore.WarnLevel)

	q := NewQueue(tr, QueueConfig{}, zap.New(core))
	q.Start(context.Background())
	q.Close()
	q.Close()

	q.Enqueue("<p>late</p>", "late@x.com", "Late", "Hello")

	assert.Empty(t, tr.sent)
	assert.Equal(t, 1, observed.FilterMessage("mail queue closed, message dropped").Len())
}

func TestQueueDropsWhenFull(t *testing.T) {
	tr := &fakeTransport{}
	core, observed := observer.New(zapcore.WarnLevel)

	q := NewQueue(tr, QueueConfig{Size: 1}, zap.New(core))
	q.Enqueue("a", "a@x.com", "A", "s")
	q.Enqueue("b", "b@x.com", "B", "s")

	assert.Equal(t, 1, observed.FilterMessage("mail queue full, message dropped").Len())

	q.Close()
	assert.Empty(t, tr.sent)
	assert.Equal(t, 1, observed.FilterMessage("mail queue never started, message dropped").Len())
}

func TestQueueStopsRetryingOnCancel(t *testing.T) {
	tr := &fakeTransport{failures: map[string]int{"x@x.com": 10}}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	q := NewQueue(tr, QueueConfig{Workers: 1, MaxRetries: 5, RetryBackoff: time.Hour}, nil)
	q.Start(ctx)
	q.Enqueue("<p/>", "x@x.com", "X", "s")
	q.Close()

	assert.Equal(t, 1, tr.attempts["x@x.com"])
}

func TestSMTPTransportComposesHTMLMail(t *testing.T) {
	tr, err := NewSMTPTransport(SMTPConfig{
		Host:     "smtp.example.com",
		Username: "bot",
		Password: "secret",
		From:     "Jobs <jobs@example.com>",
	})
	require.NoError(t, err)
	tr.now = func() time.Time { return time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC) }

	var (
		gotAddr string
		gotFrom string
		gotTo   []string
		gotMsg  string
	)
	tr.send = func(addr string, _ smtp.Auth, from string, to []string, msg []byte) error {
		gotAddr, gotFrom, gotTo, gotMsg = addr, from, to, string(msg)
		return nil
	}

	require.NoError(t, tr.Send(context.Background(), Message{
		HTML:    "<p>Hello</p>",
		Email:   "jane@x.com",
		Name:    "Jane Doe",
		Subject: "Your application",
	}))

	assert.Equal(t, "smtp.example.com:587", gotAddr)
	assert.Equal(t, "jobs@example.com", gotFrom)
	assert.Equal(t, []string{"jane@x.com"}, gotTo)
	assert.Contains(t, gotMsg, "To: \"Jane Doe\" <jane@x.com>\r\n")
	assert.Contains(t, gotMsg, "Subject: Your application\r\n")
	assert.Contains(t, gotMsg, "Content-Type: text/html; charset=\"UTF-8\"\r\n")
	assert.True(t, strings.HasSuffix(gotMsg, "\r\n\r\n<p>Hello</p>"))

	_, err = NewSMTPTransport(SMTPConfig{Host: "smtp.example.com", From: "not-an-address"})
	require.Error(t, err)
}

type fakePublisher struct {
	exchange, key string
	msg           amqp.Publishing
}

func (f *fakePublisher) PublishWithContext(_ context.Context, exchange, key string, _, _ bool, msg amqp.Publishing) error {
	f.exchange, f.key, f.msg = exchange, key, msg
	return nil
}

func TestAMQPTransportPublishesJSON(t *testing.T) {
	pub := &fakePublisher{}
	tr := newAMQPTransport(pub, "notifications", "")

	require.NoError(t, tr.Send(context.Background(), Message{HTML: "<p/>", Email: "a@x.com", Name: "A", Subject: "S"}))

	assert.Equal(t, "notifications", pub.exchange)
	assert.Equal(t, "mail", pub.key)
	assert.Equal(t, "application/json", pub.msg.ContentType)
	assert.Equal(t, uint8(amqp.Persistent), pub.msg.DeliveryMode)

	var got Message
	require.NoError(t, json.Unmarshal(pub.msg.Body, &got))
	assert.Equal(t, "a@x.com", got.Email)
	assert.NoError(t, tr.Close())
}

func TestTemplates(t *testing.T) {
	body, err := RenderShortlisted(Decision{CandidateName: "Jane <Doe>", JobTitle: "Backend Engineer", Company: "Acme", Score: 0.82})
	require.NoError(t, err)
	assert.Contains(t, body, "Jane &lt;Doe&gt;")
	assert.Contains(t, body, "Backend Engineer")
	assert.Contains(t, body, "82%")

	body, err = RenderRejected(Decision{CandidateName: "Joe", JobTitle: "Designer"})
	require.NoError(t, err)
	assert.Contains(t, body, "not be moving forward")
	assert.NotContains(t, body, " at ")

	body, err = RenderSummary(Summary{
		RecruiterName: "Rita",
		JobTitle:      "Backend Engineer",
		Total:         2,
		Shortlisted:   []ShortlistEntry{{Name: "Jane", Email: "jane@x.com", Score: 0.9}},
	})
	require.NoError(t, err)
	assert.Contains(t, body, "1 of 2 applicants")
	assert.Contains(t, body, "jane@x.com")

	body, err = RenderSummary(Summary{RecruiterName: "Rita", JobTitle: "QA", Total: 1})
	require.NoError(t, err)
	assert.Contains(t, body, "No candidate passed")
}
