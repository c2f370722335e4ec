package mail

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime"
	"net"
	"net/mail"
	"net/smtp"
	"strings"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/spigell/jobmatch/internal/logger"
)

// LogTransport writes messages to the log instead of sending them.
type LogTransport struct {
	logger *zap.Logger
}

func NewLogTransport(l *zap.Logger) *LogTransport {
	return &LogTransport{logger: logger.WithComponent(l, "mail")}
}

func (t *LogTransport) Send(_ context.Context, msg Message) error {
	t.logger.Info("mail message",
		zap.String("to", msg.Email),
		zap.String("name", msg.Name),
		zap.String("subject", msg.Subject),
		zap.Int("body_length", len(msg.HTML)),
	)
	return nil
}

// SMTPConfig is the relay to send through. Username may be empty.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// SMTPTransport sends HTML mail with PLAIN authentication.
type SMTPTransport struct {
	addr string
	from mail.Address
	auth smtp.Auth
	send func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
	now  func() time.Time
}

// NewSMTPTransport fails when the host or the sender address is missing.
func NewSMTPTransport(cfg SMTPConfig) (*SMTPTransport, error) {
	if strings.TrimSpace(cfg.Host) == "" {
		return nil, fmt.Errorf("smtp host is not configured")
	}
	from, err := mail.ParseAddress(cfg.From)
	if err != nil {
		return nil, fmt.Errorf("parse sender address %q: %w", cfg.From, err)
	}
	port := cfg.Port
	if port == 0 {
		port = 587
	}

	var auth smtp.Auth
	if cfg.Username != "" {
		auth = smtp.PlainAuth("", cfg.Username, cfg.Password, cfg.Host)
	}

	return &SMTPTransport{
		addr: net.JoinHostPort(cfg.Host, fmt.Sprint(port)),
		from: *from,
		auth: auth,
		send: smtp.SendMail,
		now:  time.Now,
	}, nil
}

func (t *SMTPTransport) Send(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	to := mail.Address{Name: msg.Name, Address: msg.Email}
	if err := t.send(t.addr, t.auth, t.from.Address, []string{to.Address}, t.compose(to, msg)); err != nil {
		return fmt.Errorf("smtp send to %s: %w", msg.Email, err)
	}
	return nil
}

func (t *SMTPTransport) compose(to mail.Address, msg Message) []byte {
	var b bytes.Buffer
	fmt.Fprintf(&b, "From: %s\r\n", t.from.String())
	fmt.Fprintf(&b, "To: %s\r\n", to.String())
	fmt.Fprintf(&b, "Subject: %s\r\n", mime.QEncoding.Encode("utf-8", msg.Subject))
	fmt.Fprintf(&b, "Date: %s\r\n", t.now().Format(time.RFC1123Z))
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/html; charset=\"UTF-8\"\r\n")
	b.WriteString("\r\n")
	b.WriteString(msg.HTML)
	return b.Bytes()
}

// AMQPConfig names the broker and where messages are published.
type AMQPConfig struct {
	URL        string
	Exchange   string
	RoutingKey string
}

type publisher interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

// AMQPTransport publishes each message as JSON for an external mailer.
type AMQPTransport struct {
	ch         publisher
	closers    []func() error
	exchange   string
	routingKey string
}

// NewAMQPTransport dials the broker and declares the exchange, if one is set.
func NewAMQPTransport(cfg AMQPConfig) (*AMQPTransport, error) {
	if strings.TrimSpace(cfg.URL) == "" {
		return nil, fmt.Errorf("amqp url is not configured")
	}

	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("connect to amqp broker: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open amqp channel: %w", err)
	}

	if cfg.Exchange != "" {
		if err := ch.ExchangeDeclare(cfg.Exchange, amqp.ExchangeDirect, true, false, false, false, nil); err != nil {
			ch.Close()
			conn.Close()
			return nil, fmt.Errorf("declare exchange %s: %w", cfg.Exchange, err)
		}
	}

	t := newAMQPTransport(ch, cfg.Exchange, cfg.RoutingKey)
	t.closers = []func() error{ch.Close, conn.Close}
	return t, nil
}

func newAMQPTransport(ch publisher, exchange, routingKey string) *AMQPTransport {
	if routingKey == "" {
		routingKey = "mail"
	}
	return &AMQPTransport{ch: ch, exchange: exchange, routingKey: routingKey}
}

func (t *AMQPTransport) Send(ctx context.Context, msg Message) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encode mail message: %w", err)
	}

	err = t.ch.PublishWithContext(ctx, t.exchange, t.routingKey, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now(),
		Body:         body,
	})
	if err != nil {
		return fmt.Errorf("publish mail message: %w", err)
	}
	return nil
}

// Close releases the channel and the connection.
func (t *AMQPTransport) Close() error {
	var first error
	for _, c := range t.closers {
		if err := c(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
