package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"dpp-certification/internal/domain"
	"dpp-certification/internal/resilience"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

type NATSOptions struct {
	ConnectTimeout time.Duration
	ReconnectWait  time.Duration
	MaxReconnects  int
	Executor       *resilience.Executor
	Logger         *zap.Logger
}

// NATSPublisher emits lifecycle events on "<prefix>.<event type>"
type NATSPublisher struct {
	conn     *nats.Conn
	prefix   string
	executor *resilience.Executor
	publish  func(subject string, data []byte) error
}

func NewNATSPublisher(url, prefix string, opts NATSOptions) (*NATSPublisher, error) {
	if opts.ConnectTimeout <= 0 {
		opts.ConnectTimeout = 2 * time.Second
	}
	if opts.ReconnectWait <= 0 {
		opts.ReconnectWait = 2 * time.Second
	}
	if opts.MaxReconnects <= 0 {
		opts.MaxReconnects = 60
	}
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}

	conn, err := nats.Connect(
		url,
		nats.Name("dpp-certification"),
		nats.Timeout(opts.ConnectTimeout),
		nats.ReconnectWait(opts.ReconnectWait),
		nats.MaxReconnects(opts.MaxReconnects),
		nats.RetryOnFailedConnect(true),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			log.Warn("NATS disconnected", zap.Error(err))
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info("NATS reconnected", zap.String("url", nc.ConnectedUrl()))
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}

	p := newPublisher(prefix, opts.Executor, conn.Publish)
	p.conn = conn
	return p, nil
}

func newPublisher(prefix string, exec *resilience.Executor, publish func(string, []byte) error) *NATSPublisher {
	if prefix == "" {
		prefix = "dpp"
	}
	return &NATSPublisher{
		prefix:   prefix,
		executor: exec,
		publish:  publish,
	}
}

func (p *NATSPublisher) Close() {
	if p.conn != nil {
		p.conn.Drain()
	}
}

func (p *NATSPublisher) Subject(eventType string) string {
	return p.prefix + "." + eventType
}

func (p *NATSPublisher) Publish(ctx context.Context, event domain.Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	subject := p.Subject(event.Type)

	call := func(context.Context) error {
		if err := p.publish(subject, payload); err != nil {
			return fmt.Errorf("nats publish: %w", err)
		}
		return nil
	}

	if p.executor != nil {
		err = p.executor.Execute(ctx, "nats.publish", call, classifyNATSError)
	} else {
		err = call(ctx)
	}
	if err != nil {
		return wrapTemporaryIfNeeded(err)
	}
	return nil
}

func classifyNATSError(err error) resilience.ErrorClassification {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return resilience.ErrorClassification{}
	}
	if errors.Is(err, nats.ErrNoServers) ||
		errors.Is(err, nats.ErrTimeout) ||
		errors.Is(err, nats.ErrConnectionClosed) ||
		errors.Is(err, nats.ErrDisconnected) ||
		errors.Is(err, nats.ErrConnectionReconnecting) {
		return resilience.ErrorClassification{Retryable: true, RecordFailure: true}
	}
	return resilience.ErrorClassification{Retryable: false, RecordFailure: true}
}

func wrapTemporaryIfNeeded(err error) error {
	if domain.IsKind(err, domain.ErrTemporary) {
		return err
	}
	if classifyNATSError(err).Retryable || resilience.IsCircuitOpen(err) {
		return domain.WrapError(domain.ErrTemporary, "nats publish", err)
	}
	return err
}
