package publisher

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/nats-io/nats.go"

	"github.com/ptvtracker-planner/internal/common/logger"
	"github.com/ptvtracker-planner/internal/planner"
)

// PublisherMetrics is satisfied by metrics.Collector.
type PublisherMetrics interface {
	NATSPublishedInc()
	NATSPublishErrInc()
	NATSSetConnected(connected bool)
}

type NATSPublisher struct {
	nc      *nats.Conn
	subject string
	logger  logger.Logger
	metrics PublisherMetrics
}

func NewNATSPublisher(url, subject string, log logger.Logger, m PublisherMetrics) (*NATSPublisher, error) {
	nc, err := nats.Connect(url,
		nats.Name("journey-planner"),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if m != nil {
				m.NATSSetConnected(false)
			}
			log.Warn("NATS disconnected", "error", err)
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			if m != nil {
				m.NATSSetConnected(true)
			}
			log.Info("NATS reconnected")
		}),
		nats.ClosedHandler(func(_ *nats.Conn) {
			if m != nil {
				m.NATSSetConnected(false)
			}
			log.Info("NATS connection closed")
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connecting to nats: %w", err)
	}
	if m != nil {
		m.NATSSetConnected(true)
	}
	return &NATSPublisher{nc: nc, subject: subject, logger: log, metrics: m}, nil
}

func (p *NATSPublisher) Close() {
	if p.nc != nil {
		p.nc.Drain()
		p.nc.Close()
	}
}

// GraphPublished announces a new snapshot on <subject>.<version>.
func (p *NATSPublisher) GraphPublished(_ context.Context, ev planner.GraphPublished) error {
	subject, body, err := encodeEvent(p.subject, ev)
	if err != nil {
		return err
	}
	err = p.nc.Publish(subject, body)
	if p.metrics != nil {
		if err != nil {
			p.metrics.NATSPublishErrInc()
		} else {
			p.metrics.NATSPublishedInc()
		}
	}
	if err != nil {
		return fmt.Errorf("publishing %s: %w", subject, err)
	}
	p.logger.Debug("Published graph event", "subject", subject, "build_id", ev.BuildID)
	return nil
}

func encodeEvent(base string, ev planner.GraphPublished) (string, []byte, error) {
	b, err := json.Marshal(ev)
	if err != nil {
		return "", nil, fmt.Errorf("encoding graph event: %w", err)
	}
	return fmt.Sprintf("%s.%s", base, subjectToken(ev.Version)), b, nil
}

func subjectToken(s string) string {
	s = strings.TrimSpace(s)
	// NATS token cannot contain spaces, '>', '*', or '.'
	repl := strings.NewReplacer(" ", "_", ".", "_", ">", "_", "*", "_", "/", "_", "\t", "_", ":", "_")
	s = repl.Replace(s)
	if s == "" {
		s = "_"
	}
	return s
}
