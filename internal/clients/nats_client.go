package clients

import (
	"encoding/json"
	"fmt"
	"log"
	"time"

	"league-backend/internal/metrics"

	"github.com/nats-io/nats.go"
)

// NATSClient publishes league events to JetStream for the indexing collaborator
type NATSClient struct {
	conn       *nats.Conn
	js         nats.JetStreamContext
	streamName string
}

// NewNATSClient creates a NATS client and ensures the event stream exists
func NewNATSClient(url, streamName string, timeoutSeconds int) (*NATSClient, error) {
	connectTimeout := 10 * time.Second
	if timeoutSeconds > 0 {
		connectTimeout = time.Duration(timeoutSeconds) * time.Second
	}

	conn, err := nats.Connect(url,
		nats.Timeout(connectTimeout),
		nats.ReconnectWait(5*time.Second),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			log.Printf("⚠️ NATS disconnected: %v", err)
			metrics.NATSConnectionStatus.Set(0)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Printf("✅ NATS reconnected")
			metrics.NATSConnectionStatus.Set(1)
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	js, err := conn.JetStream()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}

	client := &NATSClient{
		conn:       conn,
		js:         js,
		streamName: streamName,
	}

	if err := client.ensureStream(); err != nil {
		conn.Close()
		return nil, err
	}

	metrics.NATSConnectionStatus.Set(1)
	log.Printf("✅ NATS client initialized: stream=%s", streamName)
	return client, nil
}

// ensureStream creates the league event stream if it does not exist
func (c *NATSClient) ensureStream() error {
	_, err := c.js.StreamInfo(c.streamName)
	if err == nil {
		return nil
	}

	_, err = c.js.AddStream(&nats.StreamConfig{
		Name:      c.streamName,
		Subjects:  []string{"league.>"},
		Retention: nats.LimitsPolicy,
		MaxAge:    30 * 24 * time.Hour,
	})
	if err != nil {
		return fmt.Errorf("failed to create stream %s: %w", c.streamName, err)
	}

	log.Printf("✅ Created JetStream stream: %s", c.streamName)
	return nil
}

// PublishEvent publishes one event message. Subject layout:
// league.<leagueAddress>.<EventType>. At-least-once toward the indexer.
func (c *NATSClient) PublishEvent(leagueAddress, eventType string, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		metrics.NATSPublishFailures.WithLabelValues(eventType).Inc()
		return fmt.Errorf("failed to marshal %s event: %w", eventType, err)
	}

	subject := fmt.Sprintf("league.%s.%s", leagueAddress, eventType)
	if _, err := c.js.Publish(subject, data); err != nil {
		metrics.NATSPublishFailures.WithLabelValues(eventType).Inc()
		return fmt.Errorf("failed to publish %s: %w", subject, err)
	}

	metrics.NATSMessagesPublished.WithLabelValues(eventType).Inc()
	return nil
}

// Close drains the connection
func (c *NATSClient) Close() {
	if c.conn != nil {
		c.conn.Close()
	}
}
