// Package push delivers batched messages to an Expo-compatible push gateway.
package push

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"

	"github.com/fruitsense/backend/internal/models"
)

// MaxBatchSize is the gateway's per-request message cap.
const MaxBatchSize = 100

// DefaultGatewayURL is the Expo push endpoint.
const DefaultGatewayURL = "https://exp.host/--/api/v2/push/send"

// Message is one outbound push message.
type Message struct {
	To    string         `json:"to"`
	Title string         `json:"title"`
	Body  string         `json:"body"`
	Data  models.Payload `json:"data"`
	Sound string         `json:"sound"`
}

// Sender sends message batches to the push gateway. Delivery is at-most-once:
// a failed chunk is logged and dropped, never retried.
type Sender interface {
	Send(ctx context.Context, messages []Message) error
}

// GatewaySender implements Sender over plain HTTP.
type GatewaySender struct {
	gatewayURL string
	client     *http.Client
}

// NewGatewaySender creates a GatewaySender. A nil client falls back to
// http.DefaultClient (transport default timeout).
func NewGatewaySender(gatewayURL string, client *http.Client) *GatewaySender {
	if gatewayURL == "" {
		gatewayURL = DefaultGatewayURL
	}
	if client == nil {
		client = http.DefaultClient
	}
	return &GatewaySender{gatewayURL: gatewayURL, client: client}
}

// Send partitions messages into consecutive chunks of at most MaxBatchSize
// and posts them sequentially. A chunk's failure does not prevent subsequent
// chunks from being attempted.
func (s *GatewaySender) Send(ctx context.Context, messages []Message) error {
	for start := 0; start < len(messages); start += MaxBatchSize {
		end := start + MaxBatchSize
		if end > len(messages) {
			end = len(messages)
		}

		if err := s.sendChunk(ctx, messages[start:end]); err != nil {
			log.Printf("push: chunk of %d messages dropped: %v", end-start, err)
		}
	}
	return nil
}

func (s *GatewaySender) sendChunk(ctx context.Context, chunk []Message) error {
	body, err := json.Marshal(chunk)
	if err != nil {
		return fmt.Errorf("failed to encode push batch: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.gatewayURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build gateway request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("gateway unreachable: %w", err)
	}
	defer resp.Body.Close()

	// Only the HTTP status is relied upon.
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("gateway returned status %d", resp.StatusCode)
	}
	return nil
}
