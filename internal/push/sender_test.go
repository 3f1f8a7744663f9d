package push

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingGateway struct {
	mu      sync.Mutex
	batches [][]Message
	// failOn holds 1-based call indexes that should return HTTP 500
	failOn map[int]bool
}

func (g *recordingGateway) handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var batch []Message
		if err := json.NewDecoder(r.Body).Decode(&batch); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}

		g.mu.Lock()
		g.batches = append(g.batches, batch)
		call := len(g.batches)
		fail := g.failOn[call]
		g.mu.Unlock()

		if fail {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
	}
}

func makeMessages(n int) []Message {
	messages := make([]Message, n)
	for i := range messages {
		messages[i] = Message{
			To:    fmt.Sprintf("ExponentPushToken[device-%d]", i),
			Title: "New post in the community",
			Body:  "Someone shared a harvest report",
			Sound: "default",
		}
	}
	return messages
}

func TestSendPartitionsIntoChunksOf100(t *testing.T) {
	gateway := &recordingGateway{}
	server := httptest.NewServer(gateway.handler())
	defer server.Close()

	sender := NewGatewaySender(server.URL, server.Client())
	err := sender.Send(context.Background(), makeMessages(250))
	require.NoError(t, err)

	require.Len(t, gateway.batches, 3)
	assert.Len(t, gateway.batches[0], 100)
	assert.Len(t, gateway.batches[1], 100)
	assert.Len(t, gateway.batches[2], 50)
}

func TestSendContinuesAfterFailedChunk(t *testing.T) {
	gateway := &recordingGateway{failOn: map[int]bool{2: true}}
	server := httptest.NewServer(gateway.handler())
	defer server.Close()

	sender := NewGatewaySender(server.URL, server.Client())
	err := sender.Send(context.Background(), makeMessages(250))
	require.NoError(t, err)

	// The second chunk failed but the first and third were still attempted.
	require.Len(t, gateway.batches, 3)
	assert.Len(t, gateway.batches[2], 50)
}

func TestSendNoMessagesMakesNoCalls(t *testing.T) {
	gateway := &recordingGateway{}
	server := httptest.NewServer(gateway.handler())
	defer server.Close()

	sender := NewGatewaySender(server.URL, server.Client())
	require.NoError(t, sender.Send(context.Background(), nil))
	assert.Empty(t, gateway.batches)
}

func TestSendUnreachableGatewayIsSwallowed(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close() // nothing is listening anymore

	sender := NewGatewaySender(url, nil)
	err := sender.Send(context.Background(), makeMessages(3))
	assert.NoError(t, err)
}

func TestSendExactBatchBoundary(t *testing.T) {
	gateway := &recordingGateway{}
	server := httptest.NewServer(gateway.handler())
	defer server.Close()

	sender := NewGatewaySender(server.URL, server.Client())
	require.NoError(t, sender.Send(context.Background(), makeMessages(100)))

	require.Len(t, gateway.batches, 1)
	assert.Len(t, gateway.batches[0], 100)
}
