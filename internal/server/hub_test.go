package server

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/cioddi/metromesh-sub000/internal/config"
	"github.com/cioddi/metromesh-sub000/internal/game"
)

// TestDroppedClientSurvivesSendError covers the interaction between
// the hub's slow-client drop and the client's reader goroutine: the
// hub closes the send channel as soon as a broadcast cannot be queued,
// but the reader may still be mid-message and about to report a
// validation error back. That error send must be a silent no-op, not
// a send on a closed channel.
func TestDroppedClientSurvivesSendError(t *testing.T) {
	cfg := config.Load()
	cfg.PassengerBaseRate = 0
	engine := game.New(cfg, "barcelona", testCenter, 1)
	hub := NewHub(engine)
	go hub.Run()

	// An unbuffered send channel with no writer goroutine makes the
	// client slow by construction: the first broadcast drops it.
	c := &Client{send: make(chan []byte)}
	hub.register <- c
	hub.BroadcastState()

	// Wait until the hub has processed the drop. Nothing receives from
	// the channel, so the broadcast cannot be queued and the hub must
	// close the client.
	for {
		c.mu.Lock()
		closed := c.closed
		c.mu.Unlock()
		if closed {
			break
		}
		time.Sleep(time.Millisecond)
	}

	// A validation failure now tries to answer the dropped client.
	payload, _ := json.Marshal(CreateRoutePayload{StationIDs: []string{"only-one"}})
	hub.handleAction(c, Envelope{Type: ActionCreateRoute, Payload: payload})

	// And a later broadcast must not see the dropped client either.
	hub.BroadcastState()
}

func TestTrySendAfterClose(t *testing.T) {
	c := &Client{send: make(chan []byte, 1)}
	if !c.trySend([]byte("a")) {
		t.Fatal("send into a free buffer failed")
	}
	if c.trySend([]byte("b")) {
		t.Error("send into a full buffer reported success")
	}
	c.close()
	c.close() // idempotent
	if c.trySend([]byte("c")) {
		t.Error("send on a closed client reported success")
	}
}
