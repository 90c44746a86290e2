package matchhub

import (
	"context"
	"encoding/json"
	"errors"
	"log"

	"github.com/redis/go-redis/v9"

	"peerlink/backend/internal/models"
)

const bridgeChannelPrefix = "room:"

// Bridge fans relayed signals out across instances through Redis Pub/Sub.
// Payloads are transient: nothing is ever persisted, Redis is only a
// broadcast path. Single-instance deployments run without one.
type Bridge struct {
	rdb   *redis.Client
	rooms *RoomManager
	sink  EventSink
}

// NewBridge creates a bridge over an established Redis client.
func NewBridge(rdb *redis.Client, rooms *RoomManager, sink EventSink) *Bridge {
	return &Bridge{rdb: rdb, rooms: rooms, sink: sink}
}

// Publish broadcasts a relayed signal to every instance subscribed to its
// room channel, including this one.
func (b *Bridge) Publish(sig models.SignalData) error {
	payload, err := json.Marshal(sig)
	if err != nil {
		return err
	}
	return b.rdb.Publish(context.Background(), bridgeChannelPrefix+sig.RoomID, payload).Err()
}

// Run subscribes to all room channels and feeds incoming signals to local
// room members until ctx is cancelled.
func (b *Bridge) Run(ctx context.Context) {
	pubsub := b.rdb.PSubscribe(ctx, bridgeChannelPrefix+"*")
	defer pubsub.Close()

	ch := pubsub.Channel()
	for {
		select {
		case msg, ok := <-ch:
			if !ok {
				return
			}
			b.deliver(msg.Payload)
		case <-ctx.Done():
			return
		}
	}
}

func (b *Bridge) deliver(payload string) {
	var sig models.SignalData
	if err := json.Unmarshal([]byte(payload), &sig); err != nil {
		log.Printf("bridge: dropping undecodable signal: %v", err)
		return
	}

	peer, err := b.rooms.Peer(sig.RoomID, sig.SenderID)
	if err != nil {
		// Room is not known here or already torn down; another instance
		// may hold it.
		if !errors.Is(err, ErrNotInRoom) {
			log.Printf("bridge: room %s: %v", sig.RoomID, err)
		}
		return
	}

	b.sink.SendToUser(peer, models.NewEnvelope(models.EventSignal, sig))
}
