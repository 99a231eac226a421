// Package presence mirrors room membership into Redis, best-effort.
// The mirror is observational only: the relay never reads it back, so a
// Redis outage (or running without Redis at all) costs nothing but the
// external view.
package presence

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/peerline/signaling/config"
)

const peerSetTTL = 24 * time.Hour

// Mirror maintains room:<key>:peers sets of connection IDs.
type Mirror struct {
	client *redis.Client
}

// Connect dials Redis and verifies the connection.
func Connect(cfg config.RedisConfig) (*Mirror, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return &Mirror{client: client}, nil
}

func (m *Mirror) Close() error {
	return m.client.Close()
}

// PeerJoined records the connection in the room's peer set. Fire-and-forget.
func (m *Mirror) PeerJoined(roomKey, connectionID string) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		key := peersKey(roomKey)
		if err := m.client.SAdd(ctx, key, connectionID).Err(); err != nil {
			log.Printf("presence: failed to add peer %s to %s: %v", connectionID, key, err)
			return
		}
		m.client.Expire(ctx, key, peerSetTTL)
	}()
}

// PeerLeft drops the connection from the room's peer set. Fire-and-forget.
func (m *Mirror) PeerLeft(roomKey, connectionID string) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		key := peersKey(roomKey)
		if err := m.client.SRem(ctx, key, connectionID).Err(); err != nil {
			log.Printf("presence: failed to remove peer %s from %s: %v", connectionID, key, err)
		}
	}()
}

func peersKey(roomKey string) string {
	return "room:" + roomKey + ":peers"
}
