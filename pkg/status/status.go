// Package status mirrors the daemon's runtime state into Redis so
// other services on the gateway can observe the border router without
// talking to the serial link.
package status

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"github.com/openlowpan/lowpan-service/pkg/module"
)

// Everything lives under one hash; updates are also published on the
// key as a channel, field:value.
const key = "lowpan"

// Publisher implements module.StatusPublisher on top of a Redis hash.
type Publisher struct {
	client *redis.Client
	ctx    context.Context
}

// New connects to Redis and verifies the connection.
func New(addr, password string, db int) (*Publisher, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	return &Publisher{client: client, ctx: ctx}, nil
}

func (p *Publisher) writeAndPublish(field, value string) {
	pipe := p.client.Pipeline()
	pipe.HSet(p.ctx, key, field, value)
	pipe.Publish(p.ctx, key, fmt.Sprintf("%s:%s", field, value))
	if _, err := pipe.Exec(p.ctx); err != nil {
		log.Warnf("[STATUS] failed to publish %s: %v", field, err)
	}
}

// PublishStage records the current bring-up stage.
func (p *Publisher) PublishStage(stage string) {
	p.writeAndPublish("stage", stage)
}

// PublishAddress records the learned module address.
func (p *Publisher) PublishAddress(addr string) {
	p.writeAndPublish("address", addr)
}

// PublishConfig records the adopted network configuration.
func (p *Publisher) PublishConfig(cfg module.NetworkConfig) {
	p.writeAndPublish("region", fmt.Sprintf("%d", cfg.Region))
	p.writeAndPublish("channel", fmt.Sprintf("%d", cfg.Channel))
	p.writeAndPublish("pan-id", fmt.Sprintf("0x%04x", cfg.PanID))
	p.writeAndPublish("network-id", fmt.Sprintf("0x%08x", cfg.NetworkID))
	p.writeAndPublish("prefix", module.PrefixIP(cfg.Prefix).String())
}

// Close releases the Redis connection.
func (p *Publisher) Close() error {
	return p.client.Close()
}
