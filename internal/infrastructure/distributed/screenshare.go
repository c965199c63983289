package distributed

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"beamcast/internal/core/ports"
)

const screenShareChannel = "beamcast:screenshare"

// ScreenShareEvent is broadcast whenever a screen capture session starts
// or stops anywhere in the deployment.
type ScreenShareEvent struct {
	InstanceID string    `json:"instance_id"`
	Active     bool      `json:"active"`
	Timestamp  time.Time `json:"timestamp"`
}

// ScreenShareChannel coordinates screen capture state across processes.
// The agent publishes when its capture session begins or ends; the
// broadcaster daemon watches the channel and stops an in-app broadcast
// when a capture session becomes active.
type ScreenShareChannel struct {
	client     *redis.Client
	settings   ports.SettingsRepository
	instanceID string
	logger     *zap.SugaredLogger
	pubsub     *redis.PubSub
}

// NewScreenShareChannel creates a new screen share coordination channel.
func NewScreenShareChannel(
	client *redis.Client,
	settings ports.SettingsRepository,
	instanceID string,
	logger *zap.SugaredLogger,
) *ScreenShareChannel {
	return &ScreenShareChannel{
		client:     client,
		settings:   settings,
		instanceID: instanceID,
		logger:     logger,
	}
}

// Publish records the capture state in shared settings and notifies all
// subscribers. The persisted flag lets late-starting processes observe
// the current state without having seen the event.
func (c *ScreenShareChannel) Publish(ctx context.Context, active bool) error {
	if err := c.settings.SetBool(ctx, ports.KeyScreenShareActive, active); err != nil {
		return fmt.Errorf("failed to persist screen share flag: %w", err)
	}

	event := ScreenShareEvent{
		InstanceID: c.instanceID,
		Active:     active,
		Timestamp:  time.Now(),
	}
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal screen share event: %w", err)
	}

	if err := c.client.Publish(ctx, screenShareChannel, data).Err(); err != nil {
		return fmt.Errorf("failed to publish screen share event: %w", err)
	}

	c.logger.Debugw("published screen share event", "active", active)
	return nil
}

// Watch delivers the current capture state, then every subsequent change,
// to onChange. It blocks until ctx is cancelled. Events published by this
// instance are skipped.
func (c *ScreenShareChannel) Watch(ctx context.Context, onChange func(active bool)) error {
	if c.pubsub != nil {
		return fmt.Errorf("already watching")
	}

	c.pubsub = c.client.Subscribe(ctx, screenShareChannel)
	defer func() {
		c.pubsub.Close()
		c.pubsub = nil
	}()

	active, found, err := c.settings.GetBool(ctx, ports.KeyScreenShareActive)
	if err != nil {
		c.logger.Warnw("failed to read initial screen share flag", "error", err)
	} else if found && active {
		onChange(true)
	}

	ch := c.pubsub.Channel()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			var event ScreenShareEvent
			if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
				c.logger.Warnw("failed to unmarshal screen share event",
					"error", err,
					"payload", msg.Payload,
				)
				continue
			}

			// Skip events from this instance
			if event.InstanceID == c.instanceID {
				continue
			}

			onChange(event.Active)
		}
	}
}
