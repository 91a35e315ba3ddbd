package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	log "github.com/sirupsen/logrus"

	"forgeai/fitness-agent/internal/domain"
)

const (
	DefaultStateTTL = 30 * 24 * time.Hour
	stateKeyPrefix  = "forgeai:state:"
	themeKeyPrefix  = "forgeai:theme:"
	seqKeyPrefix    = "forgeai:seq:"
)

var (
	ErrMissingDevice = errors.New("device id is required")
	ErrInvalidTheme  = errors.New("theme must be light or dark")
)

// StateCache keeps each device's working state and theme flag in Redis. It
// is a best-effort cache: unreadable entries are treated as absent.
type StateCache struct {
	redisClient *redis.Client
	ttl         time.Duration
}

func NewStateCache(redisClient *redis.Client, ttl time.Duration) *StateCache {
	if ttl <= 0 {
		ttl = DefaultStateTTL
	}
	return &StateCache{
		redisClient: redisClient,
		ttl:         ttl,
	}
}

// Load returns the cached working state of a device, or a fresh one.
func (c *StateCache) Load(ctx context.Context, deviceID string) (domain.AppState, error) {
	if deviceID == "" {
		return domain.AppState{}, ErrMissingDevice
	}

	raw, err := c.redisClient.Get(ctx, stateKeyPrefix+deviceID).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.NewAppState(), nil
	}
	if err != nil {
		return domain.AppState{}, fmt.Errorf("load state: %w", err)
	}

	state := domain.NewAppState()
	if err := json.Unmarshal(raw, &state); err != nil {
		log.Warnf("corrupt cached state for device %s, starting fresh: %s", deviceID, err)
		return domain.NewAppState(), nil
	}
	if state.History == nil {
		state.History = []domain.HistoryEntry{}
	}
	return state, nil
}

func (c *StateCache) Save(ctx context.Context, deviceID string, state domain.AppState) error {
	if deviceID == "" {
		return ErrMissingDevice
	}

	b, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("marshal state: %w", err)
	}
	if err := c.redisClient.Set(ctx, stateKeyPrefix+deviceID, string(b), c.ttl).Err(); err != nil {
		return fmt.Errorf("save state: %w", err)
	}
	return nil
}

// NextSeq returns the next plan generation number of a device. INCR keeps it
// monotonic across concurrent requests; the key never expires so numbers are
// never reused while a cached state may still remember an older one.
func (c *StateCache) NextSeq(ctx context.Context, deviceID string) (uint64, error) {
	if deviceID == "" {
		return 0, ErrMissingDevice
	}
	n, err := c.redisClient.Incr(ctx, seqKeyPrefix+deviceID).Result()
	if err != nil {
		return 0, fmt.Errorf("next seq: %w", err)
	}
	return uint64(n), nil
}

// Theme returns the device theme, dark unless set otherwise.
func (c *StateCache) Theme(ctx context.Context, deviceID string) (domain.Theme, error) {
	if deviceID == "" {
		return "", ErrMissingDevice
	}

	val, err := c.redisClient.Get(ctx, themeKeyPrefix+deviceID).Result()
	if errors.Is(err, redis.Nil) {
		return domain.DefaultTheme, nil
	}
	if err != nil {
		return "", fmt.Errorf("load theme: %w", err)
	}

	theme := domain.Theme(val)
	if !theme.IsValid() {
		return domain.DefaultTheme, nil
	}
	return theme, nil
}

func (c *StateCache) SetTheme(ctx context.Context, deviceID string, theme domain.Theme) error {
	if deviceID == "" {
		return ErrMissingDevice
	}
	if !theme.IsValid() {
		return ErrInvalidTheme
	}
	if err := c.redisClient.Set(ctx, themeKeyPrefix+deviceID, string(theme), 0).Err(); err != nil {
		return fmt.Errorf("save theme: %w", err)
	}
	return nil
}
