package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"reward-guard-backend/internal/config"
	"reward-guard-backend/internal/models"
)

// RedisService is the durable store behind the claim ledger, the nonce
// challenge flow and the cooldown/maintenance settings.
type RedisService struct {
	client  *redis.Client
	timeout time.Duration
}

func NewRedisService(cfg *config.Config) (*RedisService, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisURL,
		Password: cfg.RedisPass,
		DB:       cfg.RedisDB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := client.Ping(ctx).Result(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %v", err)
	}

	return &RedisService{
		client:  client,
		timeout: cfg.StoreTimeout,
	}, nil
}

func (s *RedisService) Close() error {
	return s.client.Close()
}

// withTimeout bounds every store operation so callers get a retryable error
// instead of hanging on a slow Redis.
func (s *RedisService) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.timeout)
}

// compareAndSetClaimScript swaps a claim record only when the stored version
// matches the expected one, and maintains the reference index in the same
// atomic step. Returns 0 on a version conflict.
var compareAndSetClaimScript = redis.NewScript(`
	local data = redis.call("GET", KEYS[1])
	if not data then
		return redis.error_reply("claim not found")
	end
	local record = cjson.decode(data)
	if tonumber(record.version) ~= tonumber(ARGV[1]) then
		return 0
	end
	redis.call("SET", KEYS[1], ARGV[2])
	if ARGV[3] ~= "" then
		redis.call("SET", KEYS[2], KEYS[1])
	end
	return 1
`)

func (s *RedisService) GetClaim(ctx context.Context, subject, resource string) (*models.ClaimRecord, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	key := fmt.Sprintf(KeyClaim, subject, resource)
	data, err := s.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get claim: %v", err)
	}

	var record models.ClaimRecord
	if err := json.Unmarshal([]byte(data), &record); err != nil {
		return nil, fmt.Errorf("failed to unmarshal claim: %v", err)
	}
	return &record, nil
}

func (s *RedisService) GetClaimByReference(ctx context.Context, reference string) (*models.ClaimRecord, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	claimKey, err := s.client.Get(ctx, fmt.Sprintf(KeyClaimRef, reference)).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to resolve reference: %v", err)
	}

	data, err := s.client.Get(ctx, claimKey).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get claim by reference: %v", err)
	}

	var record models.ClaimRecord
	if err := json.Unmarshal([]byte(data), &record); err != nil {
		return nil, fmt.Errorf("failed to unmarshal claim: %v", err)
	}
	return &record, nil
}

// CreateClaim stores a fresh pending record unless one already exists.
// Existing records are never overwritten.
func (s *RedisService) CreateClaim(ctx context.Context, record *models.ClaimRecord) (bool, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	data, err := json.Marshal(record)
	if err != nil {
		return false, fmt.Errorf("failed to marshal claim: %v", err)
	}

	key := fmt.Sprintf(KeyClaim, record.Subject, record.Resource)
	created, err := s.client.SetNX(ctx, key, data, 0).Result()
	if err != nil {
		return false, fmt.Errorf("failed to create claim: %v", err)
	}
	return created, nil
}

// CompareAndSetClaim writes record if the stored version still equals
// expectedVersion. The record's reference index is updated atomically with
// the record itself.
func (s *RedisService) CompareAndSetClaim(ctx context.Context, record *models.ClaimRecord, expectedVersion int64) (bool, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	data, err := json.Marshal(record)
	if err != nil {
		return false, fmt.Errorf("failed to marshal claim: %v", err)
	}

	claimKey := fmt.Sprintf(KeyClaim, record.Subject, record.Resource)
	refKey := fmt.Sprintf(KeyClaimRef, record.Reference)

	result, err := compareAndSetClaimScript.Run(ctx, s.client,
		[]string{claimKey, refKey}, expectedVersion, data, record.Reference).Int()
	if err != nil {
		return false, fmt.Errorf("failed to compare-and-set claim: %v", err)
	}
	return result == 1, nil
}

func (s *RedisService) SaveNonce(ctx context.Context, challengeID string, nonce *models.Nonce) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	data, err := json.Marshal(nonce)
	if err != nil {
		return fmt.Errorf("failed to marshal nonce: %v", err)
	}

	key := fmt.Sprintf(KeyNonce, challengeID)
	return s.client.Set(ctx, key, data, TTLNonce).Err()
}

// ConsumeNonce removes and returns the stored nonce in one atomic step, so a
// value can never be consumed twice even under concurrent verification calls.
func (s *RedisService) ConsumeNonce(ctx context.Context, challengeID string) (*models.Nonce, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	key := fmt.Sprintf(KeyNonce, challengeID)
	data, err := s.client.GetDel(ctx, key).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to consume nonce: %v", err)
	}

	var nonce models.Nonce
	if err := json.Unmarshal([]byte(data), &nonce); err != nil {
		return nil, fmt.Errorf("failed to unmarshal nonce: %v", err)
	}
	return &nonce, nil
}

func (s *RedisService) GetCooldown(ctx context.Context, subject string) (*models.CooldownRecord, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	data, err := s.client.Get(ctx, fmt.Sprintf(KeyCooldown, subject)).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get cooldown: %v", err)
	}

	var record models.CooldownRecord
	if err := json.Unmarshal([]byte(data), &record); err != nil {
		return nil, fmt.Errorf("failed to unmarshal cooldown: %v", err)
	}
	return &record, nil
}

// PutCooldown is a plain last-writer-wins upsert. The cooldown is advisory,
// not a financial boundary, so no transaction is needed.
func (s *RedisService) PutCooldown(ctx context.Context, record *models.CooldownRecord) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal cooldown: %v", err)
	}
	return s.client.Set(ctx, fmt.Sprintf(KeyCooldown, record.Subject), data, 0).Err()
}

func (s *RedisService) GetMaintenanceFlag(ctx context.Context) (bool, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	value, err := s.client.Get(ctx, KeyMaintenance).Result()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to get maintenance flag: %v", err)
	}
	return value == "1" || value == "true", nil
}

func (s *RedisService) SetMaintenanceFlag(ctx context.Context, enabled bool) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	value := "0"
	if enabled {
		value = "1"
	}
	return s.client.Set(ctx, KeyMaintenance, value, 0).Err()
}

// Test helpers. Claims are never deleted in production paths.

func (s *RedisService) DeleteClaim(ctx context.Context, subject, resource string) error {
	return s.client.Del(ctx, fmt.Sprintf(KeyClaim, subject, resource)).Err()
}

func (s *RedisService) DeleteCooldown(ctx context.Context, subject string) error {
	return s.client.Del(ctx, fmt.Sprintf(KeyCooldown, subject)).Err()
}
