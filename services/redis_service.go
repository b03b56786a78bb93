package services

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"emergencize-checkin-service/config"

	"github.com/go-redis/redis/v8"
)

// InterfaceRateLimiter 操作级限流器（如计划创建配额）
type InterfaceRateLimiter interface {
	Allow(userID uint, operation string) bool
}

// RedisService handles Redis operations: 限流计数与统计缓存
type RedisService struct {
	Client *redis.Client
	Config *config.Config
	Ctx    context.Context

	// redis不可用时的本地兜底计数
	fallbackMu     sync.Mutex
	fallbackCounts map[string]*localWindow
}

type localWindow struct {
	count   int
	resetAt time.Time
}

// NewRedisService creates a new Redis service
func NewRedisService(cfg *config.Config) *RedisService {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.GetRedisAddr(),
		Password: "", // No password set
		DB:       cfg.RedisDB,
	})

	return &RedisService{
		Client:         client,
		Config:         cfg,
		Ctx:            context.Background(),
		fallbackCounts: make(map[string]*localWindow),
	}
}

// Allow 判断该用户的操作是否在每小时配额内
func (s *RedisService) Allow(userID uint, operation string) bool {
	quota := s.Config.ScheduleCreateQuota
	if quota <= 0 {
		return true
	}

	key := fmt.Sprintf("quota:%s:%d", operation, userID)
	count, err := s.Client.Incr(s.Ctx, key).Result()
	if err != nil {
		// redis不可用时退化为本地窗口计数
		config.Warning("限流计数失败，使用本地兜底: %v", err)
		return s.allowLocal(key, quota)
	}
	if count == 1 {
		s.Client.Expire(s.Ctx, key, time.Hour)
	}
	return count <= int64(quota)
}

// allowLocal 本地每小时窗口计数
func (s *RedisService) allowLocal(key string, quota int) bool {
	s.fallbackMu.Lock()
	defer s.fallbackMu.Unlock()

	now := time.Now()
	window, ok := s.fallbackCounts[key]
	if !ok || now.After(window.resetAt) {
		window = &localWindow{resetAt: now.Add(time.Hour)}
		s.fallbackCounts[key] = window
	}
	window.count++
	return window.count <= quota
}

// Set sets a key-value pair in Redis with expiration
func (s *RedisService) Set(key string, value interface{}, expiration time.Duration) error {
	jsonValue, err := json.Marshal(value)
	if err != nil {
		return err
	}

	return s.Client.Set(s.Ctx, key, jsonValue, expiration).Err()
}

// Get gets a value from Redis by key
func (s *RedisService) Get(key string, dest interface{}) error {
	val, err := s.Client.Get(s.Ctx, key).Result()
	if err != nil {
		return err
	}

	return json.Unmarshal([]byte(val), dest)
}

// Delete deletes a key from Redis
func (s *RedisService) Delete(key string) error {
	return s.Client.Del(s.Ctx, key).Err()
}

// CacheUserStats 缓存用户统计结果
func (s *RedisService) CacheUserStats(userID uint, stats interface{}, expiration time.Duration) error {
	key := fmt.Sprintf("stats:user:%d", userID)
	return s.Set(key, stats, expiration)
}

// GetUserStats 读取缓存的用户统计结果
func (s *RedisService) GetUserStats(userID uint, dest interface{}) error {
	key := fmt.Sprintf("stats:user:%d", userID)
	return s.Get(key, dest)
}
