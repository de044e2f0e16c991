// cache/redis.go
package cache

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/redis/go-redis/v9"
)

// Global variables
var (
	RedisClient  *redis.Client
	redisEnabled bool
	ctx          = context.Background()
)

const (
	MODE_CACHE_DURATION    = 5 * time.Minute
	VIDEO_CACHE_DURATION   = 24 * time.Hour
	PROFILE_CACHE_DURATION = 24 * time.Hour
	SEEN_MESSAGE_DURATION  = 1 * time.Hour
)

// InitRedis connects to Redis when configured. The cache is optional: a
// missing REDIS_HOST or a failed ping only disables it, and every helper
// below falls through to its database fetch.
func InitRedis() {
	host := os.Getenv("REDIS_HOST")
	if host == "" {
		redisEnabled = false
		log.Println("Redis not configured, cache disabled")
		return
	}

	RedisClient = redis.NewClient(&redis.Options{
		Addr:     host + ":" + os.Getenv("REDIS_PORT"),
		Username: os.Getenv("REDIS_USERNAME"),
		Password: os.Getenv("REDIS_PASSWORD"),
	})

	// Test connection
	if _, err := RedisClient.Ping(ctx).Result(); err != nil {
		redisEnabled = false
		log.Printf("Redis connection failed: %v", err)
	} else {
		redisEnabled = true
		log.Println("Redis connected successfully")
	}
}

// Close releases the Redis connection.
func Close() {
	if RedisClient != nil {
		RedisClient.Close()
	}
}

// MarkSeen records a webhook message ID and reports whether it was new.
// Facebook redelivers events when a webhook answers slowly; without this a
// redelivered message would get a second reply. Without Redis every message
// counts as new.
func MarkSeen(mid string) bool {
	if !redisEnabled || mid == "" {
		return true
	}

	key := fmt.Sprintf("seen:%s", mid)
	fresh, err := RedisClient.SetNX(ctx, key, 1, SEEN_MESSAGE_DURATION).Result()
	if err != nil {
		log.Printf("Seen-message check failed for %s: %v", mid, err)
		return true
	}
	return fresh
}

// GetUserMode retrieves a user's mode from Redis or falls back to the DB
func GetUserMode(userID string, dbFetch func(string) (string, error)) (string, error) {
	if !redisEnabled {
		return dbFetch(userID)
	}

	key := fmt.Sprintf("user:%s:mode", userID)

	// Attempt cache
	if mode, err := RedisClient.Get(ctx, key).Result(); err == nil {
		log.Printf("✅ Cache HIT for user mode: %s", userID)
		return mode, nil
	}

	log.Printf("❌ Cache MISS for user mode: %s", userID)

	// Cache miss - fetch from DB
	mode, err := dbFetch(userID)
	if err != nil {
		return "", err
	}

	// Update cache async
	go func() {
		if err := RedisClient.Set(ctx, key, mode, MODE_CACHE_DURATION).Err(); err != nil {
			log.Printf("Failed to cache mode for user %s: %v", userID, err)
		}
	}()

	return mode, nil
}

// SetUserMode writes a fresh mode through to the cache after a mode switch
func SetUserMode(userID, mode string) {
	if !redisEnabled {
		return
	}

	key := fmt.Sprintf("user:%s:mode", userID)
	if err := RedisClient.Set(ctx, key, mode, MODE_CACHE_DURATION).Err(); err != nil {
		log.Printf("Failed to cache mode for user %s: %v", userID, err)
	}
}

// GetVideoURL retrieves a hosted video URL from Redis or falls back to the DB.
// An empty URL means the video was never downloaded; those are not cached.
func GetVideoURL(videoID string, dbFetch func(string) (string, error)) (string, error) {
	if !redisEnabled {
		return dbFetch(videoID)
	}

	key := fmt.Sprintf("video:%s:url", videoID)

	// Attempt cache
	if url, err := RedisClient.Get(ctx, key).Result(); err == nil {
		log.Printf("✅ Cache HIT for video: %s", videoID)
		return url, nil
	}

	log.Printf("❌ Cache MISS for video: %s", videoID)

	// Cache miss - fetch from DB
	url, err := dbFetch(videoID)
	if err != nil || url == "" {
		return url, err
	}

	// Update cache async
	go func() {
		if err := RedisClient.Set(ctx, key, url, VIDEO_CACHE_DURATION).Err(); err != nil {
			log.Printf("Failed to cache video %s: %v", videoID, err)
		}
	}()

	return url, nil
}

// CacheVideoURL stores a freshly uploaded video URL
func CacheVideoURL(videoID, url string) {
	if !redisEnabled || url == "" {
		return
	}

	key := fmt.Sprintf("video:%s:url", videoID)
	if err := RedisClient.Set(ctx, key, url, VIDEO_CACHE_DURATION).Err(); err != nil {
		log.Printf("Failed to cache video %s: %v", videoID, err)
	}
}

// GetProfileName retrieves a user's display name from Redis or falls back to
// the Graph API fetch
func GetProfileName(userID string, apiFetch func(string) (string, error)) (string, error) {
	if !redisEnabled {
		return apiFetch(userID)
	}

	key := fmt.Sprintf("profile:%s:name", userID)

	// Attempt cache
	if name, err := RedisClient.Get(ctx, key).Result(); err == nil {
		log.Printf("✅ Cache HIT for profile name: %s", userID)
		return name, nil
	}

	log.Printf("❌ Cache MISS for profile name: %s", userID)

	// Cache miss - fetch from the Graph API
	name, err := apiFetch(userID)
	if err != nil {
		return "", err
	}

	// Update cache async
	go func() {
		if err := RedisClient.Set(ctx, key, name, PROFILE_CACHE_DURATION).Err(); err != nil {
			log.Printf("Failed to cache profile name for %s: %v", userID, err)
		}
	}()

	return name, nil
}
