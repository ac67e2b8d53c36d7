package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	redisv9 "github.com/redis/go-redis/v9"
)

// AnswerCache stores QA answers per presentation and normalized question.
type AnswerCache struct {
	client *redisv9.Client
	ttl    time.Duration
}

func NewAnswerCache(client *redisv9.Client, ttl time.Duration) *AnswerCache {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &AnswerCache{client: client, ttl: ttl}
}

func (c *AnswerCache) GetAnswer(ctx context.Context, presentationID, question string) (string, bool, error) {
	raw, err := c.client.Get(ctx, answerKey(presentationID, question)).Result()
	if errors.Is(err, redisv9.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("redis get answer failed: %w", err)
	}
	return raw, true, nil
}

func (c *AnswerCache) SetAnswer(ctx context.Context, presentationID, question, answer string) error {
	key := answerKey(presentationID, question)
	pipe := c.client.TxPipeline()
	pipe.Set(ctx, key, answer, c.ttl)
	pipe.SAdd(ctx, indexKey(presentationID), key)
	pipe.Expire(ctx, indexKey(presentationID), c.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis set answer failed: %w", err)
	}
	return nil
}

// Invalidate drops every cached answer of a presentation.
func (c *AnswerCache) Invalidate(ctx context.Context, presentationID string) error {
	idx := indexKey(presentationID)
	keys, err := c.client.SMembers(ctx, idx).Result()
	if err != nil {
		return fmt.Errorf("redis list cached answers failed: %w", err)
	}
	keys = append(keys, idx)
	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("redis delete cached answers failed: %w", err)
	}
	return nil
}

func answerKey(presentationID, question string) string {
	sum := sha256.Sum256([]byte(strings.ToLower(strings.Join(strings.Fields(question), " "))))
	return fmt.Sprintf("qa:answer:%s:%s", presentationID, hex.EncodeToString(sum[:]))
}

func indexKey(presentationID string) string {
	return fmt.Sprintf("qa:answers:%s", presentationID)
}
