package shogi

import (
	"context"
	"encoding/json"
	"fmt"
	"portal/internal/entity"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "portal:shogi:"

// RedisMoveLog keeps each game as a Redis list of JSON moves plus a sequence
// counter that hands out move numbers atomically.
type RedisMoveLog struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisMoveLog(addr, password string, db int, ttl time.Duration) (*RedisMoveLog, error) {
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return nil, fmt.Errorf("shogi: missing REDIS_ADDR for redis move log")
	}
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	return NewRedisMoveLogWithClient(client, ttl), nil
}

func NewRedisMoveLogWithClient(client *redis.Client, ttl time.Duration) *RedisMoveLog {
	return &RedisMoveLog{client: client, ttl: ttl}
}

func movesKey(gameID string) string { return redisKeyPrefix + gameID + ":moves" }
func seqKey(gameID string) string { return redisKeyPrefix + gameID + ":seq" }

// Ping 启动时检查连接
func (l *RedisMoveLog) Ping(ctx context.Context) error {
	return l.client.Ping(ctx).Err()
}

func (l *RedisMoveLog) Close() error {
	return l.client.Close()
}

func (l *RedisMoveLog) Append(ctx context.Context, gameID string, req entity.MoveRequest) (entity.Move, error) {
	if err := ValidateMove(req); err != nil {
		return entity.Move{}, err
	}
	number, err := l.client.Incr(ctx, seqKey(gameID)).Result()
	if err != nil {
		return entity.Move{}, fmt.Errorf("incr move seq: %w", err)
	}
	move := buildMove(int(number), req)
	data, err := json.Marshal(move)
	if err != nil {
		return entity.Move{}, err
	}

	pipe := l.client.TxPipeline()
	pipe.RPush(ctx, movesKey(gameID), data)
	if l.ttl > 0 {
		pipe.Expire(ctx, movesKey(gameID), l.ttl)
		pipe.Expire(ctx, seqKey(gameID), l.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return entity.Move{}, fmt.Errorf("append move: %w", err)
	}
	return move, nil
}

func (l *RedisMoveLog) List(ctx context.Context, gameID string) ([]entity.Move, error) {
	raw, err := l.client.LRange(ctx, movesKey(gameID), 0, -1).Result()
	if err != nil && err != redis.Nil {
		return nil, fmt.Errorf("list moves: %w", err)
	}
	moves := make([]entity.Move, 0, len(raw))
	for _, item := range raw {
		var move entity.Move
		if err := json.Unmarshal([]byte(item), &move); err != nil {
			return nil, fmt.Errorf("decode move: %w", err)
		}
		moves = append(moves, move)
	}
	return moves, nil
}

func (l *RedisMoveLog) Reset(ctx context.Context, gameID string) error {
	if err := l.client.Del(ctx, movesKey(gameID), seqKey(gameID)).Err(); err != nil {
		return fmt.Errorf("reset moves: %w", err)
	}
	return nil
}
