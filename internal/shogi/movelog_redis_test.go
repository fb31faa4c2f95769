package shogi

import (
	"context"
	"os"
	"portal/internal/entity"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// 需要真实 Redis：TEST_REDIS_ADDR=localhost:6379
func TestRedisMoveLog(t *testing.T) {
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("TEST_REDIS_ADDR not set")
	}
	ctx := context.Background()
	log, err := NewRedisMoveLog(addr, "", 0, time.Minute)
	require.NoError(t, err)
	defer log.Close()
	require.NoError(t, log.Ping(ctx))

	gameID, err := NewGameID()
	require.NoError(t, err)
	defer log.Reset(ctx, gameID)

	first, err := log.Append(ctx, gameID, entity.MoveRequest{From: "77", To: "76", Piece: "歩"})
	require.NoError(t, err)
	assert.Equal(t, 1, first.MoveNumber)
	second, err := log.Append(ctx, gameID, entity.MoveRequest{From: "33", To: "34", Piece: "歩"})
	require.NoError(t, err)
	assert.Equal(t, entity.PlayerGote, second.Player)

	moves, err := log.List(ctx, gameID)
	require.NoError(t, err)
	assert.Equal(t, []entity.Move{first, second}, moves)

	require.NoError(t, log.Reset(ctx, gameID))
	moves, err = log.List(ctx, gameID)
	require.NoError(t, err)
	assert.Empty(t, moves)
}
