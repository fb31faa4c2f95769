package shogi

import (
	"context"
	"errors"
	"fmt"
	"portal/internal/config"
	"portal/internal/entity"
	"strings"
	"sync"
	"time"

	gonanoid "github.com/matoous/go-nanoid/v2"
)

const (
	MoveLogMemory = "memory"
	MoveLogRedis  = "redis"

	gameIDAlphabet = "0123456789abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ"
	gameIDLength   = 16
)

// ErrInvalidMove 走法结构不合法（不做规则判定）
var ErrInvalidMove = errors.New("shogi: invalid move")

// pieceVocabulary 日文棋子名与 CSA 代码
var pieceVocabulary = map[string]string{
	"歩": "歩", "香": "香", "桂": "桂", "銀": "銀", "金": "金", "角": "角", "飛": "飛",
	"玉": "玉", "王": "王", "と": "と", "成香": "成香", "成桂": "成桂", "成銀": "成銀",
	"馬": "馬", "龍": "龍", "竜": "龍",
	"FU": "歩", "KY": "香", "KE": "桂", "GI": "銀", "KI": "金", "KA": "角", "HI": "飛",
	"OU": "玉", "TO": "と", "NY": "成香", "NK": "成桂", "NG": "成銀", "UM": "馬", "RY": "龍",
}

// MoveLog is an append-only move list per game. Append assigns the move
// number and the player (sente on odd moves, gote on even).
type MoveLog interface {
	Append(ctx context.Context, gameID string, req entity.MoveRequest) (entity.Move, error)
	List(ctx context.Context, gameID string) ([]entity.Move, error)
	Reset(ctx context.Context, gameID string) error
}

// NewMoveLog 根据 MOVELOG_BACKEND 选择实现
func NewMoveLog(cfg config.Config) (MoveLog, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.MoveLogBackend)) {
	case "", MoveLogMemory:
		return NewMemoryMoveLog(cfg.MoveLogTTL), nil
	case MoveLogRedis:
		return NewRedisMoveLog(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, cfg.MoveLogTTL)
	default:
		return nil, fmt.Errorf("unsupported move log backend: %s", cfg.MoveLogBackend)
	}
}

// NewGameID 生成对局 ID
func NewGameID() (string, error) {
	return gonanoid.Generate(gameIDAlphabet, gameIDLength)
}

// ValidGameID 只接受 NewGameID 字母表内的字符
func ValidGameID(id string) bool {
	if id == "" || len(id) > 64 {
		return false
	}
	for _, r := range id {
		if !strings.ContainsRune(gameIDAlphabet+"-_", r) {
			return false
		}
	}
	return true
}

// ValidateMove checks shape only: squares are "<file><rank>" with digits
// 1-9, from may be empty or "00" for a drop, the piece must be known.
func ValidateMove(req entity.MoveRequest) error {
	if !validSquare(req.To) {
		return fmt.Errorf("%w: to %q", ErrInvalidMove, req.To)
	}
	if req.From != "" && req.From != "00" && !validSquare(req.From) {
		return fmt.Errorf("%w: from %q", ErrInvalidMove, req.From)
	}
	if req.From == req.To {
		return fmt.Errorf("%w: from equals to", ErrInvalidMove)
	}
	if _, ok := pieceVocabulary[strings.TrimSpace(req.Piece)]; !ok {
		return fmt.Errorf("%w: piece %q", ErrInvalidMove, req.Piece)
	}
	if isDrop(req.From) && req.Promotion {
		return fmt.Errorf("%w: drops cannot promote", ErrInvalidMove)
	}
	return nil
}

func validSquare(sq string) bool {
	return len(sq) == 2 && sq[0] >= '1' && sq[0] <= '9' && sq[1] >= '1' && sq[1] <= '9'
}

func isDrop(from string) bool {
	return from == "" || from == "00"
}

// buildMove 由序号补全 player
func buildMove(number int, req entity.MoveRequest) entity.Move {
	player := entity.PlayerSente
	if number%2 == 0 {
		player = entity.PlayerGote
	}
	return entity.Move{
		MoveNumber: number,
		From:       req.From,
		To:         req.To,
		Piece:      strings.TrimSpace(req.Piece),
		Promotion:  req.Promotion,
		Player:     player,
		Timestamp:  req.Timestamp,
	}
}

// SampleMoves 空棋谱时展示的开局示例，不写入日志
func SampleMoves() []entity.Move {
	return []entity.Move{
		{MoveNumber: 1, From: "77", To: "76", Piece: "歩", Player: entity.PlayerSente, Timestamp: "2025-01-01T00:00:00Z"},
		{MoveNumber: 2, From: "33", To: "34", Piece: "歩", Player: entity.PlayerGote, Timestamp: "2025-01-01T00:01:00Z"},
	}
}

type memoryGame struct {
	moves     []entity.Move
	touchedAt time.Time
}

// MemoryMoveLog 进程内实现，超过 ttl 未访问的对局在下次访问时清理
type MemoryMoveLog struct {
	mu    sync.Mutex
	games map[string]*memoryGame
	ttl   time.Duration
	now   func() time.Time
}

func NewMemoryMoveLog(ttl time.Duration) *MemoryMoveLog {
	return &MemoryMoveLog{games: make(map[string]*memoryGame), ttl: ttl, now: time.Now}
}

func (l *MemoryMoveLog) Append(_ context.Context, gameID string, req entity.MoveRequest) (entity.Move, error) {
	if err := ValidateMove(req); err != nil {
		return entity.Move{}, err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.evictLocked()

	game, ok := l.games[gameID]
	if !ok {
		game = &memoryGame{}
		l.games[gameID] = game
	}
	move := buildMove(len(game.moves)+1, req)
	game.moves = append(game.moves, move)
	game.touchedAt = l.now()
	return move, nil
}

func (l *MemoryMoveLog) List(_ context.Context, gameID string) ([]entity.Move, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.evictLocked()

	game, ok := l.games[gameID]
	if !ok {
		return []entity.Move{}, nil
	}
	game.touchedAt = l.now()
	out := make([]entity.Move, len(game.moves))
	copy(out, game.moves)
	return out, nil
}

func (l *MemoryMoveLog) Reset(_ context.Context, gameID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.games, gameID)
	return nil
}

func (l *MemoryMoveLog) evictLocked() {
	if l.ttl <= 0 {
		return
	}
	cutoff := l.now().Add(-l.ttl)
	for id, game := range l.games {
		if game.touchedAt.Before(cutoff) {
			delete(l.games, id)
		}
	}
}
