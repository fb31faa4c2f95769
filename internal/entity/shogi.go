package entity

import "time"

const (
	PlayerSente = "sente"
	PlayerGote  = "gote"
)

// Move 棋谱中的一步
type Move struct {
	MoveNumber int    `json:"move_number"`
	From       string `json:"from"`
	To         string `json:"to"`
	Piece      string `json:"piece"`
	Promotion  bool   `json:"promotion"`
	Player     string `json:"player"`
	Timestamp  string `json:"timestamp,omitempty"`
}

// MoveRequest 落子请求
type MoveRequest struct {
	GameID    string `json:"game_id"`
	From      string `json:"from"`
	To        string `json:"to"`
	Piece     string `json:"piece"`
	Promotion bool   `json:"promotion"`
	Timestamp string `json:"timestamp"`
}

// SaveGameRequest 保存对局请求
type SaveGameRequest struct {
	GameID    string `json:"game_id"`
	Title     string `json:"title"`
	Timestamp string `json:"timestamp"`
}

// KifuFile 棋谱文件信息
type KifuFile struct {
	Filename string    `json:"filename"`
	Size     int64     `json:"size"`
	Format   string    `json:"format"`
	Modified time.Time `json:"modified"`
}

// KifuMetadata 从棋谱头部解析的信息
type KifuMetadata struct {
	Title    string `json:"title,omitempty"`
	Event    string `json:"event,omitempty"`
	Sente    string `json:"sente,omitempty"`
	Gote     string `json:"gote,omitempty"`
	WorkName string `json:"work_name,omitempty"`
	Author   string `json:"author,omitempty"`
	Magazine string `json:"magazine,omitempty"`
	Date     string `json:"date,omitempty"`
	Award    string `json:"award,omitempty"`
	Moves    string `json:"moves,omitempty"`
	IsTsume  bool   `json:"is_tsume"`
}
