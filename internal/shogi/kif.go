package shogi

import (
	"fmt"
	"portal/internal/entity"
	"strings"
	"time"
)

var (
	fullWidthDigits = []string{"", "１", "２", "３", "４", "５", "６", "７", "８", "９"}
	kanjiRanks      = []string{"", "一", "二", "三", "四", "五", "六", "七", "八", "九"}
)

// RenderKIF 把走法日志渲染为 KIF 文本（平手）
func RenderKIF(title string, moves []entity.Move, startedAt time.Time) string {
	var b strings.Builder
	b.WriteString("# ---- Kifu for portal ----\n")
	fmt.Fprintf(&b, "開始日時：%s\n", startedAt.Format("2006/01/02 15:04:05"))
	if title = strings.TrimSpace(title); title != "" {
		fmt.Fprintf(&b, "表題：%s\n", title)
	}
	b.WriteString("手合割：平手\n")
	b.WriteString("先手：\n")
	b.WriteString("後手：\n")
	b.WriteString("手数----指手---------消費時間--\n")

	prevTo := ""
	for _, move := range moves {
		fmt.Fprintf(&b, "%4d %s\n", move.MoveNumber, kifMove(move, prevTo))
		prevTo = move.To
	}
	return b.String()
}

func kifMove(move entity.Move, prevTo string) string {
	var b strings.Builder
	if move.To == prevTo && validSquare(move.To) {
		b.WriteString("同　")
	} else {
		b.WriteString(squareName(move.To))
	}

	piece := move.Piece
	if jp, ok := pieceVocabulary[piece]; ok {
		piece = jp
	}
	b.WriteString(piece)

	switch {
	case isDrop(move.From):
		b.WriteString("打")
	default:
		if move.Promotion {
			b.WriteString("成")
		}
		fmt.Fprintf(&b, "(%s)", move.From)
	}
	return b.String()
}

func squareName(sq string) string {
	if !validSquare(sq) {
		return sq
	}
	return fullWidthDigits[sq[0]-'0'] + kanjiRanks[sq[1]-'0']
}
