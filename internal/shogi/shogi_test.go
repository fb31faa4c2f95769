package shogi

import (
	"context"
	"os"
	"path/filepath"
	"portal/internal/entity"
	"strings"
	"sync"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSafeFilename(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"空字符串", "", ""},
		{"去除危险字符", "Test<>:\"/\\|?*File", "TestFile"},
		{"保留日文", "詰将棋 第1問.kif", "詰将棋_第1問.kif"},
		{"控制字符", "a\x00b\x1fc", "abc"},
		{"连续空白", "  a   b\t\tc  ", "a_b_c"},
		{"全部被去除", "<>?", "kifu"},
		{"只有空白", "   ", "kifu"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, SafeFilename(tt.input))
		})
	}

	long := SafeFilename(strings.Repeat("棋", 300))
	assert.Equal(t, 200, utf8.RuneCountInString(long))
}

func TestStoreSaveListRead(t *testing.T) {
	dir := t.TempDir()
	store, err := NewStore(dir)
	require.NoError(t, err)

	name, err := store.Save("", "", "開始日時：2025/01/01\r\n先手：羽生\r\n後手：藤井\r\n")
	require.NoError(t, err)
	assert.Equal(t, "羽生_vs_藤井.kif", name)

	name2, err := store.Save("", "csa", "V2.2\nPI\n+\n")
	require.NoError(t, err)
	assert.Equal(t, "game.csa", name2)

	// 非棋谱文件不列出
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644))
	past := time.Now().Add(-time.Hour)
	require.NoError(t, os.Chtimes(filepath.Join(dir, name), past, past))

	files, err := store.List()
	require.NoError(t, err)
	require.Len(t, files, 2)
	assert.Equal(t, "game.csa", files[0].Filename)
	assert.Equal(t, "CSA", files[0].Format)

	content, info, err := store.Read(name)
	require.NoError(t, err)
	assert.NotContains(t, content, "\r")
	assert.Equal(t, "kif", info.Format)

	_, err = store.Save("x", "exe", "data")
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
	_, err = store.Save("x", "kif", "  \n")
	assert.ErrorIs(t, err, ErrEmptyKifu)
}

func TestStoreSaveLongTitleKeepsExtension(t *testing.T) {
	store, err := NewStore(t.TempDir())
	require.NoError(t, err)

	ascii, err := store.Save(strings.Repeat("a", 300), "kif", "先手：A\n後手：B\n")
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(ascii, ".kif"), ascii)
	assert.Equal(t, maxFilenameRunes, utf8.RuneCountInString(ascii))

	// 多字节标题同时受字节上限约束
	kanji, err := store.Save(strings.Repeat("棋", 300), "csa", "V2.2\n")
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(kanji, ".csa"), kanji)
	assert.LessOrEqual(t, len(kanji), maxFilenameBytes)

	files, err := store.List()
	require.NoError(t, err)
	require.Len(t, files, 2)
	names := []string{files[0].Filename, files[1].Filename}
	assert.ElementsMatch(t, []string{ascii, kanji}, names)

	_, _, err = store.Read(ascii)
	assert.NoError(t, err)
}

func TestStoreReadRejectsTraversal(t *testing.T) {
	store, err := NewStore(t.TempDir())
	require.NoError(t, err)

	for _, name := range []string{"../../etc/passwd", "a/b.kif", `a\b.kif`, "..", ""} {
		_, _, err := store.Read(name)
		assert.ErrorIs(t, err, ErrInvalidFilename, name)
	}
	_, _, err = store.Read("missing.kif")
	assert.ErrorIs(t, err, ErrKifuNotFound)
}

func TestParseMetadata(t *testing.T) {
	content := "作品名：銀河\n作者：山田\n発表誌：将棋世界\n発表年月：2020年1月\n受賞：看寿賞\n手数：11\n手数----指手---------消費時間--\n作者：無視\n"
	meta := ParseMetadata("problem.kif", content)
	assert.Equal(t, "銀河", meta.WorkName)
	assert.Equal(t, "銀河", meta.Title)
	assert.Equal(t, "山田", meta.Author)
	assert.Equal(t, "将棋世界", meta.Magazine)
	assert.Equal(t, "2020年1月", meta.Date)
	assert.Equal(t, "看寿賞", meta.Award)
	assert.Equal(t, "11", meta.Moves)
	assert.True(t, meta.IsTsume)

	assert.True(t, ParseMetadata("tsume_01.kif", "").IsTsume)
	assert.True(t, ParseMetadata("詰.kif", "").IsTsume)
	assert.False(t, ParseMetadata("game.kif", "先手：a\n").IsTsume)
}

func TestValidateMove(t *testing.T) {
	tests := []struct {
		name  string
		req   entity.MoveRequest
		valid bool
	}{
		{"普通走法", entity.MoveRequest{From: "77", To: "76", Piece: "歩"}, true},
		{"CSA 代码", entity.MoveRequest{From: "28", To: "22", Piece: "HI", Promotion: true}, true},
		{"打入", entity.MoveRequest{From: "00", To: "55", Piece: "角"}, true},
		{"打入空 from", entity.MoveRequest{To: "55", Piece: "金"}, true},
		{"打入不能升变", entity.MoveRequest{From: "00", To: "55", Piece: "角", Promotion: true}, false},
		{"越界", entity.MoveRequest{From: "77", To: "70", Piece: "歩"}, false},
		{"非法棋子", entity.MoveRequest{From: "77", To: "76", Piece: "pawn"}, false},
		{"原地", entity.MoveRequest{From: "77", To: "77", Piece: "歩"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateMove(tt.req)
			if tt.valid {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, ErrInvalidMove)
			}
		})
	}
}

func TestMemoryMoveLog(t *testing.T) {
	ctx := context.Background()
	log := NewMemoryMoveLog(time.Hour)

	moves, err := log.List(ctx, "g1")
	require.NoError(t, err)
	assert.Empty(t, moves)

	first, err := log.Append(ctx, "g1", entity.MoveRequest{From: "77", To: "76", Piece: "歩"})
	require.NoError(t, err)
	assert.Equal(t, 1, first.MoveNumber)
	assert.Equal(t, entity.PlayerSente, first.Player)

	second, err := log.Append(ctx, "g1", entity.MoveRequest{From: "33", To: "34", Piece: "歩"})
	require.NoError(t, err)
	assert.Equal(t, 2, second.MoveNumber)
	assert.Equal(t, entity.PlayerGote, second.Player)

	_, err = log.Append(ctx, "g1", entity.MoveRequest{From: "99", To: "00", Piece: "歩"})
	assert.ErrorIs(t, err, ErrInvalidMove)

	// 对局之间互不影响
	other, err := log.Append(ctx, "g2", entity.MoveRequest{From: "27", To: "26", Piece: "歩"})
	require.NoError(t, err)
	assert.Equal(t, 1, other.MoveNumber)

	require.NoError(t, log.Reset(ctx, "g1"))
	moves, err = log.List(ctx, "g1")
	require.NoError(t, err)
	assert.Empty(t, moves)
}

func TestMemoryMoveLogConcurrentAppend(t *testing.T) {
	ctx := context.Background()
	log := NewMemoryMoveLog(0)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = log.Append(ctx, "g", entity.MoveRequest{From: "77", To: "76", Piece: "歩"})
		}()
	}
	wg.Wait()

	moves, err := log.List(ctx, "g")
	require.NoError(t, err)
	require.Len(t, moves, 20)
	for i, m := range moves {
		assert.Equal(t, i+1, m.MoveNumber)
	}
}

func TestMemoryMoveLogExpires(t *testing.T) {
	ctx := context.Background()
	log := NewMemoryMoveLog(time.Minute)
	now := time.Now()
	log.now = func() time.Time { return now }

	_, err := log.Append(ctx, "g", entity.MoveRequest{From: "77", To: "76", Piece: "歩"})
	require.NoError(t, err)

	now = now.Add(2 * time.Minute)
	moves, err := log.List(ctx, "g")
	require.NoError(t, err)
	assert.Empty(t, moves)
}

func TestRenderKIF(t *testing.T) {
	moves := []entity.Move{
		{MoveNumber: 1, From: "77", To: "76", Piece: "歩"},
		{MoveNumber: 2, From: "33", To: "34", Piece: "FU"},
		{MoveNumber: 3, From: "88", To: "22", Piece: "角", Promotion: true},
		{MoveNumber: 4, From: "31", To: "22", Piece: "銀"},
		{MoveNumber: 5, From: "00", To: "45", Piece: "角"},
	}
	text := RenderKIF("対局", moves, time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC))
	assert.Contains(t, text, "開始日時：2025/01/02 03:04:05\n")
	assert.Contains(t, text, "表題：対局\n")
	assert.Contains(t, text, "   1 ７六歩(77)\n")
	assert.Contains(t, text, "   2 ３四歩(33)\n")
	assert.Contains(t, text, "   3 ２二角成(88)\n")
	assert.Contains(t, text, "   4 同　銀(31)\n")
	assert.Contains(t, text, "   5 ４五角打\n")
}

func TestGameID(t *testing.T) {
	id, err := NewGameID()
	require.NoError(t, err)
	assert.Len(t, id, gameIDLength)
	assert.True(t, ValidGameID(id))
	assert.False(t, ValidGameID("../x"))
	assert.False(t, ValidGameID(""))
}
