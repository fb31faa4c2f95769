package shogi

import (
	"bufio"
	"portal/internal/entity"
	"strings"
)

// headerFields KIF 头部键与元数据字段的对应
var headerFields = map[string]func(*entity.KifuMetadata, string){
	"表題":   func(m *entity.KifuMetadata, v string) { m.Title = v },
	"棋戦":   func(m *entity.KifuMetadata, v string) { m.Event = v },
	"先手":   func(m *entity.KifuMetadata, v string) { m.Sente = v },
	"後手":   func(m *entity.KifuMetadata, v string) { m.Gote = v },
	"作品名":  func(m *entity.KifuMetadata, v string) { m.WorkName = v },
	"作者":   func(m *entity.KifuMetadata, v string) { m.Author = v },
	"発表誌":  func(m *entity.KifuMetadata, v string) { m.Magazine = v },
	"発表年月": func(m *entity.KifuMetadata, v string) { m.Date = v },
	"受賞":   func(m *entity.KifuMetadata, v string) { m.Award = v },
	"手数":   func(m *entity.KifuMetadata, v string) { m.Moves = v },
}

// ParseMetadata reads "key：value" header lines (full- or half-width colon)
// until the move list starts. Title is the explicit 表題, else 作品名, else
// "先手 vs 後手" when both players are named.
func ParseMetadata(filename, content string) entity.KifuMetadata {
	var meta entity.KifuMetadata

	scanner := bufio.NewScanner(strings.NewReader(content))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if strings.HasPrefix(line, "手数----") {
			break
		}
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, ok := splitHeader(line)
		if !ok {
			continue
		}
		if set, found := headerFields[key]; found {
			set(&meta, value)
		}
	}

	if meta.Title == "" {
		switch {
		case meta.WorkName != "":
			meta.Title = meta.WorkName
		case meta.Sente != "" && meta.Gote != "":
			meta.Title = meta.Sente + " vs " + meta.Gote
		}
	}
	meta.IsTsume = isTsume(filename, content, meta)
	return meta
}

func splitHeader(line string) (string, string, bool) {
	for _, sep := range []string{"：", ":"} {
		if key, value, ok := strings.Cut(line, sep); ok {
			return strings.TrimSpace(key), strings.TrimSpace(value), true
		}
	}
	return "", "", false
}

func isTsume(filename, content string, meta entity.KifuMetadata) bool {
	if strings.Contains(filename, "詰") || strings.Contains(strings.ToLower(filename), "tsume") {
		return true
	}
	if strings.Contains(content, "詰将棋") || strings.Contains(content, "詰め将棋") {
		return true
	}
	return meta.WorkName != "" && meta.Moves != ""
}
