package shogi

import (
	"strings"
	"unicode"
)

const (
	maxFilenameRunes = 200
	// 常见文件系统单个文件名的字节上限
	maxFilenameBytes = 255
)

// SafeFilename keeps non-ASCII letters (kana, kanji) while removing
// characters that are unsafe on common filesystems. Whitespace runs become a
// single underscore; an empty result after cleaning becomes "kifu".
func SafeFilename(name string) string {
	if name == "" {
		return ""
	}

	var b strings.Builder
	b.Grow(len(name))
	for _, r := range name {
		if r <= 0x1f || strings.ContainsRune(`<>:"/\|?*`, r) {
			continue
		}
		b.WriteRune(r)
	}

	cleaned := strings.Join(strings.FieldsFunc(b.String(), unicode.IsSpace), "_")
	if cleaned == "" {
		return "kifu"
	}

	if runes := []rune(cleaned); len(runes) > maxFilenameRunes {
		cleaned = string(runes[:maxFilenameRunes])
	}
	return cleaned
}

// kifuFilename 先截断标题再拼接扩展名，保证结果以 "."+format 结尾
func kifuFilename(title, format string) string {
	ext := "." + format
	stem := []rune(SafeFilename(title))
	if limit := maxFilenameRunes - len([]rune(ext)); len(stem) > limit {
		stem = stem[:limit]
	}
	for len(stem) > 0 && len(string(stem))+len(ext) > maxFilenameBytes {
		stem = stem[:len(stem)-1]
	}
	return string(stem) + ext
}

// validViewName 拒绝空名以及包含 ..、/、\ 的文件名
func validViewName(name string) bool {
	if strings.TrimSpace(name) == "" {
		return false
	}
	return !strings.Contains(name, "..") && !strings.ContainsAny(name, `/\`)
}
