package storage

import (
	"mime"
	"path"
	"strconv"
	"strings"
	"time"
	"unicode"
)

// objectKey 生成 category/YYYY/MM/DD/base.ext
func objectKey(opts SaveOptions) string {
	now := time.Now().UTC()

	category := keySegment(opts.Category)
	if category == "" {
		category = "misc"
	}
	ext := keySegment(strings.TrimPrefix(strings.TrimSpace(opts.Extension), "."))
	if ext == "" {
		ext = "bin"
	}
	base := strings.Trim(keySegment(strings.ReplaceAll(strings.TrimSpace(opts.BaseName), " ", "-")), "-_")
	if base == "" {
		base = strconv.FormatInt(now.UnixNano(), 10)
	}
	return path.Join(category, now.Format("2006/01/02"), base+"."+ext)
}

// keySegment 只保留 ASCII 小写字母、数字、'-'、'_'，大写转小写
func keySegment(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		case r >= 'A' && r <= 'Z':
			return unicode.ToLower(r)
		}
		return -1
	}, strings.TrimSpace(s))
}

func cleanPrefix(prefix string) string {
	return strings.Trim(strings.TrimSpace(prefix), "/")
}

func withPrefix(prefix, key string) string {
	key = strings.TrimLeft(key, "/")
	if p := cleanPrefix(prefix); p != "" {
		return path.Join(p, key)
	}
	return key
}

// contentTypeFor 显式类型优先，否则按 key 的扩展名推断
func contentTypeFor(key, explicit string) string {
	if ct := strings.TrimSpace(explicit); ct != "" {
		return ct
	}
	if ct := mime.TypeByExtension(strings.ToLower(path.Ext(key))); ct != "" {
		return ct
	}
	return "application/octet-stream"
}
