package shogi

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"portal/internal/entity"
	"sort"
	"strings"
)

// AllowedFormats 可保存、可列出的棋谱扩展名
var AllowedFormats = []string{"kif", "ki2", "csa", "jkf", "kifu"}

var (
	ErrInvalidFilename   = errors.New("shogi: invalid filename")
	ErrKifuNotFound      = errors.New("shogi: kifu not found")
	ErrUnsupportedFormat = errors.New("shogi: unsupported format")
	ErrEmptyKifu         = errors.New("shogi: kifu text is empty")
)

// Store 棋谱文件目录
type Store struct {
	dir string
}

func NewStore(dir string) (*Store, error) {
	dir = strings.TrimSpace(dir)
	if dir == "" {
		dir = "datas/kifu"
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create kifu dir: %w", err)
	}
	return &Store{dir: dir}, nil
}

func isAllowedFormat(format string) bool {
	for _, f := range AllowedFormats {
		if f == format {
			return true
		}
	}
	return false
}

func formatOf(filename string) string {
	return strings.ToLower(strings.TrimPrefix(filepath.Ext(filename), "."))
}

// Save writes raw under SafeFilename(title + "." + format) and returns the
// stored name. An empty title falls back to the title found in the kifu
// headers, then to "game". Existing files with the same name are replaced.
func (s *Store) Save(title, format, raw string) (string, error) {
	format = strings.ToLower(strings.TrimSpace(format))
	if format == "" {
		format = "kif"
	}
	if !isAllowedFormat(format) {
		return "", ErrUnsupportedFormat
	}
	if strings.TrimSpace(raw) == "" {
		return "", ErrEmptyKifu
	}

	text := normalizeNewlines(raw)
	title = strings.TrimSpace(title)
	if title == "" {
		title = ParseMetadata("", text).Title
	}
	if title == "" {
		title = "game"
	}

	name := kifuFilename(title, format)
	path, err := s.resolve(name)
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(path, []byte(text), 0o644); err != nil {
		return "", fmt.Errorf("write kifu: %w", err)
	}
	return name, nil
}

// List 按修改时间倒序
func (s *Store) List() ([]entity.KifuFile, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return []entity.KifuFile{}, nil
		}
		return nil, err
	}

	files := make([]entity.KifuFile, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !isAllowedFormat(formatOf(entry.Name())) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		files = append(files, entity.KifuFile{
			Filename: entry.Name(),
			Size:     info.Size(),
			Format:   strings.ToUpper(formatOf(entry.Name())),
			Modified: info.ModTime(),
		})
	}
	sort.SliceStable(files, func(i, j int) bool {
		return files[i].Modified.After(files[j].Modified)
	})
	return files, nil
}

// Read 返回文件内容与文件信息；非法文件名返回 ErrInvalidFilename 且不读盘
func (s *Store) Read(name string) (string, entity.KifuFile, error) {
	if !validViewName(name) {
		return "", entity.KifuFile{}, ErrInvalidFilename
	}
	path, err := s.resolve(name)
	if err != nil {
		return "", entity.KifuFile{}, err
	}
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return "", entity.KifuFile{}, ErrKifuNotFound
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", entity.KifuFile{}, fmt.Errorf("read kifu: %w", err)
	}
	file := entity.KifuFile{
		Filename: name,
		Size:     info.Size(),
		Format:   formatOf(name),
		Modified: info.ModTime(),
	}
	return string(data), file, nil
}

// resolve 确认路径仍在目录内
func (s *Store) resolve(name string) (string, error) {
	base, err := filepath.Abs(s.dir)
	if err != nil {
		return "", err
	}
	path := filepath.Join(base, name)
	rel, err := filepath.Rel(base, path)
	if err != nil || rel == "." || strings.HasPrefix(rel, "..") || strings.ContainsRune(rel, filepath.Separator) {
		return "", ErrInvalidFilename
	}
	return path, nil
}

func normalizeNewlines(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	return strings.ReplaceAll(text, "\r", "\n")
}
