package source

import (
	"context"
	"os"
	"strings"
	"unicode/utf8"
)

// FileLoader reads UTF-8 text files from the local filesystem.
type FileLoader struct {
	cache *cache
}

// NewFileLoader creates a caching file loader.
func NewFileLoader() *FileLoader {
	return &FileLoader{cache: newCache()}
}

// Load reads the file at path. A file:// prefix is accepted.
func (l *FileLoader) Load(ctx context.Context, path string) (string, error) {
	path = strings.TrimPrefix(path, "file://")
	return l.cache.get(path, func() (string, error) {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return "", err
		}
		if !utf8.Valid(data) {
			data = []byte(strings.ToValidUTF8(string(data), ""))
		}
		return string(data), nil
	})
}
