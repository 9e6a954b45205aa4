package config

import (
	_ "embed"
	"errors"
	"io/fs"
	"os"
)

//go:embed bad-words.txt
var defaultBannedWords []byte

// BannedWords returns the banned-term list at path, one term per line. The
// list compiled into the binary is used when the file does not exist.
func BannedWords(path string) ([]byte, error) {
	if path == "" {
		return defaultBannedWords, nil
	}
	b, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return defaultBannedWords, nil
	}
	return b, err
}
