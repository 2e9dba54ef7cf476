// Package discard reads the list of names excluded from a giveaway.
package discard

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/google/logger"
)

// DefaultPath is used when no discard file is configured.
const DefaultPath = "discarded.txt"

// FileSource reads one raw name per line from a text file.
type FileSource struct {
	Path string
}

func (f FileSource) path() string {
	if strings.TrimSpace(f.Path) == "" {
		return DefaultPath
	}
	return f.Path
}

// ReadLines returns the file's lines in order. A missing file yields no
// lines and no error.
func (f FileSource) ReadLines() ([]string, error) {
	path := f.path()
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			logger.Infof("No discarded file has been selected (%s not found)", path)
			return nil, nil
		}
		return nil, fmt.Errorf("read discard file %s: %w", path, err)
	}
	return strings.Split(string(data), "\n"), nil
}
