package uploader

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

const bytesPerMB = 1024 * 1024

// LocalFile is a file found by Discover. It is not re-read afterwards.
type LocalFile struct {
	Path string
	Name string
	Size int64
}

// SizeMB is the size in mebibytes, as printed before each transfer.
func (f LocalFile) SizeMB() float64 {
	return float64(f.Size) / bytesPerMB
}

// Discover returns the regular files in dir matching pattern, sorted by
// name. No match is not an error. A match that is gone by the time it is
// inspected is skipped.
func Discover(dir, pattern string) ([]LocalFile, error) {
	matches, err := filepath.Glob(filepath.Join(dir, pattern))
	if err != nil {
		return nil, fmt.Errorf("glob %q: %w", pattern, err)
	}

	files := make([]LocalFile, 0, len(matches))
	for _, m := range matches {
		info, err := os.Stat(m)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("stat %s: %w", m, err)
		}
		if !info.Mode().IsRegular() {
			continue
		}
		files = append(files, LocalFile{
			Path: m,
			Name: filepath.Base(m),
			Size: info.Size(),
		})
	}

	sort.Slice(files, func(i, j int) bool { return files[i].Name < files[j].Name })
	return files, nil
}

// TargetKey maps a file name to its object key under prefix, with exactly
// one "/" between them.
func TargetKey(prefix, name string) string {
	prefix = strings.TrimSuffix(prefix, "/")
	name = strings.TrimPrefix(name, "/")
	if prefix == "" {
		return name
	}
	return prefix + "/" + name
}

// ObjectURI renders bucket/key the way the aws CLI does.
func ObjectURI(bucket, key string) string {
	return fmt.Sprintf("s3://%s/%s", bucket, key)
}
