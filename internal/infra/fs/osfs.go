package fs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/time/rate"
)

const copyChunkSize = 32 * 1024

type OSFS struct{}

func (OSFS) Stat(path string) (fs.FileInfo, error) {
	return os.Stat(path)
}

func (OSFS) Exists(path string) (bool, error) {
	_, err := os.Stat(path)
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, err
}

// Copier transfers files on the local filesystem, throttled to the granted
// bandwidth. A destination that is an existing directory or ends in a path
// separator receives the file under its own name.
type Copier struct{}

func (Copier) Transfer(ctx context.Context, source, destination string, kbps int64) error {
	target, err := resolveTarget(source, destination)
	if err != nil {
		return err
	}
	return CopyFile(ctx, source, target, kbps)
}

func resolveTarget(source, destination string) (string, error) {
	if destination == "" {
		return "", errors.New("empty destination")
	}
	if strings.HasSuffix(destination, string(filepath.Separator)) || strings.HasSuffix(destination, "/") {
		return filepath.Join(destination, filepath.Base(source)), nil
	}
	info, err := os.Stat(destination)
	switch {
	case err == nil && info.IsDir():
		return filepath.Join(destination, filepath.Base(source)), nil
	case err == nil || os.IsNotExist(err):
		return destination, nil
	default:
		return "", err
	}
}

// CopyFile copies src to dst at no more than kbps KB/s. Zero means unlimited.
func CopyFile(ctx context.Context, src, dst string, kbps int64) error {
	srcFile, err := os.Open(src)
	if err != nil {
		return err
	}
	defer srcFile.Close()

	info, err := srcFile.Stat()
	if err != nil {
		return err
	}
	if info.IsDir() {
		return fmt.Errorf("%s is a directory", src)
	}

	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}

	dstFile, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, info.Mode())
	if err != nil {
		return err
	}
	defer dstFile.Close()

	var limiter *rate.Limiter
	if kbps > 0 {
		limiter = rate.NewLimiter(rate.Limit(kbps*1024), copyChunkSize)
	}

	buf := make([]byte, copyChunkSize)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		n, readErr := srcFile.Read(buf)
		if n > 0 {
			if limiter != nil {
				if err := limiter.WaitN(ctx, n); err != nil {
					return err
				}
			}
			if _, err := dstFile.Write(buf[:n]); err != nil {
				return err
			}
		}
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			return readErr
		}
	}

	return dstFile.Close()
}
