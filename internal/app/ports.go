package app

import (
	"context"
	"io/fs"
)

type FileSystem interface {
	Stat(path string) (fs.FileInfo, error)
	Exists(path string) (bool, error)
}

// Transferer is the external transfer operation. kbps of zero means no limit.
// A non-nil error marks the transfer as failed; its message is the diagnostic.
type Transferer interface {
	Transfer(ctx context.Context, source, destination string, kbps int64) error
}

// TransferFunc adapts a plain function to Transferer.
type TransferFunc func(ctx context.Context, source, destination string, kbps int64) error

func (f TransferFunc) Transfer(ctx context.Context, source, destination string, kbps int64) error {
	return f(ctx, source, destination, kbps)
}
