package storage

import (
	"context"
	"errors"
	"fmt"
	"io"

	"clinicdocs/pkg/logging"
)

// fallbackStorage writes to primary and falls back to secondary when primary fails.
// Reads try primary first, then secondary. Deletes go to both.
type fallbackStorage struct {
	primary   Storage
	secondary Storage
	logger    *logging.Logger
}

// NewFallback composes two backends, typically MinIO with a local directory behind it.
func NewFallback(primary, secondary Storage, logger *logging.Logger) Storage {
	if logger == nil {
		logger = logging.Default()
	}
	return &fallbackStorage{
		primary:   primary,
		secondary: secondary,
		logger:    logger.With("component", "storage"),
	}
}

func (f *fallbackStorage) Put(ctx context.Context, key string, r io.Reader, opt PutObjectOptions) (ObjectInfo, error) {
	// The reader can only be replayed for the secondary if it is seekable.
	seeker, canRewind := r.(io.Seeker)
	var start int64
	if canRewind {
		pos, err := seeker.Seek(0, io.SeekCurrent)
		if err != nil {
			canRewind = false
		}
		start = pos
	}

	info, err := f.primary.Put(ctx, key, r, opt)
	if err == nil {
		return info, nil
	}
	if !canRewind {
		return ObjectInfo{}, fmt.Errorf("primary put failed and body cannot be replayed: %w", err)
	}
	if _, serr := seeker.Seek(start, io.SeekStart); serr != nil {
		return ObjectInfo{}, fmt.Errorf("primary put failed: %w; rewind failed: %v", err, serr)
	}

	f.logger.Warn("storage_fallback_put", "key", key, "error", err.Error())
	info, serr := f.secondary.Put(ctx, key, r, opt)
	if serr != nil {
		return ObjectInfo{}, fmt.Errorf("primary put failed: %v; fallback put failed: %w", err, serr)
	}
	return info, nil
}

func (f *fallbackStorage) Get(ctx context.Context, key string) (io.ReadCloser, ObjectInfo, error) {
	rc, info, err := f.primary.Get(ctx, key)
	if err == nil {
		return rc, info, nil
	}
	rc, info, serr := f.secondary.Get(ctx, key)
	if serr == nil {
		if !errors.Is(err, ErrObjectNotFound) {
			f.logger.Warn("storage_fallback_get", "key", key, "error", err.Error())
		}
		return rc, info, nil
	}
	if errors.Is(err, ErrObjectNotFound) {
		return nil, ObjectInfo{}, serr
	}
	return nil, ObjectInfo{}, err
}

func (f *fallbackStorage) Delete(ctx context.Context, key string) error {
	return errors.Join(f.primary.Delete(ctx, key), f.secondary.Delete(ctx, key))
}
