package storage_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"clinicdocs/internal/storage"
	"clinicdocs/internal/storage/mocks"
	"clinicdocs/pkg/logging"
)

func quietLogger() *logging.Logger {
	return logging.NewWithWriter(&bytes.Buffer{}, "error")
}

func TestFallback_PutUsesPrimaryWhenHealthy(t *testing.T) {
	ctx := context.Background()
	primary := new(mocks.MockStorage)
	local, err := storage.NewLocal(t.TempDir())
	require.NoError(t, err)

	r := strings.NewReader("data")
	primary.On("Put", ctx, "k", r, mock.Anything).Return(storage.ObjectInfo{Key: "k", Size: 4}, nil)

	fb := storage.NewFallback(primary, local, quietLogger())
	info, err := fb.Put(ctx, "k", r, storage.PutObjectOptions{Size: 4})

	require.NoError(t, err)
	assert.Equal(t, int64(4), info.Size)
	_, _, err = local.Get(ctx, "k")
	assert.ErrorIs(t, err, storage.ErrObjectNotFound)
	primary.AssertExpectations(t)
}

func TestFallback_PutFallsBackAndRewinds(t *testing.T) {
	ctx := context.Background()
	primary := new(mocks.MockStorage)
	local, err := storage.NewLocal(t.TempDir())
	require.NoError(t, err)

	r := strings.NewReader("payload")
	primary.On("Put", ctx, "k", r, mock.Anything).
		Run(func(args mock.Arguments) {
			// simulate a partial read before the failure
			buf := make([]byte, 3)
			_, _ = args.Get(2).(io.Reader).Read(buf)
		}).
		Return(storage.ObjectInfo{}, errors.New("connection reset"))

	fb := storage.NewFallback(primary, local, quietLogger())
	_, err = fb.Put(ctx, "k", r, storage.PutObjectOptions{Size: 7, ContentType: "text/plain"})
	require.NoError(t, err)

	rc, info, err := local.Get(ctx, "k")
	require.NoError(t, err)
	body, err := io.ReadAll(rc)
	require.NoError(t, rc.Close())
	require.NoError(t, err)
	assert.Equal(t, "payload", string(body))
	assert.Equal(t, "text/plain", info.ContentType)
	primary.AssertExpectations(t)
}

func TestFallback_PutNonSeekableReader(t *testing.T) {
	ctx := context.Background()
	primary := new(mocks.MockStorage)
	secondary := new(mocks.MockStorage)

	r := io.MultiReader(strings.NewReader("x"))
	primary.On("Put", ctx, "k", r, mock.Anything).Return(storage.ObjectInfo{}, errors.New("down"))

	fb := storage.NewFallback(primary, secondary, quietLogger())
	_, err := fb.Put(ctx, "k", r, storage.PutObjectOptions{})

	assert.ErrorContains(t, err, "cannot be replayed")
	secondary.AssertNotCalled(t, "Put", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestFallback_GetFallsBack(t *testing.T) {
	ctx := context.Background()
	primary := new(mocks.MockStorage)
	local, err := storage.NewLocal(t.TempDir())
	require.NoError(t, err)
	_, err = local.Put(ctx, "k", strings.NewReader("local copy"), storage.PutObjectOptions{ContentType: "text/plain"})
	require.NoError(t, err)

	primary.On("Get", ctx, "k").Return(nil, storage.ObjectInfo{}, storage.ErrObjectNotFound)
	primary.On("Get", ctx, "missing").Return(nil, storage.ObjectInfo{}, errors.New("timeout"))

	fb := storage.NewFallback(primary, local, quietLogger())

	rc, info, err := fb.Get(ctx, "k")
	require.NoError(t, err)
	body, _ := io.ReadAll(rc)
	_ = rc.Close()
	assert.Equal(t, "local copy", string(body))
	assert.Equal(t, "text/plain", info.ContentType)

	_, _, err = fb.Get(ctx, "missing")
	assert.EqualError(t, err, "timeout")
}

func TestFallback_DeleteBoth(t *testing.T) {
	ctx := context.Background()
	primary := new(mocks.MockStorage)
	secondary := new(mocks.MockStorage)
	primary.On("Delete", ctx, "k").Return(nil)
	secondary.On("Delete", ctx, "k").Return(errors.New("disk full"))

	err := storage.NewFallback(primary, secondary, quietLogger()).Delete(ctx, "k")

	assert.ErrorContains(t, err, "disk full")
	primary.AssertExpectations(t)
	secondary.AssertExpectations(t)
}
