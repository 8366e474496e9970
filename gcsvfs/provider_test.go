package gcsvfs

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gcsfs/gcsfs/gcserrors"
	"github.com/gcsfs/gcsfs/gcsstorage"
	"github.com/gcsfs/gcsfs/gcsstorage/fake"
)

func newTestProvider(t *testing.T) (*Provider, *fake.Client) {
	t.Helper()
	client := fake.NewClient()
	p := NewProvider(WithClientFactory(func(ctx context.Context, cfg Config) (gcsstorage.Client, error) {
		return client, nil
	}))
	return p, client
}

func TestParseURIScenarios(t *testing.T) {
	for _, test := range []struct {
		uri         string
		wantBucket  string
		wantKey     string
		wantDirHint bool
	}{
		{"gs://bucket", "bucket", "", true},
		{"gs://bucket/", "bucket", "", true},
		{"gs://bucket/a/b/c/", "bucket", "a/b/c", true},
		{"gs:///", "", "", true},
		{"gs://Bucket/Key", "bucket", "Key", false},
	} {
		_, bucket, key, dirHint, err := ParseURI(test.uri)
		require.NoError(t, err, test.uri)
		assert.Equal(t, test.wantBucket, bucket, test.uri)
		assert.Equal(t, test.wantKey, key, test.uri)
		assert.Equal(t, test.wantDirHint, dirHint, test.uri)
	}
}

func TestParseURIMissingBucketErrors(t *testing.T) {
	_, _, _, _, err := ParseURI("gs:///key")
	assert.True(t, gcserrors.IsKind(err, gcserrors.KindIllegalArgument))
}

func TestGetPathAutoCreatesFilesystem(t *testing.T) {
	p, _ := newTestProvider(t)
	ctx := context.Background()

	path, err := p.GetPath(ctx, "gs://bucket/a/b", Config{})
	require.NoError(t, err)
	assert.Equal(t, "/bucket/a/b", path.String())

	_, err = p.GetFileSystem("bucket")
	require.NoError(t, err)
}

func TestNewFileSystemAlreadyExists(t *testing.T) {
	p, _ := newTestProvider(t)
	ctx := context.Background()
	_, err := p.NewFileSystem(ctx, "bucket", Config{})
	require.NoError(t, err)
	_, err = p.NewFileSystem(ctx, "bucket", Config{})
	assert.True(t, gcserrors.IsKind(err, gcserrors.KindFileSystemAlreadyExists))
}

func TestGetFileSystemNotFound(t *testing.T) {
	p, _ := newTestProvider(t)
	_, err := p.GetFileSystem("missing")
	assert.True(t, gcserrors.IsKind(err, gcserrors.KindFileSystemNotFound))
}

func TestOpenWriteThenReadChannel(t *testing.T) {
	p, _ := newTestProvider(t)
	ctx := context.Background()

	_, w, err := p.OpenByteChannel(ctx, "gs://b/file.txt", Write|Create, Config{})
	require.NoError(t, err)
	_, err = w.Write([]byte("hi"))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	r, _, err := p.OpenByteChannel(ctx, "gs://b/file.txt", Read, Config{})
	require.NoError(t, err)
	defer r.Close()
	assert.Equal(t, int64(2), r.Size())
}

func TestOpenWriteMissingWithoutCreateFails(t *testing.T) {
	p, _ := newTestProvider(t)
	ctx := context.Background()
	_, err := p.NewFileSystem(ctx, "b", Config{})
	require.NoError(t, err)

	_, _, err = p.OpenByteChannel(ctx, "gs://b/missing.txt", Write, Config{})
	assert.True(t, gcserrors.IsKind(err, gcserrors.KindNoSuchFile))
}

func TestOpenCreateNewExistingFails(t *testing.T) {
	p, _ := newTestProvider(t)
	ctx := context.Background()
	_, w, err := p.OpenByteChannel(ctx, "gs://b/f", Write|Create, Config{})
	require.NoError(t, err)
	require.NoError(t, w.Close())

	_, _, err = p.OpenByteChannel(ctx, "gs://b/f", Write|CreateNew, Config{})
	assert.True(t, gcserrors.IsKind(err, gcserrors.KindFileAlreadyExists))
}

func TestOpenRejectsReadWriteCombo(t *testing.T) {
	p, _ := newTestProvider(t)
	_, _, err := p.OpenByteChannel(context.Background(), "gs://b/f", Read|Write, Config{})
	assert.True(t, gcserrors.IsKind(err, gcserrors.KindIllegalArgument))
}

func TestOpenRejectsAppendAndExecute(t *testing.T) {
	p, _ := newTestProvider(t)
	_, _, err := p.OpenByteChannel(context.Background(), "gs://b/f", Append, Config{})
	assert.True(t, gcserrors.IsKind(err, gcserrors.KindUnsupported))

	_, _, err = p.OpenByteChannel(context.Background(), "gs://b/f", Execute, Config{})
	assert.True(t, gcserrors.IsKind(err, gcserrors.KindAccessDenied))
}

func TestCopyWithReplaceExisting(t *testing.T) {
	p, _ := newTestProvider(t)
	ctx := context.Background()

	_, w, _ := p.OpenByteChannel(ctx, "gs://b/src", Write|Create, Config{})
	_, _ = w.Write([]byte("X"))
	require.NoError(t, w.Close())
	_, w2, _ := p.OpenByteChannel(ctx, "gs://b/dst", Write|Create, Config{})
	_, _ = w2.Write([]byte("Y"))
	require.NoError(t, w2.Close())

	require.NoError(t, p.Copy(ctx, "gs://b/src", "gs://b/dst", true, Config{}))

	attr, err := p.ReadAttributes(ctx, "gs://b/dst", Config{})
	require.NoError(t, err)
	assert.Equal(t, int64(1), attr.Size())
}

func TestCopyWithoutReplaceExistingFails(t *testing.T) {
	p, _ := newTestProvider(t)
	ctx := context.Background()

	_, w, _ := p.OpenByteChannel(ctx, "gs://b/src", Write|Create, Config{})
	require.NoError(t, w.Close())
	_, w2, _ := p.OpenByteChannel(ctx, "gs://b/dst", Write|Create, Config{})
	require.NoError(t, w2.Close())

	err := p.Copy(ctx, "gs://b/src", "gs://b/dst", false, Config{})
	assert.True(t, gcserrors.IsKind(err, gcserrors.KindFileAlreadyExists))
}

func TestDeleteBucketSemanticsThroughProvider(t *testing.T) {
	p, _ := newTestProvider(t)
	ctx := context.Background()
	_, err := p.NewFileSystem(ctx, "b", Config{})
	require.NoError(t, err)

	require.NoError(t, p.CreateDirectory(ctx, "gs://b", Config{}))
	require.NoError(t, p.Delete(ctx, "gs://b", Config{}))

	err = p.Delete(ctx, "gs://b", Config{})
	assert.True(t, gcserrors.IsKind(err, gcserrors.KindNoSuchFile))
}

func TestIsSameFileAndIsHidden(t *testing.T) {
	p, _ := newTestProvider(t)
	ctx := context.Background()
	a, err := p.GetPath(ctx, "gs://b/.hidden", Config{})
	require.NoError(t, err)
	b, err := p.GetPath(ctx, "gs://b/.hidden", Config{})
	require.NoError(t, err)
	assert.True(t, IsSameFile(a, b))
	assert.True(t, IsHidden(a))

	visible, err := p.GetPath(ctx, "gs://b/visible.txt", Config{})
	require.NoError(t, err)
	assert.False(t, IsHidden(visible))
	assert.False(t, IsSameFile(a, visible))
}

func TestOperationsRejectGlobalRoot(t *testing.T) {
	p, _ := newTestProvider(t)
	ctx := context.Background()
	err := p.CreateDirectory(ctx, "gs:///", Config{})
	assert.True(t, gcserrors.IsKind(err, gcserrors.KindIllegalArgument))
}
