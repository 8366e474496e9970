package gcsfs

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gcsfs/gcsfs/gcspath"
	"github.com/gcsfs/gcsfs/gcsstorage/fake"
)

func seedFile(t *testing.T, client *fake.Client, bucket, key string) {
	t.Helper()
	client.Seed(bucket, key, []byte("x"))
}

func TestDirectoryListingCurrentDirectoryMode(t *testing.T) {
	client := fake.NewClient()
	fs := New("B", client, "proj", "", "")
	ctx := context.Background()

	seedFile(t, client, "B", "foo/file1.txt")
	seedFile(t, client, "B", "foo/file2.txt")
	seedFile(t, client, "B", "foo/bar/file3.txt")
	seedFile(t, client, "B", "foo/file6.txt")

	dir := gcspath.NewAbsolute(fs, "B", []string{"foo"}, true)
	ds, err := fs.NewDirectoryStream(ctx, dir, nil)
	require.NoError(t, err)

	var names []string
	for {
		entry, ok, err := ds.Next()
		require.NoError(t, err)
		if !ok {
			break
		}
		fileName, ok := entry.Path.FileName()
		require.True(t, ok)
		names = append(names, fileName.String())
	}
	assert.ElementsMatch(t, []string{"file1.txt", "file2.txt", "bar", "file6.txt"}, names)
}

func TestDirectoryStreamSkipsOrigin(t *testing.T) {
	client := fake.NewClient()
	fs := New("B", client, "proj", "", "")
	ctx := context.Background()

	dir := gcspath.NewAbsolute(fs, "B", []string{"foo"}, true)
	require.NoError(t, fs.CreateDirectory(ctx, dir))
	seedFile(t, client, "B", "foo/child.txt")

	ds, err := fs.NewDirectoryStream(ctx, dir, nil)
	require.NoError(t, err)

	var names []string
	for {
		entry, ok, err := ds.Next()
		require.NoError(t, err)
		if !ok {
			break
		}
		fileName, _ := entry.Path.FileName()
		names = append(names, fileName.String())
	}
	assert.Equal(t, []string{"child.txt"}, names)
}

func TestDirectoryStreamAppliesFilter(t *testing.T) {
	client := fake.NewClient()
	fs := New("B", client, "proj", "", "")
	ctx := context.Background()

	seedFile(t, client, "B", "a.txt")
	seedFile(t, client, "B", "b.log")

	dir := gcspath.NewAbsolute(fs, "B", nil, true)
	filter := func(p gcspath.Path) bool {
		fileName, ok := p.FileName()
		return ok && len(fileName.String()) > 0 && fileName.String()[len(fileName.String())-4:] == ".txt"
	}
	ds, err := fs.NewDirectoryStream(ctx, dir, filter)
	require.NoError(t, err)

	var names []string
	for {
		entry, ok, err := ds.Next()
		require.NoError(t, err)
		if !ok {
			break
		}
		fileName, _ := entry.Path.FileName()
		names = append(names, fileName.String())
	}
	assert.Equal(t, []string{"a.txt"}, names)
}

func TestDirectoryStreamSeedsAttributeCache(t *testing.T) {
	client := fake.NewClient()
	fs := New("B", client, "proj", "", "")
	ctx := context.Background()

	seedFile(t, client, "B", "only.txt")
	dir := gcspath.NewAbsolute(fs, "B", nil, true)
	ds, err := fs.NewDirectoryStream(ctx, dir, nil)
	require.NoError(t, err)

	entry, ok, err := ds.Next()
	require.NoError(t, err)
	require.True(t, ok)

	attr, err := fs.ReadAttributes(ctx, entry.Path)
	require.NoError(t, err)
	assert.Equal(t, entry.Attr.Size(), attr.Size())
}

func TestGlobalRootListsBuckets(t *testing.T) {
	client := fake.NewClient()
	require.NoError(t, client.InsertBucket(context.Background(), "one", "proj", "", ""))
	require.NoError(t, client.InsertBucket(context.Background(), "two", "proj", "", ""))

	root := NewRoot(client, "proj")
	ds, err := root.NewDirectoryStream(context.Background(), gcspath.GlobalRoot(root), nil)
	require.NoError(t, err)

	var names []string
	for {
		entry, ok, err := ds.Next()
		require.NoError(t, err)
		if !ok {
			break
		}
		names = append(names, entry.Path.Bucket())
	}
	assert.ElementsMatch(t, []string{"one", "two"}, names)
}
