package gcsattr

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFileAttributes(t *testing.T) {
	now := time.Now()
	a := File("/bucket/file.txt", 12, now)
	assert.Equal(t, KindFile, a.Kind())
	assert.True(t, a.IsRegularFile())
	assert.Equal(t, int64(12), a.Size())
	assert.Equal(t, now, a.LastModifiedTime())
	assert.True(t, a.CreationTime().IsZero())
	assert.True(t, a.LastAccessTime().IsZero())
	assert.Equal(t, "/bucket/file.txt", a.FileKey())
}

func TestDirectoryAttributes(t *testing.T) {
	a := Directory("/bucket/dir")
	assert.True(t, a.IsDirectory())
	assert.Equal(t, int64(0), a.Size())
	assert.True(t, a.LastModifiedTime().IsZero())
	assert.True(t, a.CreationTime().IsZero())
}

func TestBucketAttributes(t *testing.T) {
	now := time.Now()
	a := Bucket("/bucket", now)
	assert.True(t, a.IsBucket())
	assert.Equal(t, now, a.CreationTime())
	assert.True(t, a.LastModifiedTime().IsZero())
}
