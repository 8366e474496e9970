// Package gcsstorage defines the narrow storage client abstraction (spec
// §4.C) between gcsfs and a concrete object store backend. It is grounded
// on the way backend/googlecloudstorage/googlecloudstorage.go wraps
// google.golang.org/api/storage/v1: gcsfs never imports storage/v1
// directly, so gcsstorage/fake can stand in for it in tests.
package gcsstorage

import (
	"context"
	"io"
	"time"
)

// Object describes one blob as returned by Get or List, independent of
// the wire representation used by a concrete Client.
type Object struct {
	Bucket       string
	Name         string // full key, no leading slash
	Size         int64
	Updated      time.Time
	ContentType  string
}

// BucketInfo describes a bucket as returned by GetBucket.
type BucketInfo struct {
	Name    string
	Created time.Time
}

// ListPage is one page of a prefix listing: Objects holds blobs whose
// name has the requested prefix, and Prefixes holds the "subdirectories"
// synthesized by the "/" delimiter (common prefixes, in GCS terms).
type ListPage struct {
	Objects       []Object
	Prefixes      []string
	NextPageToken string
}

// WriteCloser is returned by NewWriter: closing it finalizes the upload.
// Closing without writing creates a zero-byte object, which is how
// directory markers are created.
type WriteCloser interface {
	io.WriteCloser
}

// Client is the minimal operation set gcsfs and gcsvfs need from an
// object store. google.Client implements it against the real GCS API;
// fake.Client implements it in memory for tests.
type Client interface {
	// GetObject returns metadata for exactly one object, or an error
	// satisfying gcserrors.IsKind(err, gcserrors.KindNoSuchFile) if absent.
	GetObject(ctx context.Context, bucket, name string) (Object, error)

	// NewReader opens a range-read stream over an object's bytes,
	// starting at offset. length < 0 means read to the end.
	NewReader(ctx context.Context, bucket, name string, offset, length int64) (io.ReadCloser, error)

	// NewWriter opens a sequential, resumable write stream that
	// replaces the object on Close. contentType may be empty.
	NewWriter(ctx context.Context, bucket, name, contentType string) (WriteCloser, error)

	// List returns one page of objects and common prefixes under
	// prefix, delimited by "/". pageToken is empty for the first page.
	List(ctx context.Context, bucket, prefix, pageToken string) (ListPage, error)

	// DeleteObject removes one object. Returns a NoSuchFile error if
	// absent.
	DeleteObject(ctx context.Context, bucket, name string) error

	// Rewrite performs a server-side copy, possibly across several
	// calls for large objects; the caller loops until done.
	Rewrite(ctx context.Context, req RewriteRequest) (RewriteResult, error)

	// GetBucket returns metadata for one bucket, or FileSystemNotFound
	// if absent.
	GetBucket(ctx context.Context, bucket string) (BucketInfo, error)

	// InsertBucket creates a bucket in the given project and location.
	InsertBucket(ctx context.Context, bucket, project, location, storageClass string) error

	// DeleteBucket removes an empty bucket.
	DeleteBucket(ctx context.Context, bucket string) error

	// ListBuckets returns one page of buckets belonging to project.
	ListBuckets(ctx context.Context, project, pageToken string) (BucketPage, error)
}

// BucketPage is one page of a project's bucket listing.
type BucketPage struct {
	Buckets       []BucketInfo
	NextPageToken string
}

// RewriteRequest names the source and destination of a server-side copy.
type RewriteRequest struct {
	SrcBucket, SrcName string
	DstBucket, DstName string
	RewriteToken       string // empty on the first call
}

// RewriteResult reports one step of a (possibly chunked) rewrite.
type RewriteResult struct {
	Done                bool
	RewriteToken         string // non-empty iff !Done
	TotalBytesWritten    int64
	ObjectSize           int64
}
