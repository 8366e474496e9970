// Package fake implements gcsstorage.Client in memory, so gcsfs and
// gcsvfs can be tested without a live GCS project. It mirrors what the
// real client does (object store keyed by bucket+name, "/"-delimited
// prefix listing, chunked rewrite) without calling out to the network.
package fake

import (
	"bytes"
	"context"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/gcsfs/gcsfs/gcserrors"
	"github.com/gcsfs/gcsfs/gcsstorage"
)

type blob struct {
	data        []byte
	updated     time.Time
	contentType string
}

type bucket struct {
	created time.Time
	objects map[string]*blob
}

// Client is an in-memory gcsstorage.Client. The zero value is not usable;
// use NewClient. Safe for concurrent use.
type Client struct {
	mu          sync.Mutex
	buckets     map[string]*bucket
	rewriteSize int64 // bytes copied per Rewrite call, to exercise chunking; 0 means unbounded
	now         func() time.Time
}

var _ gcsstorage.Client = (*Client)(nil)

// Option configures a Client.
type Option func(*Client)

// WithRewriteChunkSize makes Rewrite copy at most n bytes per call,
// returning a continuation token, so callers can exercise their
// chunked-copy loop without a real multi-GB object.
func WithRewriteChunkSize(n int64) Option {
	return func(c *Client) { c.rewriteSize = n }
}

// WithClock overrides the clock used to stamp object/bucket times.
func WithClock(now func() time.Time) Option {
	return func(c *Client) { c.now = now }
}

// NewClient builds an empty fake store.
func NewClient(options ...Option) *Client {
	c := &Client{buckets: make(map[string]*bucket), now: time.Now}
	for _, o := range options {
		o(c)
	}
	return c
}

// Seed creates a bucket (if absent) and one object in it, for test setup.
func (c *Client) Seed(bucket, name string, data []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	b := c.bucketOrCreate(bucket)
	b.objects[name] = &blob{data: append([]byte(nil), data...), updated: c.now()}
}

func (c *Client) bucketOrCreate(name string) *bucket {
	b, ok := c.buckets[name]
	if !ok {
		b = &bucket{created: c.now(), objects: make(map[string]*blob)}
		c.buckets[name] = b
	}
	return b
}

func (c *Client) GetObject(_ context.Context, bucketName, name string) (gcsstorage.Object, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	b, ok := c.buckets[bucketName]
	if !ok {
		return gcsstorage.Object{}, gcserrors.NoSuchFile(bucketName + "/" + name)
	}
	obj, ok := b.objects[name]
	if !ok {
		return gcsstorage.Object{}, gcserrors.NoSuchFile(bucketName + "/" + name)
	}
	return gcsstorage.Object{Bucket: bucketName, Name: name, Size: int64(len(obj.data)), Updated: obj.updated, ContentType: obj.contentType}, nil
}

func (c *Client) NewReader(_ context.Context, bucketName, name string, offset, length int64) (io.ReadCloser, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	b, ok := c.buckets[bucketName]
	if !ok {
		return nil, gcserrors.NoSuchFile(bucketName + "/" + name)
	}
	obj, ok := b.objects[name]
	if !ok {
		return nil, gcserrors.NoSuchFile(bucketName + "/" + name)
	}
	if offset > int64(len(obj.data)) {
		offset = int64(len(obj.data))
	}
	data := obj.data[offset:]
	if length >= 0 && int64(len(data)) > length {
		data = data[:length]
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

type bufferWriter struct {
	buf      bytes.Buffer
	onClose  func(data []byte) error
}

func (w *bufferWriter) Write(p []byte) (int, error) { return w.buf.Write(p) }
func (w *bufferWriter) Close() error                { return w.onClose(w.buf.Bytes()) }

func (c *Client) NewWriter(_ context.Context, bucketName, name, contentType string) (gcsstorage.WriteCloser, error) {
	return &bufferWriter{onClose: func(data []byte) error {
		c.mu.Lock()
		defer c.mu.Unlock()
		b := c.bucketOrCreate(bucketName)
		b.objects[name] = &blob{data: data, updated: c.now(), contentType: contentType}
		return nil
	}}, nil
}

func (c *Client) List(_ context.Context, bucketName, prefix, pageToken string) (gcsstorage.ListPage, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	b, ok := c.buckets[bucketName]
	if !ok {
		return gcsstorage.ListPage{}, gcserrors.NoSuchFile(bucketName + "/" + prefix)
	}

	var names []string
	for name := range b.objects {
		if strings.HasPrefix(name, prefix) {
			names = append(names, name)
		}
	}
	sort.Strings(names)

	seen := make(map[string]bool)
	var page gcsstorage.ListPage
	for _, name := range names {
		rest := strings.TrimPrefix(name, prefix)
		if idx := strings.Index(rest, "/"); idx >= 0 {
			sub := prefix + rest[:idx+1]
			if !seen[sub] {
				seen[sub] = true
				page.Prefixes = append(page.Prefixes, sub)
			}
			continue
		}
		obj := b.objects[name]
		page.Objects = append(page.Objects, gcsstorage.Object{
			Bucket: bucketName, Name: name, Size: int64(len(obj.data)), Updated: obj.updated, ContentType: obj.contentType,
		})
	}
	return page, nil
}

func (c *Client) DeleteObject(_ context.Context, bucketName, name string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	b, ok := c.buckets[bucketName]
	if !ok {
		return gcserrors.NoSuchFile(bucketName + "/" + name)
	}
	if _, ok := b.objects[name]; !ok {
		return gcserrors.NoSuchFile(bucketName + "/" + name)
	}
	delete(b.objects, name)
	return nil
}

// rewriteTmpKey names the hidden object that tracks a chunked rewrite's
// partial progress. Keying it by a random token, not just DstName, means
// two callers racing to copy into the same destination don't clobber each
// other's partial state.
func rewriteTmpKey(dstName, token string) string {
	return dstName + ".rewrite-tmp." + token
}

func (c *Client) Rewrite(_ context.Context, req gcsstorage.RewriteRequest) (gcsstorage.RewriteResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	src, ok := c.buckets[req.SrcBucket]
	if !ok {
		return gcsstorage.RewriteResult{}, gcserrors.NoSuchFile(req.SrcBucket + "/" + req.SrcName)
	}
	obj, ok := src.objects[req.SrcName]
	if !ok {
		return gcsstorage.RewriteResult{}, gcserrors.NoSuchFile(req.SrcBucket + "/" + req.SrcName)
	}

	dst := c.bucketOrCreate(req.DstBucket)

	token := req.RewriteToken
	if token == "" {
		token = uuid.NewString()
	}
	tmpKey := rewriteTmpKey(req.DstName, token)
	existing, inProgress := dst.objects[tmpKey]
	if !inProgress {
		existing = &blob{data: nil, contentType: obj.contentType}
	}

	total := int64(len(existing.data))
	chunk := c.rewriteSize
	if chunk <= 0 {
		chunk = int64(len(obj.data))
	}
	end := total + chunk
	if end > int64(len(obj.data)) {
		end = int64(len(obj.data))
	}
	existing.data = obj.data[:end]

	if end >= int64(len(obj.data)) {
		delete(dst.objects, tmpKey)
		dst.objects[req.DstName] = &blob{data: existing.data, updated: c.now(), contentType: obj.contentType}
		return gcsstorage.RewriteResult{Done: true, TotalBytesWritten: end, ObjectSize: int64(len(obj.data))}, nil
	}
	dst.objects[tmpKey] = existing
	return gcsstorage.RewriteResult{Done: false, RewriteToken: token, TotalBytesWritten: end, ObjectSize: int64(len(obj.data))}, nil
}

func (c *Client) GetBucket(_ context.Context, bucketName string) (gcsstorage.BucketInfo, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	b, ok := c.buckets[bucketName]
	if !ok {
		return gcsstorage.BucketInfo{}, gcserrors.FileSystemNotFound(bucketName)
	}
	return gcsstorage.BucketInfo{Name: bucketName, Created: b.created}, nil
}

func (c *Client) InsertBucket(_ context.Context, bucketName, _, _, _ string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.buckets[bucketName]; ok {
		return gcserrors.FileSystemAlreadyExists(bucketName)
	}
	c.bucketOrCreate(bucketName)
	return nil
}

func (c *Client) ListBuckets(_ context.Context, _, _ string) (gcsstorage.BucketPage, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	var names []string
	for name := range c.buckets {
		names = append(names, name)
	}
	sort.Strings(names)
	page := gcsstorage.BucketPage{}
	for _, name := range names {
		page.Buckets = append(page.Buckets, gcsstorage.BucketInfo{Name: name, Created: c.buckets[name].created})
	}
	return page, nil
}

func (c *Client) DeleteBucket(_ context.Context, bucketName string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	b, ok := c.buckets[bucketName]
	if !ok {
		return gcserrors.FileSystemNotFound(bucketName)
	}
	if len(b.objects) > 0 {
		return gcserrors.DirectoryNotEmpty(bucketName)
	}
	delete(c.buckets, bucketName)
	return nil
}
