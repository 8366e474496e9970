// Package gcsfs implements the Filesystem Instance (spec §4.D): one
// (bucket, storage client) binding that produces byte channels, directory
// streams, and implements readAttributes/createDirectory/delete/copy. It
// is grounded on backend/googlecloudstorage/googlecloudstorage.go's Fs
// type, generalized from a single rclone remote into the narrower
// gcsstorage.Client abstraction.
package gcsfs

import (
	"context"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/gcsfs/gcsfs/gcsattr"
	"github.com/gcsfs/gcsfs/gcserrors"
	"github.com/gcsfs/gcsfs/gcspath"
	"github.com/gcsfs/gcsfs/gcsstorage"
)

// rootBucket is the reserved name of the special read-only filesystem
// that only enumerates buckets (gs:///).
const rootBucket = ""

// FileSystem holds one (bucket, client) binding. The instance for
// rootBucket is special: it only supports ReadAttributes(global root) and
// NewDirectoryStream(global root), both of which list buckets rather than
// objects.
type FileSystem struct {
	bucket       string
	project      string
	location     string
	storageClass string
	client       gcsstorage.Client
	log          *logrus.Entry

	mu           sync.Mutex
	cache        map[string]gcsattr.Attributes // fileKey -> attrs, seeded by listings
	bucketExists *bool                         // positive/negative cache for this fs's own bucket root
	closed       bool
}

// Option configures a FileSystem at construction time.
type Option func(*FileSystem)

// WithLogger overrides the log entry used for FileSystem-level messages.
func WithLogger(log *logrus.Entry) Option {
	return func(fs *FileSystem) { fs.log = log }
}

// New builds a Filesystem Instance bound to bucket, using client for all
// backend calls. location and storageClass are used by CreateDirectory
// when the path is a bucket root; project is used the same way.
func New(bucket string, client gcsstorage.Client, project, location, storageClass string, options ...Option) *FileSystem {
	fs := &FileSystem{
		bucket:       bucket,
		project:      project,
		location:     location,
		storageClass: storageClass,
		client:       client,
		log:          logrus.NewEntry(logrus.StandardLogger()),
		cache:        make(map[string]gcsattr.Attributes),
	}
	for _, o := range options {
		o(fs)
	}
	return fs
}

// NewRoot builds the special bucket-enumerating filesystem for gs:///.
func NewRoot(client gcsstorage.Client, project string, options ...Option) *FileSystem {
	return New(rootBucket, client, project, "", "", options...)
}

// Bucket implements gcspath.FilesystemRef.
func (fs *FileSystem) Bucket() string { return fs.bucket }

// IsRoot reports whether this is the special bucket-enumerating instance.
func (fs *FileSystem) IsRoot() bool { return fs.bucket == rootBucket }

// Close marks the instance closed. Further operations still work (the
// backend client has no per-filesystem handle to release); Close exists
// so the Provider can track the open flag from spec §3.
func (fs *FileSystem) Close() error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	fs.closed = true
	return nil
}

func fileKeyOf(bucket, key string) string {
	if key == "" {
		return "/" + bucket
	}
	return "/" + bucket + "/" + key
}

// objectKey renders p's names as a flat GCS object key, with no leading
// or trailing slash.
func objectKey(p gcspath.Path) string {
	return strings.Join(p.Names(), "/")
}

func (fs *FileSystem) cacheAttributes(a gcsattr.Attributes) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	fs.cache[a.FileKey()] = a
}

// popCached returns and clears the cached attributes for p's fileKey, if
// a preceding directory listing seeded one. This is how readAttributes'
// first resolution step (spec §4.D) is implemented without making Path
// itself mutable.
func (fs *FileSystem) popCached(fileKey string) (gcsattr.Attributes, bool) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	a, ok := fs.cache[fileKey]
	if ok {
		delete(fs.cache, fileKey)
	}
	return a, ok
}

// setBucketExists records a positive or negative answer for whether this
// instance's own bucket exists. Only a negative answer short-circuits
// readAttributes(bucketRoot) without a backend call; a positive answer
// still fetches the bucket to report its creation time.
func (fs *FileSystem) setBucketExists(exists bool) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	fs.bucketExists = &exists
}

func (fs *FileSystem) cachedBucketExists() (exists, known bool) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	if fs.bucketExists == nil {
		return false, false
	}
	return *fs.bucketExists, true
}

// ReadAttributes implements the five-step resolution order of spec §4.D.
func (fs *FileSystem) ReadAttributes(ctx context.Context, p gcspath.Path) (gcsattr.Attributes, error) {
	key := objectKey(p)
	if a, ok := fs.popCached(fileKeyOf(fs.bucket, key)); ok {
		fs.log.WithField("path", p.String()).Debug("readAttributes: served from listing cache")
		return a, nil
	}
	if p.IsGlobalRoot() {
		return gcsattr.Directory("/"), nil
	}
	if p.IsBucketRoot() {
		if exists, known := fs.cachedBucketExists(); known && !exists {
			fs.log.WithField("bucket", fs.bucket).Debug("bucket existence cache: negative hit")
			return gcsattr.Attributes{}, gcserrors.NoSuchFile(p.String())
		}
		info, err := fs.client.GetBucket(ctx, fs.bucket)
		if err != nil {
			if gcserrors.IsKind(err, gcserrors.KindFileSystemNotFound) {
				fs.setBucketExists(false)
				return gcsattr.Attributes{}, gcserrors.NoSuchFile(p.String())
			}
			return gcsattr.Attributes{}, err
		}
		fs.setBucketExists(true)
		return gcsattr.Bucket(fileKeyOf(fs.bucket, ""), info.Created), nil
	}
	if p.IsDirectory() {
		return fs.readDirectoryAttributes(ctx, key, p)
	}
	obj, err := fs.client.GetObject(ctx, fs.bucket, key)
	if err != nil {
		if gcserrors.IsKind(err, gcserrors.KindNoSuchFile) {
			return fs.readDirectoryAttributes(ctx, key, p)
		}
		return gcsattr.Attributes{}, err
	}
	return gcsattr.File(fileKeyOf(fs.bucket, key), obj.Size, obj.Updated), nil
}

func (fs *FileSystem) readDirectoryAttributes(ctx context.Context, key string, p gcspath.Path) (gcsattr.Attributes, error) {
	marker := key + "/"
	page, err := fs.client.List(ctx, fs.bucket, marker, "")
	if err != nil {
		return gcsattr.Attributes{}, err
	}
	// The marker blob key+"/" itself, or any object or sub-prefix under it
	// (a synthesized directory with no marker), makes key a directory.
	if len(page.Objects) > 0 || len(page.Prefixes) > 0 {
		return gcsattr.Directory(fileKeyOf(fs.bucket, key)), nil
	}
	return gcsattr.Attributes{}, gcserrors.NoSuchFile(p.String())
}

// CreateDirectory implements spec §4.D: a bucket root creates the bucket
// itself; otherwise a zero-byte marker blob is created at key+"/".
func (fs *FileSystem) CreateDirectory(ctx context.Context, p gcspath.Path) error {
	if p.IsBucketRoot() {
		err := fs.client.InsertBucket(ctx, fs.bucket, fs.project, fs.location, fs.storageClass)
		if err == nil {
			fs.setBucketExists(true)
		}
		return err
	}
	key := objectKey(p) + "/"
	w, err := fs.client.NewWriter(ctx, fs.bucket, key, "")
	if err != nil {
		return err
	}
	return w.Close()
}

// checkExistOrEmpty implements spec §4.D's delete precondition: key is
// first tried as a plain object (a file); if no such object exists, key is
// tried as a directory marker (key+"/"), which must exist and must have no
// other object or common prefix nested under it. Returns the exact object
// name that Delete should remove.
func (fs *FileSystem) checkExistOrEmpty(ctx context.Context, key string, p gcspath.Path) (string, error) {
	if _, err := fs.client.GetObject(ctx, fs.bucket, key); err == nil {
		return key, nil
	} else if !gcserrors.IsKind(err, gcserrors.KindNoSuchFile) {
		return "", err
	}

	marker := key + "/"
	var foundMarker, nonEmpty bool
	pageToken := ""
	for {
		page, err := fs.client.List(ctx, fs.bucket, marker, pageToken)
		if err != nil {
			return "", err
		}
		for _, o := range page.Objects {
			if o.Name == marker {
				foundMarker = true
			} else {
				nonEmpty = true
			}
		}
		if len(page.Prefixes) > 0 {
			nonEmpty = true
		}
		if page.NextPageToken == "" {
			break
		}
		pageToken = page.NextPageToken
	}
	if nonEmpty {
		return "", gcserrors.DirectoryNotEmpty(p.String())
	}
	if !foundMarker {
		return "", gcserrors.NoSuchFile(p.String())
	}
	return marker, nil
}

// Delete implements spec §4.D.
func (fs *FileSystem) Delete(ctx context.Context, p gcspath.Path) error {
	if p.IsBucketRoot() {
		return fs.deleteBucket(ctx)
	}
	key := objectKey(p)
	deleteKey, err := fs.checkExistOrEmpty(ctx, key, p)
	if err != nil {
		return err
	}
	return fs.client.DeleteObject(ctx, fs.bucket, deleteKey)
}

func (fs *FileSystem) deleteBucket(ctx context.Context) error {
	err := fs.client.DeleteBucket(ctx, fs.bucket)
	if err == nil {
		fs.setBucketExists(false)
		return nil
	}
	if gcserrors.IsKind(err, gcserrors.KindDirectoryNotEmpty) {
		return gcserrors.DirectoryNotEmpty("/" + fs.bucket)
	}
	if gcserrors.IsKind(err, gcserrors.KindFileSystemNotFound) {
		return gcserrors.NoSuchFile("/" + fs.bucket)
	}
	return err
}

// Copy performs the server-side chunked copy loop of spec §4.D. Whether
// to honor REPLACE_EXISTING is the Provider's decision (spec §4.E); Copy
// always overwrites target.
func (fs *FileSystem) Copy(ctx context.Context, src, dst gcspath.Path) error {
	req := gcsstorage.RewriteRequest{
		SrcBucket: src.Bucket(),
		SrcName:   objectKey(src),
		DstBucket: dst.Bucket(),
		DstName:   objectKey(dst),
	}
	for {
		res, err := fs.client.Rewrite(ctx, req)
		if err != nil {
			return err
		}
		if res.Done {
			return nil
		}
		req.RewriteToken = res.RewriteToken
	}
}
