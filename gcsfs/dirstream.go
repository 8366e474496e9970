package gcsfs

import (
	"context"
	"strings"

	"github.com/gcsfs/gcsfs/gcsattr"
	"github.com/gcsfs/gcsfs/gcspath"
)

// DirEntry is one entry yielded by a DirStream: a Path ready to pass back
// into ReadAttributes (its attributes are pre-seeded in the filesystem's
// cache) paired with those same Attributes for immediate use.
type DirEntry struct {
	Path gcspath.Path
	Attr gcsattr.Attributes
}

// Filter is applied by DirStream.Next before yielding an entry.
type Filter func(gcspath.Path) bool

// AcceptAll is the no-op Filter.
func AcceptAll(gcspath.Path) bool { return true }

// DirStream is a lazy, single-pass, non-restartable iterator over one
// directory listing or the bucket-enumeration listing, per spec §4.F. It
// is not safe for concurrent use.
type DirStream struct {
	fs     *FileSystem
	ctx    context.Context
	filter Filter

	bucketListing bool
	originKey     string // skipped: the marker blob for the directory itself

	pending   []DirEntry
	pageToken string
	exhausted bool
}

// NewDirectoryStream implements spec §4.D/§4.F: listing the global root
// enumerates buckets; listing any other directory lists the bucket with
// the "current directory" option (delimiter "/") and a prefix of
// objectName + "/".
func (fs *FileSystem) NewDirectoryStream(ctx context.Context, dir gcspath.Path, filter Filter) (*DirStream, error) {
	if filter == nil {
		filter = AcceptAll
	}
	ds := &DirStream{fs: fs, ctx: ctx, filter: filter}
	if dir.IsGlobalRoot() {
		ds.bucketListing = true
		return ds, nil
	}
	key := objectKey(dir)
	if key != "" {
		ds.originKey = key + "/"
	}
	return ds, nil
}

// Next advances the stream by one entry, returning ok=false once
// exhausted. It never yields the origin directory marker itself, and
// skips entries the filter rejects.
func (ds *DirStream) Next() (DirEntry, bool, error) {
	for {
		if len(ds.pending) > 0 {
			e := ds.pending[0]
			ds.pending = ds.pending[1:]
			if !ds.filter(e.Path) {
				continue
			}
			return e, true, nil
		}
		if ds.exhausted {
			return DirEntry{}, false, nil
		}
		if err := ds.fill(); err != nil {
			return DirEntry{}, false, err
		}
	}
}

func (ds *DirStream) fill() error {
	if ds.bucketListing {
		return ds.fillBuckets()
	}
	return ds.fillObjects()
}

func (ds *DirStream) fillObjects() error {
	page, err := ds.fs.client.List(ds.ctx, ds.fs.bucket, ds.originKey, ds.pageToken)
	if err != nil {
		return err
	}
	ds.pageToken = page.NextPageToken
	if ds.pageToken == "" {
		ds.exhausted = true
	}

	for _, o := range page.Objects {
		if o.Name == ds.originKey {
			continue // the directory's own marker blob
		}
		name := strings.TrimPrefix(o.Name, ds.originKey)
		names := splitNonEmpty(strings.TrimSuffix(ds.originKey, "/"), name)
		p := gcspath.NewAbsolute(ds.fs, ds.fs.bucket, names, false)
		attr := gcsattr.File(fileKeyOf(ds.fs.bucket, o.Name), o.Size, o.Updated)
		ds.fs.cacheAttributes(attr)
		ds.pending = append(ds.pending, DirEntry{Path: p, Attr: attr})
	}
	for _, prefix := range page.Prefixes {
		if prefix == ds.originKey {
			continue
		}
		name := strings.TrimSuffix(strings.TrimPrefix(prefix, ds.originKey), "/")
		names := splitNonEmpty(strings.TrimSuffix(ds.originKey, "/"), name)
		p := gcspath.NewAbsolute(ds.fs, ds.fs.bucket, names, true)
		attr := gcsattr.Directory(fileKeyOf(ds.fs.bucket, strings.TrimSuffix(prefix, "/")))
		ds.fs.cacheAttributes(attr)
		ds.pending = append(ds.pending, DirEntry{Path: p, Attr: attr})
	}
	return nil
}

// splitNonEmpty builds the full name-segment slice for an entry found
// under originPrefix (the directory key, without trailing slash, may be
// empty for a bucket-root listing) named leaf (a single path component,
// no slashes, since listings are non-recursive).
func splitNonEmpty(originPrefix, leaf string) []string {
	if originPrefix == "" {
		return []string{leaf}
	}
	return append(strings.Split(originPrefix, "/"), leaf)
}

func (ds *DirStream) fillBuckets() error {
	page, err := ds.fs.client.ListBuckets(ds.ctx, ds.fs.project, ds.pageToken)
	if err != nil {
		return err
	}
	ds.pageToken = page.NextPageToken
	if ds.pageToken == "" {
		ds.exhausted = true
	}
	for _, b := range page.Buckets {
		p := gcspath.NewAbsolute(ds.fs, b.Name, nil, true)
		attr := gcsattr.Bucket(fileKeyOf(b.Name, ""), b.Created)
		ds.fs.cacheAttributes(attr)
		ds.pending = append(ds.pending, DirEntry{Path: p, Attr: attr})
	}
	return nil
}

// Close releases the stream's paging cursor. Calling Close does not
// affect already-yielded entries.
func (ds *DirStream) Close() error {
	ds.pending = nil
	ds.exhausted = true
	return nil
}
