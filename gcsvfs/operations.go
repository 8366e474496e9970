package gcsvfs

import (
	"context"
	"strings"

	"github.com/gcsfs/gcsfs/gcsattr"
	"github.com/gcsfs/gcsfs/gcserrors"
	"github.com/gcsfs/gcsfs/gcsfs"
	"github.com/gcsfs/gcsfs/gcspath"
)

// OpenMode is a bitmask of the open flags recognized by OpenByteChannel,
// see spec §4.E / §6.
type OpenMode int

const (
	Read OpenMode = 1 << iota
	Write
	Append
	CreateNew
	Create
	Sync
	Dsync
	Execute
)

func (m OpenMode) has(flag OpenMode) bool { return m&flag != 0 }

// OpenByteChannel implements spec §4.E's open-mode enforcement. Exactly
// one of the returned channels is non-nil on success.
func (p *Provider) OpenByteChannel(ctx context.Context, uri string, mode OpenMode, cfg Config) (*gcsfs.ReadChannel, *gcsfs.WriteChannel, error) {
	if mode.has(Execute) {
		return nil, nil, gcserrors.AccessDenied(uri)
	}
	if mode.has(Sync) || mode.has(Dsync) {
		return nil, nil, gcserrors.Unsupported("SYNC/DSYNC open mode")
	}
	writing := mode.has(Write) || mode.has(Append)
	if mode.has(Append) {
		return nil, nil, gcserrors.Unsupported("APPEND open mode")
	}
	if mode.has(Read) && writing {
		return nil, nil, gcserrors.IllegalArgument(uri, "cannot combine READ with WRITE/APPEND")
	}

	path, err := p.GetPath(ctx, uri, cfg)
	if err != nil {
		return nil, nil, err
	}
	if err := requireNonRoot(path); err != nil {
		return nil, nil, err
	}
	fs, err := p.owningFileSystem(path)
	if err != nil {
		return nil, nil, err
	}

	if !writing {
		r, err := fs.NewReadChannel(ctx, path)
		return r, nil, err
	}

	exists, err := p.exists(ctx, fs, path)
	if err != nil {
		return nil, nil, err
	}
	if mode.has(CreateNew) && exists {
		return nil, nil, gcserrors.FileAlreadyExists(uri)
	}
	if !mode.has(CreateNew) && !mode.has(Create) && !exists {
		return nil, nil, gcserrors.NoSuchFile(uri)
	}
	w, err := fs.NewWriteChannel(ctx, path, "")
	return nil, w, err
}

func (p *Provider) exists(ctx context.Context, fs *gcsfs.FileSystem, path gcspath.Path) (bool, error) {
	_, err := fs.ReadAttributes(ctx, path)
	if err == nil {
		return true, nil
	}
	if gcserrors.IsKind(err, gcserrors.KindNoSuchFile) {
		return false, nil
	}
	return false, err
}

// CreateDirectory implements spec §4.E dispatch onto Filesystem Instance.
func (p *Provider) CreateDirectory(ctx context.Context, uri string, cfg Config) error {
	path, err := p.GetPath(ctx, uri, cfg)
	if err != nil {
		return err
	}
	if err := requireNonRoot(path); err != nil {
		return err
	}
	fs, err := p.owningFileSystem(path)
	if err != nil {
		return err
	}
	return fs.CreateDirectory(ctx, path)
}

// Delete implements spec §4.E dispatch.
func (p *Provider) Delete(ctx context.Context, uri string, cfg Config) error {
	path, err := p.GetPath(ctx, uri, cfg)
	if err != nil {
		return err
	}
	if err := requireNonRoot(path); err != nil {
		return err
	}
	fs, err := p.owningFileSystem(path)
	if err != nil {
		return err
	}
	return fs.Delete(ctx, path)
}

// Copy implements spec §4.E/§4.D: REPLACE_EXISTING is enforced here by
// deleting the target first; without it, an existing target fails with
// FileAlreadyExists before the Filesystem's copy loop ever runs.
func (p *Provider) Copy(ctx context.Context, srcURI, dstURI string, replaceExisting bool, cfg Config) error {
	src, err := p.GetPath(ctx, srcURI, cfg)
	if err != nil {
		return err
	}
	dst, err := p.GetPath(ctx, dstURI, cfg)
	if err != nil {
		return err
	}
	if err := requireNonRoot(src); err != nil {
		return err
	}
	if err := requireNonRoot(dst); err != nil {
		return err
	}

	srcFS, err := p.owningFileSystem(src)
	if err != nil {
		return err
	}
	dstFS, err := p.owningFileSystem(dst)
	if err != nil {
		return err
	}

	exists, err := p.exists(ctx, dstFS, dst)
	if err != nil {
		return err
	}
	if exists {
		if !replaceExisting {
			return gcserrors.FileAlreadyExists(dstURI)
		}
		if err := dstFS.Delete(ctx, dst); err != nil {
			return err
		}
	}
	return srcFS.Copy(ctx, src, dst)
}

// Move implements spec §4.E: move = copy + delete(source).
func (p *Provider) Move(ctx context.Context, srcURI, dstURI string, replaceExisting bool, cfg Config) error {
	if err := p.Copy(ctx, srcURI, dstURI, replaceExisting, cfg); err != nil {
		return err
	}
	return p.Delete(ctx, srcURI, cfg)
}

// ReadAttributes implements spec §4.E dispatch.
func (p *Provider) ReadAttributes(ctx context.Context, uri string, cfg Config) (gcsattr.Attributes, error) {
	path, err := p.GetPath(ctx, uri, cfg)
	if err != nil {
		return gcsattr.Attributes{}, err
	}
	fs, err := p.owningFileSystem(path)
	if err != nil {
		return gcsattr.Attributes{}, err
	}
	return fs.ReadAttributes(ctx, path)
}

// NewDirectoryStream implements spec §4.E dispatch onto the Filesystem's
// Directory Stream (spec §4.F). Listing the global root is allowed (it
// enumerates buckets); every other directory must belong to a bucket.
func (p *Provider) NewDirectoryStream(ctx context.Context, uri string, filter gcsfs.Filter, cfg Config) (*gcsfs.DirStream, error) {
	path, err := p.GetPath(ctx, uri, cfg)
	if err != nil {
		return nil, err
	}
	fs, err := p.owningFileSystem(path)
	if err != nil {
		return nil, err
	}
	return fs.NewDirectoryStream(ctx, path, filter)
}

// IsSameFile implements spec §4.E: structural Path equality.
func IsSameFile(a, b gcspath.Path) bool { return a.Equals(b) }

// IsHidden implements spec §4.E: the file name begins with ".".
func IsHidden(path gcspath.Path) bool {
	name, ok := path.FileName()
	if !ok {
		return false
	}
	return strings.HasPrefix(name.String(), ".")
}
