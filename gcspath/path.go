// Package gcspath implements the path algebra of spec §4.A: an immutable,
// purely syntactic value type representing an object path of the form
// /bucket/key (absolute) or key (relative). Path performs no I/O; it never
// talks to a backend or even knows one exists beyond an opaque identity
// token used for equality and the absolute-bucket invariant.
//
// The design mirrors java.nio.file.Path: a Path optionally has a root
// component (the bucket), followed by zero or more names (the object key's
// "/"-separated segments). getNameCount/getName/iterator only ever see the
// names, never the root — startsWith/endsWith/equals take the root into
// account explicitly.
package gcspath

import (
	"fmt"
	"strings"
)

// FilesystemRef is the minimal identity a Path needs of its owning
// filesystem: enough to validate the "first segment equals the owning
// filesystem's bucket" invariant and to compare identity for equality.
// gcsfs.FileSystem implements this; gcspath never imports gcsfs.
type FilesystemRef interface {
	Bucket() string
}

// Path is an immutable path value. The zero value is the relative path "".
type Path struct {
	fs       FilesystemRef
	absolute bool
	bucket   string // root component; "" for relative paths and the global root
	names    []string
	dirHint  bool
}

// NewAbsolute builds an absolute path /bucket/names... If bucket is "" and
// names is empty this is the global root (gs:///).
func NewAbsolute(fs FilesystemRef, bucket string, names []string, dirHint bool) Path {
	return Path{fs: fs, absolute: true, bucket: bucket, names: cloneNames(names), dirHint: dirHint || (bucket != "" && len(names) == 0)}
}

// NewRelative builds a relative path from names.
func NewRelative(fs FilesystemRef, names []string, dirHint bool) Path {
	return Path{fs: fs, absolute: false, names: cloneNames(names), dirHint: dirHint}
}

// GlobalRoot returns the path denoting gs:///.
func GlobalRoot(fs FilesystemRef) Path {
	return Path{fs: fs, absolute: true, dirHint: true}
}

func cloneNames(names []string) []string {
	if len(names) == 0 {
		return nil
	}
	out := make([]string, len(names))
	copy(out, names)
	return out
}

// IsAbsolute reports whether p has a root component (including the global root).
func (p Path) IsAbsolute() bool { return p.absolute }

// IsGlobalRoot reports whether p is gs:///.
func (p Path) IsGlobalRoot() bool { return p.absolute && p.bucket == "" }

// IsBucketRoot reports whether p denotes exactly a bucket, e.g. /bucket/.
func (p Path) IsBucketRoot() bool { return p.absolute && p.bucket != "" && len(p.names) == 0 }

// Bucket returns the root component, "" if relative or the global root.
func (p Path) Bucket() string { return p.bucket }

// FileSystem returns the back-reference to the owning filesystem, if any.
func (p Path) FileSystem() FilesystemRef { return p.fs }

// WithFileSystem returns a copy of p bound to fs. Used by the provider when
// it resolves a relative path against a base whose filesystem is now known.
func (p Path) WithFileSystem(fs FilesystemRef) Path {
	p.fs = fs
	return p
}

// IsDirectory reports the directory hint: whether the original textual
// form ended in "/", or p denotes a bucket root or the global root.
func (p Path) IsDirectory() bool { return p.dirHint }

// NameCount returns the number of name elements, excluding the root (bucket).
func (p Path) NameCount() int { return len(p.names) }

// Names returns a defensive copy of the name elements.
func (p Path) Names() []string { return cloneNames(p.names) }

// Root returns the bucket-root path for an absolute p, or ok=false.
func (p Path) Root() (Path, bool) {
	if !p.absolute || p.bucket == "" {
		return Path{}, false
	}
	return Path{fs: p.fs, absolute: true, bucket: p.bucket, dirHint: true}, true
}

// FileName returns the last name element as a relative path, or ok=false
// if p has no names (bucket root, global root, or empty relative path).
func (p Path) FileName() (Path, bool) {
	if len(p.names) == 0 {
		return Path{}, false
	}
	return p.Name(len(p.names) - 1)
}

// Parent returns the path of all but the last name element, with the
// directory hint forced true. ok=false for a bucket root, the global root,
// or a relative path with no names. The parent of /bucket/a is the bucket
// root /bucket.
func (p Path) Parent() (Path, bool) {
	if !p.absolute {
		if len(p.names) == 0 {
			return Path{}, false
		}
		return Path{fs: p.fs, absolute: false, names: cloneNames(p.names[:len(p.names)-1]), dirHint: true}, true
	}
	if len(p.names) < 1 {
		return Path{}, false
	}
	return Path{fs: p.fs, absolute: true, bucket: p.bucket, names: cloneNames(p.names[:len(p.names)-1]), dirHint: true}, true
}

// Name returns the i-th name element as a relative path. Directory hint is
// true iff i < NameCount()-1, per spec §4.A.
func (p Path) Name(i int) (Path, bool) {
	return p.Subpath(i, i+1)
}

// Subpath returns the [begin,end) name range as a relative path. Directory
// hint is true iff end < NameCount(), i.e. the range doesn't run through
// the final name element.
func (p Path) Subpath(begin, end int) (Path, bool) {
	if begin < 0 || end > len(p.names) || begin >= end {
		return Path{}, false
	}
	return Path{
		fs:      p.fs,
		names:   cloneNames(p.names[begin:end]),
		dirHint: end < len(p.names),
	}, true
}

// Iterator yields each name element as a relative path, in order.
func (p Path) Iterator() []Path {
	out := make([]Path, len(p.names))
	for i := range p.names {
		out[i], _ = p.Name(i)
	}
	return out
}

// StartsWith reports whether other's root (if any) and name sequence is a
// segment-wise prefix of p's — never a textual substring test.
func (p Path) StartsWith(other Path) bool {
	if p.absolute != other.absolute {
		return false
	}
	if p.absolute && p.bucket != other.bucket {
		return false
	}
	if len(other.names) > len(p.names) {
		return false
	}
	for i, n := range other.names {
		if p.names[i] != n {
			return false
		}
	}
	return true
}

// EndsWith reports whether other's name sequence is a segment-wise suffix
// of p's. If other carries a root component, it can only match if it is
// the whole of p (an absolute other anchors at position zero): this is the
// "endsWith(String) vs endsWith(Path)" asymmetry flagged in spec §9 — the
// scenarios in spec §8.3 are authoritative and are reproduced unchanged.
func (p Path) EndsWith(other Path) bool {
	if other.absolute {
		return p.absolute && p.bucket == other.bucket && equalNames(p.names, other.names)
	}
	if len(other.names) > len(p.names) {
		return false
	}
	offset := len(p.names) - len(other.names)
	for i, n := range other.names {
		if p.names[offset+i] != n {
			return false
		}
	}
	return true
}

func equalNames(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// Normalize resolves "." and ".." segment-wise. An absolute path never
// escapes its bucket: leading ".." segments beyond the root are dropped
// rather than producing an error. A relative path may retain leading ".."
// segments it cannot resolve.
func (p Path) Normalize() Path {
	out := make([]string, 0, len(p.names))
	for _, n := range p.names {
		switch n {
		case ".":
			continue
		case "..":
			if len(out) > 0 && out[len(out)-1] != ".." {
				out = out[:len(out)-1]
				continue
			}
			if p.absolute {
				continue // clamp at root
			}
			out = append(out, n)
		default:
			out = append(out, n)
		}
	}
	if len(out) == 0 {
		out = nil
	}
	return Path{fs: p.fs, absolute: p.absolute, bucket: p.bucket, names: out, dirHint: p.dirHint}
}

// Resolve resolves other against p. If other is absolute it is returned
// unchanged (it already carries its own bucket/filesystem, possibly
// different from p's — see gcsvfs.Provider for the string-based overload
// that can switch filesystems when parsing other from raw text). Otherwise
// other's names are appended to p's and the result takes other's directory
// hint.
func (p Path) Resolve(other Path) Path {
	if other.absolute {
		return other
	}
	if len(other.names) == 0 {
		return p
	}
	names := make([]string, 0, len(p.names)+len(other.names))
	names = append(names, p.names...)
	names = append(names, other.names...)
	return Path{fs: p.fs, absolute: p.absolute, bucket: p.bucket, names: names, dirHint: other.dirHint}
}

// ResolveSibling resolves other against p's parent, equivalent to
// p.Parent().Resolve(other). If p has no parent, other is returned as-is
// (matching Resolve's own absolute-passthrough rule).
func (p Path) ResolveSibling(other Path) Path {
	parent, ok := p.Parent()
	if !ok {
		if other.absolute {
			return other
		}
		return other
	}
	return parent.Resolve(other)
}

// ErrDifferentRoots is returned by Relativize when p and other do not
// share a root (bucket), so no relative path between them exists.
type ErrDifferentRoots struct {
	From, To Path
}

func (e *ErrDifferentRoots) Error() string {
	return fmt.Sprintf("cannot relativize %s against %s: different roots", e.To, e.From)
}

// Relativize computes the shortest relative path r such that
// p.Resolve(r).Normalize() == other.Normalize(), for p and other sharing
// the same root.
func (p Path) Relativize(other Path) (Path, error) {
	if p.absolute != other.absolute || (p.absolute && p.bucket != other.bucket) {
		return Path{}, &ErrDifferentRoots{From: p, To: other}
	}
	a, b := p.names, other.names
	common := 0
	for common < len(a) && common < len(b) && a[common] == b[common] {
		common++
	}
	up := len(a) - common
	names := make([]string, 0, up+len(b)-common)
	for i := 0; i < up; i++ {
		names = append(names, "..")
	}
	names = append(names, b[common:]...)
	return Path{names: names, dirHint: other.dirHint}, nil
}

// String returns the printable form: /<bucket>/<key> for absolute paths
// (trailing "/" always stripped, directory hint preserved only internally),
// <key> for relative paths.
func (p Path) String() string {
	if !p.absolute {
		return strings.Join(p.names, "/")
	}
	if p.bucket == "" {
		return "/"
	}
	if len(p.names) == 0 {
		return "/" + p.bucket
	}
	return "/" + p.bucket + "/" + strings.Join(p.names, "/")
}

// Compare orders paths lexicographically on their printable form.
func (p Path) Compare(other Path) int {
	return strings.Compare(p.String(), other.String())
}

// Key returns an opaque string suitable for use as a map key, combining
// filesystem identity, the segment sequence and the directory hint — the
// same triple spec §3 defines equality and hashing over.
func (p Path) Key() string {
	fsID := "<none>"
	if p.fs != nil {
		fsID = fmt.Sprintf("%p:%s", p.fs, p.fs.Bucket())
	}
	return fmt.Sprintf("%s|%v|%s|%v", fsID, p.absolute, p.String(), p.dirHint)
}

// Equals implements spec §3 equality: same filesystem identity, segment
// sequence and directory hint.
func (p Path) Equals(other Path) bool {
	return p.Key() == other.Key()
}
