package gcspath

import (
	"fmt"
	"strings"
)

// ToURI renders the internal round-trip form of p: "gs:/bucket/key" for an
// absolute path (a single slash after the scheme, since the bucket is
// encoded as the first path segment rather than a URI authority), or
// "gs:" + path for a relative one. This is the inverse of Parse, and the
// two together satisfy spec invariant 1: Parse(p.ToURI()) == p.
//
// This is distinct from the external gs://bucket/key syntax of spec §6,
// which carries the bucket as a URI authority and is parsed by
// gcsvfs.Provider (which must consult the filesystem registry to resolve
// it). ToURI/Parse never need a registry: they round-trip a Path on its
// own terms.
func (p Path) ToURI() string {
	if !p.absolute {
		return "gs:" + p.relativeForm()
	}
	return "gs:" + p.absoluteForm()
}

func (p Path) relativeForm() string {
	s := strings.Join(p.names, "/")
	if p.dirHint && s != "" {
		s += "/"
	}
	return s
}

func (p Path) absoluteForm() string {
	if p.bucket == "" {
		return "/"
	}
	s := "/" + p.bucket
	if len(p.names) > 0 {
		s += "/" + strings.Join(p.names, "/")
	}
	if p.dirHint {
		s += "/"
	}
	return s
}

// Parse is the inverse of ToURI. fs is attached to the resulting Path's
// filesystem back-reference (may be nil).
func Parse(uri string, fs FilesystemRef) (Path, error) {
	rest, ok := strings.CutPrefix(uri, "gs:")
	if !ok {
		return Path{}, fmt.Errorf("gcspath: %q: missing gs: scheme", uri)
	}
	if strings.HasPrefix(rest, "/") {
		body := strings.TrimPrefix(rest, "/")
		dirHint := strings.HasSuffix(body, "/") || body == ""
		body = strings.Trim(body, "/")
		if body == "" {
			return GlobalRoot(fs), nil
		}
		parts := strings.Split(body, "/")
		bucket := parts[0]
		names := parts[1:]
		return NewAbsolute(fs, bucket, names, dirHint), nil
	}
	if rest == "" {
		return NewRelative(fs, nil, false), nil
	}
	dirHint := strings.HasSuffix(rest, "/")
	body := strings.Trim(rest, "/")
	var names []string
	if body != "" {
		names = strings.Split(body, "/")
	}
	return NewRelative(fs, names, dirHint), nil
}
