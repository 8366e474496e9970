package gcserrors

import (
	"io"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
)

func TestErrorString(t *testing.T) {
	for _, test := range []struct {
		err  *Error
		want string
	}{
		{NoSuchFile("/bucket/foo"), "/bucket/foo: no such file"},
		{FileAlreadyExists("/bucket/foo"), "/bucket/foo: file already exists"},
		{DirectoryNotEmpty("/bucket/foo"), "/bucket/foo: directory not empty"},
		{Unsupported("truncate"), "unsupported: truncate"},
		{IllegalArgument("gs://bad", "missing bucket"), "gs://bad: illegal argument: missing bucket"},
	} {
		assert.Equal(t, test.want, test.err.Error())
	}
}

func TestIsKind(t *testing.T) {
	err := NoSuchFile("/bucket/foo")
	assert.True(t, IsKind(err, KindNoSuchFile))
	assert.False(t, IsKind(err, KindDirectoryNotEmpty))
	assert.False(t, IsKind(io.EOF, KindNoSuchFile))
}

func TestIs(t *testing.T) {
	assert.True(t, errors.Is(NoSuchFile("/a"), NoSuchFile("/b")))
	assert.False(t, errors.Is(NoSuchFile("/a"), DirectoryNotEmpty("/a")))
}

func TestWrapAndCause(t *testing.T) {
	boom := errors.New("boom")
	wrapped := Wrap(boom, "/bucket/foo")
	assert.Equal(t, KindIO, wrapped.Kind)
	assert.Equal(t, "boom", Cause(wrapped).Error())
}
