package gcsfs

import (
	"context"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gcsfs/gcsfs/gcspath"
	"github.com/gcsfs/gcsfs/gcsstorage/fake"
)

func TestReadChannelSeek(t *testing.T) {
	client := fake.NewClient()
	client.Seed("B", "data.bin", []byte("0123456789"))
	fs := New("B", client, "proj", "", "")
	ctx := context.Background()

	p := gcspath.NewAbsolute(fs, "B", []string{"data.bin"}, false)
	r, err := fs.NewReadChannel(ctx, p)
	require.NoError(t, err)
	defer r.Close()

	assert.Equal(t, int64(10), r.Size())

	require.NoError(t, r.Seek(3))
	buf := make([]byte, 4)
	n, err := r.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, "3456", string(buf[:n]))
	assert.Equal(t, int64(7), r.Position())

	require.NoError(t, r.Seek(0))
	data, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, "0123456789", string(data))
}

func TestWriteChannelSize(t *testing.T) {
	client := fake.NewClient()
	fs := New("B", client, "proj", "", "")
	ctx := context.Background()
	p := gcspath.NewAbsolute(fs, "B", []string{"out.txt"}, false)

	w, err := fs.NewWriteChannel(ctx, p, "text/plain")
	require.NoError(t, err)
	n, err := w.Write([]byte("abc"))
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, int64(3), w.Size())
	require.NoError(t, w.Close())
}
