package localengine

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitS3URI(t *testing.T) {
	bucket, key, ok := splitS3URI("s3://my-bucket/a/b.json")
	require.True(t, ok)
	assert.Equal(t, "my-bucket", bucket)
	assert.Equal(t, "a/b.json", key)

	_, _, ok = splitS3URI("/local/path")
	assert.False(t, ok)
}

func TestStorage_ListLocal_ReturnsSortedFiles(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "00000000000000000001.json"), []byte("b"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "00000000000000000000.json"), []byte("a"), 0o644))

	s := &Storage{}
	files, err := s.List(context.Background(), dir)
	require.NoError(t, err)
	require.Len(t, files, 2)
	assert.Contains(t, files[0].Location, "00000000000000000000.json")
	assert.Contains(t, files[1].Location, "00000000000000000001.json")
}

func TestStorage_ReadBytes_FullFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "data.bin")
	require.NoError(t, os.WriteFile(path, []byte("0123456789"), 0o644))

	s := &Storage{}
	data, err := s.ReadBytes(context.Background(), path, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, "0123456789", string(data))
}

func TestStorage_ReadBytes_OffsetAndLength(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "data.bin")
	require.NoError(t, os.WriteFile(path, []byte("0123456789"), 0o644))

	s := &Storage{}
	data, err := s.ReadBytes(context.Background(), path, 2, 3)
	require.NoError(t, err)
	assert.Equal(t, "234", string(data))
}

func TestStorage_ReadBytes_MissingFileErrors(t *testing.T) {
	s := &Storage{}
	_, err := s.ReadBytes(context.Background(), "/nonexistent/path", 0, 0)
	require.Error(t, err)
}
