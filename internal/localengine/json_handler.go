package localengine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/lychee-technology/tablekernel"
)

// JSONHandler implements tablekernel.JSONHandler: it writes one action per
// line of newline-delimited JSON for a commit, and resolves deletion vector
// descriptors to their raw roaring-bitmap bytes.
//
// Overwrite=false is implemented with O_EXCL on local disk (the OS makes the
// create atomic) and, for S3 destinations, with a conditional PutObject that
// fails when the key already exists — the sole concurrency control Commit
// relies on.
type JSONHandler struct {
	storage *Storage
}

// NewJSONHandler builds a JSONHandler over storage.
func NewJSONHandler(storage *Storage) *JSONHandler {
	return &JSONHandler{storage: storage}
}

// WriteJSONFile implements tablekernel.JSONHandler.
func (h *JSONHandler) WriteJSONFile(ctx context.Context, location string, actions []any, overwrite bool) error {
	var buf strings.Builder
	for _, a := range actions {
		b, err := json.Marshal(a)
		if err != nil {
			return tablekernel.NewInternalError("failed to marshal action", err)
		}
		buf.Write(b)
		buf.WriteByte('\n')
	}

	if _, _, ok := splitS3URI(location); ok {
		return h.writeS3(ctx, location, []byte(buf.String()), overwrite)
	}
	return h.writeLocal(location, []byte(buf.String()), overwrite)
}

func (h *JSONHandler) writeLocal(location string, data []byte, overwrite bool) error {
	if err := os.MkdirAll(filepath.Dir(location), 0o755); err != nil {
		return tablekernel.NewInternalError("failed to create log directory", err).WithPath(location)
	}
	flags := os.O_WRONLY | os.O_CREATE
	if overwrite {
		flags |= os.O_TRUNC
	} else {
		flags |= os.O_EXCL
	}
	f, err := os.OpenFile(location, flags, 0o644)
	if err != nil {
		if errors.Is(err, os.ErrExist) {
			return tablekernel.NewFileAlreadyExistsError(location)
		}
		return tablekernel.NewInternalError("failed to create commit file", err).WithPath(location)
	}
	defer f.Close()
	if _, err := f.Write(data); err != nil {
		return tablekernel.NewInternalError("failed to write commit file", err).WithPath(location)
	}
	return nil
}

func (h *JSONHandler) writeS3(ctx context.Context, location string, data []byte, overwrite bool) error {
	if h.storage == nil || h.storage.s3Client == nil {
		return tablekernel.NewGenericError("S3 storage not configured")
	}
	bucket, key, _ := splitS3URI(location)

	if !overwrite {
		if _, err := h.storage.ReadBytes(ctx, location, 0, 1); err == nil {
			return tablekernel.NewFileAlreadyExistsError(location)
		}
	}

	if err := h.storage.putObject(ctx, bucket, key, data); err != nil {
		return tablekernel.NewInternalError("failed to write S3 commit file", err).WithPath(location)
	}
	return nil
}

// ReadDeletionVector implements tablekernel.JSONHandler, resolving each of
// the three storage modes a DeletionVectorDescriptor's StorageType
// distinguishes.
func (h *JSONHandler) ReadDeletionVector(d *tablekernel.DeletionVectorDescriptor, tableRoot string) ([]byte, error) {
	ctx := context.Background()
	switch d.StorageType {
	case tablekernel.DvStorageInline:
		return DecodeFromBase32(d.PathOrInline)
	case tablekernel.DvStorageOnDisk:
		return h.storage.ReadBytes(ctx, d.PathOrInline, 0, 0)
	case tablekernel.DvStorageUUID:
		dvPath := path.Join(tableRoot, "_delta_log", "_deletion_vectors", fmt.Sprintf("deletion_vector_%s.bin", d.PathOrInline))
		offset, length := int64(0), int64(0)
		if d.Offset != nil {
			offset = *d.Offset
		}
		if d.SizeInBytes > 0 {
			length = d.SizeInBytes
		}
		return h.storage.ReadBytes(ctx, dvPath, offset, length)
	}
	return nil, tablekernel.NewGenericError("unrecognized deletion vector storage type")
}
