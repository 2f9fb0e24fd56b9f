package tablekernel

import (
	"fmt"

	"github.com/RoaringBitmap/roaring/v2"
)

// DvStorageType discriminates where a deletion vector's bitmap bytes live.
type DvStorageType int

const (
	DvStorageInline DvStorageType = iota
	DvStorageOnDisk
	DvStorageUUID
)

// DeletionVectorDescriptor locates a roaring-bitmap-encoded set of deleted
// row indexes for one data file: either inlined in the log entry itself,
// stored at an absolute path, or stored in a file named after an identifier
// under the table's _delta_log/_deletion_vectors directory.
type DeletionVectorDescriptor struct {
	StorageType DvStorageType
	PathOrInline string // absolute path, base32-encoded inline bytes, or the identifier in the deletion-vector file name, depending on StorageType
	UniqueID    string
	Offset      *int64
	SizeInBytes int64
	Cardinality int64
}

// DeletionVectorResolver reads the raw bitmap bytes a descriptor points at.
// The core never performs this I/O itself — it is satisfied by an Engine's
// JSONHandler (see NewDeletionVectorResolver in engine.go).
type DeletionVectorResolver interface {
	ReadDeletionVector(d *DeletionVectorDescriptor, tableRoot string) ([]byte, error)
}

// LoadBitmap resolves a descriptor to its roaring bitmap of deleted row
// indexes. A nil descriptor yields an empty bitmap (no rows deleted)
// without consulting the resolver.
func LoadBitmap(d *DeletionVectorDescriptor, resolver DeletionVectorResolver, tableRoot string) (*roaring.Bitmap, error) {
	if d == nil {
		return roaring.New(), nil
	}
	raw, err := resolver.ReadDeletionVector(d, tableRoot)
	if err != nil {
		return nil, NewInternalError("failed to read deletion vector", err).WithPath(d.PathOrInline)
	}
	bm := roaring.New()
	if _, err := bm.FromBuffer(raw); err != nil {
		return nil, NewInternalError("failed to decode deletion vector bitmap", err).WithPath(d.PathOrInline)
	}
	return bm, nil
}

// SelectionVector converts a deleted-row bitmap into a dense boolean vector
// sized to max_deleted_row_index + 1, with true meaning "keep". An empty
// bitmap yields a nil vector, which downstream callers interpret as "all
// rows selected".
func SelectionVector(deleted *roaring.Bitmap) []bool {
	if deleted.IsEmpty() {
		return nil
	}
	maxIdx := deleted.Maximum()
	sel := make([]bool, maxIdx+1)
	for i := range sel {
		sel[i] = true
	}
	it := deleted.Iterator()
	for it.HasNext() {
		sel[it.Next()] = false
	}
	return sel
}

// DeletedRowIndexes returns the sorted list of deleted row indexes, the
// alternative representation of a resolved deletion vector.
func DeletedRowIndexes(deleted *roaring.Bitmap) []uint32 {
	return deleted.ToArray()
}

// XorBitmaps computes the symmetric difference of two deletion bitmaps,
// used to pair an add/remove action's deletion vectors during Change Data
// Feed planning: only rows whose membership changed between the two
// versions of the file are selected.
func XorBitmaps(a, b *roaring.Bitmap) *roaring.Bitmap {
	return roaring.Xor(a, b)
}

// String renders a compact description of the descriptor for logging.
func (d DeletionVectorDescriptor) String() string {
	kind := "inline"
	switch d.StorageType {
	case DvStorageOnDisk:
		kind = "on-disk"
	case DvStorageUUID:
		kind = "uuid"
	}
	return fmt.Sprintf("dv(%s, id=%s, cardinality=%d)", kind, d.UniqueID, d.Cardinality)
}
