package tablekernel

// Snapshot is a read-only view of a table at a specific version, supplied
// by the caller (typically backed by a log-replay implementation this
// package does not own). The core only ever reads version/schema/
// partitioning/commit-file metadata from it; it never mutates a Snapshot.
type Snapshot interface {
	Version() int64
	LogicalSchema() StructType
	PartitionColumns() []string
	TableRoot() string
	Configuration() TableConfiguration
	LogSegment() LogSegment
}

// LogSegment is the ordered set of commit files a Snapshot was built from,
// plus the ability to open a commit range for CDF replay.
type LogSegment interface {
	// AscendingCommitFiles lists this snapshot's commit files in ascending
	// version order.
	AscendingCommitFiles() []CommitFile

	// CommitRange returns commit files with version in [startVersion, endVersion]
	// (endVersion < 0 means "through the snapshot's own version").
	CommitRange(startVersion, endVersion int64) ([]CommitFile, error)
}

// CommitFile identifies one versioned log entry.
type CommitFile struct {
	Version int64
	Path    string
}

// TableConfiguration exposes protocol/metadata facts needed to gate writes
// and to classify CDF synthetic columns.
type TableConfiguration interface {
	Protocol() ProtocolAction
	Metadata() MetadataAction

	// EnsureWriteSupported fails if the table's protocol requires reader or
	// writer features this implementation does not understand. This
	// package never performs a protocol upgrade; it only refuses to write
	// against a protocol it cannot safely target.
	EnsureWriteSupported() error

	// IsCDFEnabled reports whether table properties request Change Data
	// Feed generation (delta.enableChangeDataFeed=true equivalent).
	IsCDFEnabled() bool
}

// supportedWriterFeatures enumerates the writer-side table features this
// implementation understands. Any writer feature outside this set fails
// EnsureWriteSupported rather than silently ignoring it.
var supportedWriterFeatures = map[string]bool{
	"deletionVectors": true,
	"changeDataFeed":  true,
}

// DefaultEnsureWriteSupported checks a ProtocolAction's declared writer
// features against supportedWriterFeatures: any writer feature this module
// does not recognize blocks the write. Protocol-upgrade enforcement itself
// (writing a higher min-writer-version) is not implemented.
func DefaultEnsureWriteSupported(p ProtocolAction) error {
	for _, f := range p.WriterFeatures {
		if !supportedWriterFeatures[f] {
			return NewUnsupportedError("writer feature not supported: " + f)
		}
	}
	return nil
}
