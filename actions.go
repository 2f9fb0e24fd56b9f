package tablekernel

import "encoding/json"

// AddAction describes one data file added to the table by a commit. It
// appears both as a staged write (before commit) and as a log-replay result
// (after commit), and the two share the same shape.
type AddAction struct {
	Path             string            `json:"path"`
	PartitionValues  map[string]string `json:"partitionValues"`
	Size             int64             `json:"size"`
	ModificationTime int64             `json:"modificationTime"`
	DataChange       bool              `json:"dataChange"`
	Stats            string            `json:"stats,omitempty"`
	DeletionVector   *DvDescriptorJSON `json:"deletionVector,omitempty"`
}

// RemoveAction describes one data file removed (tombstoned) by a commit.
// Its deletion vector, when present, is what CDF pairing compares against a
// same-path AddAction's deletion vector to compute the set of rows that
// actually changed.
type RemoveAction struct {
	Path                 string            `json:"path"`
	DeletionTimestamp    int64             `json:"deletionTimestamp"`
	DataChange           bool              `json:"dataChange"`
	ExtendedFileMetadata bool              `json:"extendedFileMetadata,omitempty"`
	PartitionValues      map[string]string `json:"partitionValues,omitempty"`
	Size                 int64             `json:"size,omitempty"`
	DeletionVector       *DvDescriptorJSON `json:"deletionVector,omitempty"`
}

// CdcAction describes a file whose rows are pre-computed change-data-feed
// rows, rather than a plain add/remove to be paired by deletion vector.
// Unpaired CdcAction rows pass through a CDF scan unchanged.
type CdcAction struct {
	Path            string            `json:"path"`
	PartitionValues map[string]string `json:"partitionValues"`
	Size            int64             `json:"size"`
}

// MetadataAction carries the table's schema and partitioning, as replayed
// from the log. The core reads it read-only to drive schema/partition
// classification in ScanBuilder; it never writes one.
type MetadataAction struct {
	ID               string            `json:"id"`
	Name             string            `json:"name,omitempty"`
	Description      string            `json:"description,omitempty"`
	SchemaString     string            `json:"schemaString"`
	PartitionColumns []string          `json:"partitionColumns"`
	Configuration    map[string]string `json:"configuration,omitempty"`
	CreatedTime      int64             `json:"createdTime,omitempty"`
}

// ProtocolAction records the minimum reader/writer protocol versions and
// feature lists a table requires. TableConfiguration.EnsureWriteSupported
// consults it to reject writes against a protocol this package cannot
// safely target; this package never performs protocol upgrades.
type ProtocolAction struct {
	MinReaderVersion int      `json:"minReaderVersion"`
	MinWriterVersion int      `json:"minWriterVersion"`
	ReaderFeatures   []string `json:"readerFeatures,omitempty"`
	WriterFeatures   []string `json:"writerFeatures,omitempty"`
}

// SetTransactionAction ("txn") records the last committed version for one
// application id, used for idempotent writer retries.
type SetTransactionAction struct {
	AppID       string `json:"appId"`
	Version     int64  `json:"version"`
	LastUpdated int64  `json:"lastUpdated,omitempty"`
}

// CommitInfoAction is the first action of every commit, recording the
// operation name, its (always-empty) parameters, the kernel version, and
// engine-supplied free-form commit metadata.
type CommitInfoAction struct {
	Timestamp           int64             `json:"timestamp"`
	Operation           string            `json:"operation"`
	OperationParameters json.RawMessage   `json:"operationParameters"`
	KernelVersion       string            `json:"kernelVersion"`
	EngineCommitInfo    map[string]string `json:"engineCommitInfo"`
}

// DvDescriptorJSON is the wire shape of a DeletionVectorDescriptor as it
// appears embedded in an add/remove action.
type DvDescriptorJSON struct {
	StorageType string `json:"storageType"`
	PathOrInline string `json:"pathOrInlineDv"`
	Offset      *int64 `json:"offset,omitempty"`
	SizeInBytes int64  `json:"sizeInBytes"`
	Cardinality int64  `json:"cardinality"`
}

func dvStorageTypeCode(t DvStorageType) string {
	switch t {
	case DvStorageInline:
		return "i"
	case DvStorageOnDisk:
		return "p"
	case DvStorageUUID:
		return "u"
	}
	return "u"
}

// ToJSON converts a DeletionVectorDescriptor to its wire shape.
func (d *DeletionVectorDescriptor) ToJSON() *DvDescriptorJSON {
	if d == nil {
		return nil
	}
	return &DvDescriptorJSON{
		StorageType:  dvStorageTypeCode(d.StorageType),
		PathOrInline: d.PathOrInline,
		Offset:       d.Offset,
		SizeInBytes:  d.SizeInBytes,
		Cardinality:  d.Cardinality,
	}
}

// AddFilesSchema is the struct type every row of Transaction's staged
// add-files metadata must conform to.
func AddFilesSchema() StructType {
	return NewStructType(
		NotNull("path", StringType),
		NotNull("partitionValues", MapOf(StringType, StringType, true)),
		NotNull("size", LongType),
		NotNull("modificationTime", LongType),
		NotNull("dataChange", BooleanType),
	)
}

// emptyOperationParameters is always emitted verbatim as the
// operationParameters field of a commitInfo action: the Format's schema
// requires the field to exist, but no operation defined by this module
// produces actual parameters to report.
var emptyOperationParameters = json.RawMessage("{}")
