package factory

import (
	"context"
	"encoding/json"
	"fmt"
	"path"
	"sort"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/lychee-technology/tablekernel"
	"github.com/lychee-technology/tablekernel/internal/collections"
)

// logSegment implements tablekernel.LogSegment over a flat, already-sorted
// list of commit files discovered under a table's _delta_log directory.
type logSegment struct {
	commits []tablekernel.CommitFile
}

func (s logSegment) AscendingCommitFiles() []tablekernel.CommitFile { return s.commits }

func (s logSegment) CommitRange(startVersion, endVersion int64) ([]tablekernel.CommitFile, error) {
	out := make([]tablekernel.CommitFile, 0, len(s.commits))
	for _, c := range s.commits {
		if c.Version < startVersion {
			continue
		}
		if endVersion >= 0 && c.Version > endVersion {
			continue
		}
		out = append(out, c)
	}
	return out, nil
}

// tableConfiguration implements tablekernel.TableConfiguration from the
// latest replayed protocol/metaData actions.
type tableConfiguration struct {
	protocol tablekernel.ProtocolAction
	metadata tablekernel.MetadataAction
}

func (c tableConfiguration) Protocol() tablekernel.ProtocolAction { return c.protocol }
func (c tableConfiguration) Metadata() tablekernel.MetadataAction { return c.metadata }

func (c tableConfiguration) EnsureWriteSupported() error {
	return tablekernel.DefaultEnsureWriteSupported(c.protocol)
}

func (c tableConfiguration) IsCDFEnabled() bool {
	return c.metadata.Configuration["delta.enableChangeDataFeed"] == "true"
}

// snapshot implements tablekernel.Snapshot over a table root read through a
// tablekernel.StorageHandler.
type snapshot struct {
	version          int64
	tableRoot        string
	logicalSchema    tablekernel.StructType
	partitionColumns []string
	config           tableConfiguration
	segment          logSegment
}

func (s *snapshot) Version() int64                                { return s.version }
func (s *snapshot) LogicalSchema() tablekernel.StructType         { return s.logicalSchema }
func (s *snapshot) PartitionColumns() []string                    { return s.partitionColumns }
func (s *snapshot) TableRoot() string                             { return s.tableRoot }
func (s *snapshot) Configuration() tablekernel.TableConfiguration { return s.config }
func (s *snapshot) LogSegment() tablekernel.LogSegment            { return s.segment }

// tableChanges implements tablekernel.TableChanges by scoping an already
// opened Snapshot to a closed commit-version range, the way a caller moves
// from "read the table now" to "read what changed between two versions"
// without a second trip through OpenTable.
type tableChanges struct {
	snap         tablekernel.Snapshot
	startVersion int64
	endVersion   int64
}

// NewTableChanges scopes snap to the commit range [startVersion, endVersion]
// (endVersion < 0 means "through the snapshot's own version").
func NewTableChanges(snap tablekernel.Snapshot, startVersion, endVersion int64) tablekernel.TableChanges {
	return &tableChanges{snap: snap, startVersion: startVersion, endVersion: endVersion}
}

func (t *tableChanges) StartVersion() int64 { return t.startVersion }

func (t *tableChanges) EndVersion() int64 {
	if t.endVersion < 0 {
		return t.snap.Version()
	}
	return t.endVersion
}

func (t *tableChanges) LogicalSchema() tablekernel.StructType         { return t.snap.LogicalSchema() }
func (t *tableChanges) PartitionColumns() []string                    { return t.snap.PartitionColumns() }
func (t *tableChanges) TableRoot() string                             { return t.snap.TableRoot() }
func (t *tableChanges) Configuration() tablekernel.TableConfiguration { return t.snap.Configuration() }
func (t *tableChanges) LogSegment() tablekernel.LogSegment            { return t.snap.LogSegment() }

// logActionEnvelope mirrors one newline-delimited-JSON log line, restricted
// to the actions table-opening cares about: the full add/remove/cdc replay
// needed for a scan happens inside the core itself (scan.go, cdf.go), which
// reads commit files directly through the engine's StorageHandler.
type logActionEnvelope struct {
	Metadata *tablekernel.MetadataAction `json:"metaData,omitempty"`
	Protocol *tablekernel.ProtocolAction `json:"protocol,omitempty"`
}

const commitFileDigits = 20

func commitVersionFromName(name string) (int64, bool) {
	base := strings.TrimSuffix(path.Base(name), ".json")
	if len(base) != commitFileDigits {
		return 0, false
	}
	v, err := strconv.ParseInt(base, 10, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// OpenTable lists a table's _delta_log directory, replays every commit in
// ascending version order to find the latest metaData/protocol actions, and
// returns a ready-to-use Snapshot at the table's current version.
func OpenTable(ctx context.Context, tableRoot string, storage tablekernel.StorageHandler) (tablekernel.Snapshot, error) {
	logDir := path.Join(tableRoot, "_delta_log")
	files, err := storage.List(ctx, logDir)
	if err != nil {
		return nil, fmt.Errorf("list commit log: %w", err)
	}

	var commits []tablekernel.CommitFile
	for _, f := range files {
		if !strings.HasSuffix(f.Location, ".json") {
			continue
		}
		v, ok := commitVersionFromName(f.Location)
		if !ok {
			continue
		}
		commits = append(commits, tablekernel.CommitFile{Version: v, Path: f.Location})
	}
	if len(commits) == 0 {
		return nil, tablekernel.NewGenericError("no commits found under " + logDir)
	}
	sort.Slice(commits, func(i, j int) bool { return commits[i].Version < commits[j].Version })

	var meta tablekernel.MetadataAction
	var proto tablekernel.ProtocolAction
	sawMeta, sawProto := false, false

	for _, cf := range commits {
		raw, err := storage.ReadBytes(ctx, cf.Path, 0, 0)
		if err != nil {
			return nil, fmt.Errorf("read commit %d: %w", cf.Version, err)
		}
		for _, line := range strings.Split(string(raw), "\n") {
			line = strings.TrimSpace(line)
			if line == "" {
				continue
			}
			var env logActionEnvelope
			if err := json.Unmarshal([]byte(line), &env); err != nil {
				zap.S().Warnw("factory: skipping malformed commit line", "version", cf.Version, "err", err)
				continue
			}
			if env.Metadata != nil {
				meta = *env.Metadata
				sawMeta = true
			}
			if env.Protocol != nil {
				proto = *env.Protocol
				sawProto = true
			}
		}
	}
	if !sawMeta {
		return nil, tablekernel.NewGenericError("table has no metaData action")
	}
	if !sawProto {
		return nil, tablekernel.NewGenericError("table has no protocol action")
	}

	schema, err := ToStructType(meta.SchemaString)
	if err != nil {
		return nil, fmt.Errorf("parse table schema: %w", err)
	}

	if len(meta.Configuration) > 0 {
		unrecognized := collections.NewSet[string]()
		for _, key := range collections.MapKeys(meta.Configuration) {
			unrecognized.Add(key)
		}
		unrecognized.Remove("delta.enableChangeDataFeed")
		if unrecognized.Size() > 0 {
			zap.S().Debugw("factory: table configuration has properties this kernel does not interpret",
				"keys", unrecognized.ToSlice())
		}
	}

	seen := collections.NewSet[string]()
	for _, col := range meta.PartitionColumns {
		if seen.Contains(col) {
			return nil, tablekernel.NewGenericError("duplicate partition column " + col)
		}
		seen.Add(col)
		if _, ok := schema.FieldByName(col); !ok {
			return nil, tablekernel.NewGenericError("partition column " + col + " not found in table schema")
		}
	}

	return &snapshot{
		version:          commits[len(commits)-1].Version,
		tableRoot:        tableRoot,
		logicalSchema:    schema,
		partitionColumns: meta.PartitionColumns,
		config:           tableConfiguration{protocol: proto, metadata: meta},
		segment:          logSegment{commits: commits},
	}, nil
}
