package tablekernel

import (
	"context"
	"fmt"
	"path"
	"time"

	"github.com/lychee-technology/tablekernel/internal/collections"
	"github.com/lychee-technology/tablekernel/internal/telemetry"
)

const (
	unknownOperation = "UNKNOWN"
	kernelVersionTag = "v0.1.0"
)

// Transaction accumulates the state of an in-progress write — operation
// name, commit info, staged add-file metadata, and set-transaction (app_id,
// version) records — before being consumed by Commit.
type Transaction struct {
	readSnapshot    Snapshot
	operation       string
	commitInfo      RowReader
	addFiles        []AddAction
	setTransactions []SetTransactionAction
	commitTimestamp int64
}

// NewTransaction opens a write against snapshot. It fails immediately if
// the table's protocol declares writer features this implementation does
// not understand — the write pre-check happens here, not at commit time, so
// a caller never stages work against a table it cannot legally write.
func NewTransaction(snapshot Snapshot) (*Transaction, error) {
	if err := snapshot.Configuration().EnsureWriteSupported(); err != nil {
		return nil, err
	}
	return &Transaction{
		readSnapshot:    snapshot,
		commitTimestamp: time.Now().UnixMilli(),
	}, nil
}

// WithOperation names the operation persisted in the commit's commitInfo
// action and visible in table history.
func (t *Transaction) WithOperation(operation string) *Transaction {
	t.operation = operation
	return t
}

// WithTransactionID stages a SetTransaction (app_id, version) action, used
// by engines for idempotent writer retries. Each app_id may appear at most
// once per transaction; a duplicate is rejected at Commit, not here, since
// that is the single place that already walks the whole list.
func (t *Transaction) WithTransactionID(appID string, version int64) *Transaction {
	t.setTransactions = append(t.setTransactions, SetTransactionAction{
		AppID: appID, Version: version, LastUpdated: t.commitTimestamp,
	})
	return t
}

// WithCommitInfo attaches the commit-wide metadata written as the first
// action of the commit. batch must carry exactly one row and is read back
// at Commit time through its "engineCommitInfo" map<string,string> column;
// any other column is ignored.
func (t *Transaction) WithCommitInfo(batch RowReader) *Transaction {
	t.commitInfo = batch
	return t
}

// AddFiles stages one batch of add-file metadata, decoded immediately
// against AddFilesSchema's columns via RowReader's narrow getters rather
// than held as an opaque batch: this package emits commits as typed JSON
// action lines, not engine-native data chunks, so there is nothing to defer
// decoding for. May be called multiple times to stage multiple batches.
func (t *Transaction) AddFiles(batch RowReader) error {
	for row := 0; row < batch.Len(); row++ {
		path, ok := batch.GetString(row, "path")
		if !ok {
			return NewMissingColumnError("path")
		}
		size, ok := batch.GetLong(row, "size")
		if !ok {
			return NewMissingColumnError("size")
		}
		modTime, ok := batch.GetLong(row, "modificationTime")
		if !ok {
			return NewMissingColumnError("modificationTime")
		}
		dataChange, ok := batch.GetBool(row, "dataChange")
		if !ok {
			return NewMissingColumnError("dataChange")
		}
		partitionValues, _ := batch.GetStringMap(row, "partitionValues")
		t.addFiles = append(t.addFiles, AddAction{
			Path:             path,
			PartitionValues:  partitionValues,
			Size:             size,
			ModificationTime: modTime,
			DataChange:       dataChange,
		})
	}
	return nil
}

// WriteContext is the transaction-wide information an external writer
// needs to produce physical data files: where to write them, under which
// physical schema, and the expression that turns a logical row into one.
type WriteContext struct {
	TargetDir         string
	Schema            StructType
	LogicalToPhysical Expression
}

// GetWriteContext derives the write context for this transaction. It is
// constant for the transaction's lifetime: nothing here can become invalid
// partway through a single write since this module never changes table
// metadata mid-transaction.
func (t *Transaction) GetWriteContext() WriteContext {
	return WriteContext{
		TargetDir:         t.readSnapshot.TableRoot(),
		Schema:            t.readSnapshot.LogicalSchema(),
		LogicalToPhysical: t.generateLogicalToPhysical(),
	}
}

// generateLogicalToPhysical passes every non-partition column through by
// reference. This is incorrect if table configuration ever requires
// partition columns to be physically present in data files, a case this
// module does not model.
func (t *Transaction) generateLogicalToPhysical() Expression {
	partitionCols := make(map[string]bool)
	for _, c := range t.readSnapshot.PartitionColumns() {
		partitionCols[c] = true
	}
	schema := t.readSnapshot.LogicalSchema()
	children := make([]Expression, 0, len(schema.Fields))
	for _, f := range schema.Fields {
		if partitionCols[f.Name] {
			continue
		}
		children = append(children, ColumnOf(f.Name))
	}
	return StructExpr(children...)
}

// CommitResultKind discriminates the two outcomes of Commit.
type CommitResultKind int

const (
	// Committed means the commit succeeded at Version.
	Committed CommitResultKind = iota
	// Conflict means another writer already committed Version first; the
	// original Transaction is returned unconsumed so the caller can retry
	// against the new snapshot.
	Conflict
)

// CommitResult is the outcome of Commit.
type CommitResult struct {
	Kind        CommitResultKind
	Version     int64
	Transaction *Transaction // set when Kind == Conflict
}

// generateCommitInfo builds the first action of the commit from the
// engine-supplied commit info batch, validating it carries exactly one row.
func (t *Transaction) generateCommitInfo() (*CommitInfoAction, error) {
	if t.commitInfo == nil {
		return nil, NewMissingCommitInfoError()
	}
	if t.commitInfo.Len() != 1 {
		return nil, NewInvalidCommitInfoError(
			fmt.Sprintf("engine commit info should have exactly one row, found %d", t.commitInfo.Len()))
	}
	engineCommitInfo, _ := t.commitInfo.GetStringMap(0, "engineCommitInfo")
	for _, v := range collections.MapValues(engineCommitInfo) {
		if v == "" {
			return nil, NewInvalidCommitInfoError("engineCommitInfo must not carry empty values")
		}
	}

	operation := t.operation
	if operation == "" {
		operation = unknownOperation
	}
	return &CommitInfoAction{
		Timestamp:           t.commitTimestamp,
		Operation:           operation,
		OperationParameters: emptyOperationParameters,
		KernelVersion:       kernelVersionTag,
		EngineCommitInfo:    engineCommitInfo,
	}, nil
}

// commitFilePath renders the next commit's log path, "_delta_log/NNNN...N.json",
// zero-padded to twenty digits per the format's on-disk convention.
func commitFilePath(tableRoot string, version int64) string {
	return path.Join(tableRoot, "_delta_log", fmt.Sprintf("%020d.json", version))
}

// Commit consumes the transaction's staged state and attempts to write it
// as the next commit in the table's log:
//
//  1. every staged app_id must be unique across this transaction;
//  2. a commitInfo action is generated from the attached engine commit
//     info, always first;
//  3. one add action per staged file, then one txn action per staged
//     SetTransaction;
//  4. the whole batch is written via an overwrite=false JSON file create,
//     so a concurrent writer racing for the same version loses atomically.
//
// File-already-exists collapses to Conflict rather than an error: the
// caller can inspect the returned Transaction and retry against a fresh
// snapshot. Any other write failure is returned as-is.
func (t *Transaction) Commit(ctx context.Context, engine Engine) (CommitResult, error) {
	commitStart := time.Now()
	defer func() {
		telemetry.EmitLatency(ctx, "commit", time.Since(commitStart).Milliseconds())
	}()

	seenAppIDs := make(map[string]bool, len(t.setTransactions))
	for _, st := range t.setTransactions {
		if seenAppIDs[st.AppID] {
			return CommitResult{}, NewGenericError(fmt.Sprintf("app_id %s already exists in transaction", st.AppID))
		}
		seenAppIDs[st.AppID] = true
	}

	commitInfo, err := t.generateCommitInfo()
	if err != nil {
		return CommitResult{}, err
	}

	actions := make([]any, 0, 1+len(t.addFiles)+len(t.setTransactions))
	actions = append(actions, logActionEnvelope{CommitInfo: commitInfo})
	for i := range t.addFiles {
		add := t.addFiles[i]
		actions = append(actions, logActionEnvelope{Add: &add})
	}
	for i := range t.setTransactions {
		txn := t.setTransactions[i]
		actions = append(actions, logActionEnvelope{Txn: &txn})
	}

	commitVersion := t.readSnapshot.Version() + 1
	commitPath := commitFilePath(t.readSnapshot.TableRoot(), commitVersion)

	err = engine.JSONHandler().WriteJSONFile(ctx, commitPath, actions, false)
	switch {
	case err == nil:
		return CommitResult{Kind: Committed, Version: commitVersion}, nil
	case IsFileAlreadyExists(err):
		return CommitResult{Kind: Conflict, Version: commitVersion, Transaction: t}, nil
	default:
		return CommitResult{}, err
	}
}
