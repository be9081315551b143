package service

import (
	"context"
	"fmt"

	"clinicdocs/internal/model"
)

// BatchOpKind is the mutation queued in a Batch.
type BatchOpKind string

const (
	BatchSet    BatchOpKind = "set"
	BatchUpdate BatchOpKind = "update"
	BatchDelete BatchOpKind = "delete"
)

// OpStatus is the outcome of one queued operation after Commit.
type OpStatus string

const (
	OpApplied OpStatus = "applied"
	OpFailed  OpStatus = "failed"
	OpSkipped OpStatus = "skipped"
)

type batchOp struct {
	kind       BatchOpKind
	collection string
	id         string
	fields     model.Fields
}

// OpResult reports what happened to one queued operation.
type OpResult struct {
	Op         BatchOpKind `json:"op"`
	Collection string      `json:"collection"`
	ID         string      `json:"id"`
	Status     OpStatus    `json:"status"`
	Error      string      `json:"error,omitempty"`
	Err        error       `json:"-"`
}

// BatchResult lists the outcome of every operation in queue order.
type BatchResult struct {
	Results []OpResult `json:"results"`
}

// Applied returns how many operations took effect.
func (r *BatchResult) Applied() int {
	n := 0
	for _, res := range r.Results {
		if res.Status == OpApplied {
			n++
		}
	}
	return n
}

// BatchError identifies the operation that stopped a commit.
type BatchError struct {
	Index int
	Op    BatchOpKind
	Err   error
}

func (e *BatchError) Error() string {
	return fmt.Sprintf("batch op %d (%s): %v", e.Index, e.Op, e.Err)
}

func (e *BatchError) Unwrap() error { return e.Err }

// Batch queues document mutations and applies them in order on Commit.
//
// Commit is NOT atomic: operations run one after another against the store and a
// failure leaves earlier operations applied. Commit stops at the first failure and
// reports the remaining operations as skipped.
type Batch struct {
	store     DocumentStore
	ops       []batchOp
	committed bool
}

// NewBatch starts an empty batch against store.
func NewBatch(store DocumentStore) *Batch {
	return &Batch{store: store}
}

// Set queues a full write of the document.
func (b *Batch) Set(collection, id string, fields model.Fields) *Batch {
	b.ops = append(b.ops, batchOp{kind: BatchSet, collection: collection, id: id, fields: fields})
	return b
}

// Update queues a patch of an existing document.
func (b *Batch) Update(collection, id string, fields model.Fields) *Batch {
	b.ops = append(b.ops, batchOp{kind: BatchUpdate, collection: collection, id: id, fields: fields})
	return b
}

// Delete queues removal of the document.
func (b *Batch) Delete(collection, id string) *Batch {
	b.ops = append(b.ops, batchOp{kind: BatchDelete, collection: collection, id: id})
	return b
}

// Len returns the number of queued operations.
func (b *Batch) Len() int { return len(b.ops) }

// Commit applies the queued operations sequentially. The returned result is always
// populated when the batch had not been committed before; the error is a *BatchError
// for the first failing operation.
func (b *Batch) Commit(ctx context.Context) (*BatchResult, error) {
	if b.committed {
		return nil, ErrBatchCommitted
	}
	b.committed = true

	res := &BatchResult{Results: make([]OpResult, len(b.ops))}
	var stopErr error
	for i, op := range b.ops {
		r := OpResult{Op: op.kind, Collection: op.collection, ID: op.id}
		switch {
		case stopErr != nil:
			r.Status = OpSkipped
		default:
			if err := b.apply(ctx, op); err != nil {
				r.Status = OpFailed
				r.Err = err
				r.Error = err.Error()
				stopErr = &BatchError{Index: i, Op: op.kind, Err: err}
			} else {
				r.Status = OpApplied
			}
		}
		res.Results[i] = r
	}
	return res, stopErr
}

func (b *Batch) apply(ctx context.Context, op batchOp) error {
	var err error
	switch op.kind {
	case BatchSet:
		_, err = b.store.Write(ctx, op.collection, op.id, op.fields)
	case BatchUpdate:
		_, err = b.store.Patch(ctx, op.collection, op.id, op.fields)
	case BatchDelete:
		err = b.store.Remove(ctx, op.collection, op.id)
	default:
		err = fmt.Errorf("unknown batch op %q", op.kind)
	}
	return err
}
