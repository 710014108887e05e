// Package operation composes primitive bin operations into one atomic
// multi-operation request.
package operation

import (
	"errors"
	"fmt"

	"github.com/Ratio1/aerospike_native_go/pkg/record"
	"github.com/Ratio1/aerospike_native_go/pkg/value"
)

// Kind names a primitive operation.
type Kind int

const (
	KindRead Kind = iota
	KindWrite
	KindIncrement
	KindAppend
	KindPrepend
	KindTouch
)

func (k Kind) String() string {
	switch k {
	case KindRead:
		return "read"
	case KindWrite:
		return "write"
	case KindIncrement:
		return "increment"
	case KindAppend:
		return "append"
	case KindPrepend:
		return "prepend"
	case KindTouch:
		return "touch"
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

var (
	// ErrEmpty is returned by Build for an empty operation list.
	ErrEmpty = errors.New("operation: empty operation list")
	// ErrInvalidArgument is returned for malformed operations.
	ErrInvalidArgument = errors.New("operation: invalid argument")
)

// Operation is one step of a multi-operation request. Value holds the
// operand for write, increment, append and prepend and must be nil
// otherwise.
type Operation struct {
	Kind  Kind
	Bin   string
	Value any
}

// New constructs and validates an operation.
func New(kind Kind, bin string, v any) (Operation, error) {
	op := Operation{Kind: kind, Bin: bin, Value: v}
	if _, err := op.wire(); err != nil {
		return Operation{}, err
	}
	return op, nil
}

// Read reads a single bin.
func Read(bin string) Operation { return Operation{Kind: KindRead, Bin: bin} }

// Write overwrites a bin. A nil value removes the bin.
func Write(bin string, v any) Operation { return Operation{Kind: KindWrite, Bin: bin, Value: v} }

// Increment adds delta to an integer bin.
func Increment(bin string, delta int64) Operation {
	return Operation{Kind: KindIncrement, Bin: bin, Value: delta}
}

// Append appends s to a string bin.
func Append(bin, s string) Operation { return Operation{Kind: KindAppend, Bin: bin, Value: s} }

// Prepend prepends s to a string bin.
func Prepend(bin, s string) Operation { return Operation{Kind: KindPrepend, Bin: bin, Value: s} }

// Touch resets the record TTL and bumps its generation.
func Touch() Operation { return Operation{Kind: KindTouch} }

// WireOp is a validated operation with its operand encoded.
type WireOp struct {
	Kind  Kind
	Bin   string
	Value value.Value
}

// List is the encoded form of a multi-operation request. ExpectsRecord is
// set when at least one read or touch is present, in which case the request
// returns a record rather than a success flag.
type List struct {
	Ops           []WireOp
	ExpectsRecord bool
}

// Build validates and encodes ops in order.
func Build(ops []Operation) (*List, error) {
	if len(ops) == 0 {
		return nil, ErrEmpty
	}
	list := &List{Ops: make([]WireOp, 0, len(ops))}
	for i, op := range ops {
		w, err := op.wire()
		if err != nil {
			return nil, fmt.Errorf("operation %d: %w", i, err)
		}
		if op.Kind == KindRead || op.Kind == KindTouch {
			list.ExpectsRecord = true
		}
		list.Ops = append(list.Ops, w)
	}
	return list, nil
}

// ReadBins returns the bin names read by the list.
func (l *List) ReadBins() []string {
	var bins []string
	for _, op := range l.Ops {
		if op.Kind == KindRead {
			bins = append(bins, op.Bin)
		}
	}
	return bins
}

func (op Operation) wire() (WireOp, error) {
	w := WireOp{Kind: op.Kind, Bin: op.Bin}
	switch op.Kind {
	case KindTouch:
		if op.Bin != "" {
			return w, fmt.Errorf("%w: touch takes no bin name", ErrInvalidArgument)
		}
		if op.Value != nil {
			return w, fmt.Errorf("%w: touch takes no value", ErrInvalidArgument)
		}
		w.Value = value.Nil()
		return w, nil
	case KindRead, KindWrite, KindIncrement, KindAppend, KindPrepend:
	default:
		return w, fmt.Errorf("%w: unknown operation kind %d", ErrInvalidArgument, int(op.Kind))
	}

	if err := record.ValidateBinName(op.Bin); err != nil {
		return w, fmt.Errorf("%w: %s requires a bin name: %v", ErrInvalidArgument, op.Kind, err)
	}

	switch op.Kind {
	case KindRead:
		if op.Value != nil {
			return w, fmt.Errorf("%w: read takes no value", ErrInvalidArgument)
		}
		w.Value = value.Nil()
	case KindWrite:
		v, err := value.Encode(op.Value)
		if err != nil {
			return w, err
		}
		w.Value = v
	case KindIncrement:
		v, err := value.Encode(op.Value)
		if err != nil || v.Kind != value.KindInteger {
			return w, fmt.Errorf("%w: increment requires an integer, got %T", ErrInvalidArgument, op.Value)
		}
		w.Value = v
	case KindAppend, KindPrepend:
		s, ok := op.Value.(string)
		if !ok {
			return w, fmt.Errorf("%w: %s requires a string, got %T", ErrInvalidArgument, op.Kind, op.Value)
		}
		w.Value = value.String(s)
	}
	return w, nil
}
