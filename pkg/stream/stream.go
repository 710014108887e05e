// Package stream turns the per-item callbacks of batch reads, queries and
// scans into either an ordered result slice or synchronous delivery to a
// consumer.
//
// Items are classified as they arrive. A found item becomes a Record. A
// missing key becomes the record.Absent marker and is logged as a warning.
// Any other per-item status is logged as an error and skipped, so one bad
// item never aborts the stream. Only the terminal error passed to Finish
// fails the call.
package stream

import (
	"fmt"

	"github.com/Ratio1/aerospike_native_go/pkg/key"
	"github.com/Ratio1/aerospike_native_go/pkg/logger"
	"github.com/Ratio1/aerospike_native_go/pkg/record"
	"github.com/Ratio1/aerospike_native_go/pkg/status"
	"github.com/Ratio1/aerospike_native_go/pkg/value"
)

// State is the lifecycle of one streaming call.
type State int

const (
	Pending State = iota
	Streaming
	Accumulated
	Delivered
	Failed
)

func (s State) String() string {
	switch s {
	case Pending:
		return "pending"
	case Streaming:
		return "streaming"
	case Accumulated:
		return "accumulated"
	case Delivered:
		return "delivered"
	case Failed:
		return "failed"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Item is one driver callback. Record is set for record results and Value
// for scalar aggregation results.
type Item struct {
	Key    *key.Key
	Record *record.Wire
	Value  *value.Value
	Status status.Code
	Err    error
}

// Emit hands one item to the adapter.
type Emit func(Item)

// Result is one delivered element: a Record (possibly the absent marker) or
// an aggregation Value.
type Result struct {
	Record *record.Record
	Value  any
}

// Consumer receives results synchronously in driver order.
type Consumer func(Result)

// Adapter drives one streaming call. It is not safe for concurrent use;
// drivers must serialise Emit calls.
type Adapter struct {
	op       string
	consumer Consumer
	state    State
	results  []Result

	delivered int
	missing   int
	failed    int
}

// New returns a Pending adapter. A nil consumer accumulates results.
func New(op string, consumer Consumer) *Adapter {
	return &Adapter{op: op, consumer: consumer}
}

// State returns the current state.
func (a *Adapter) State() State { return a.state }

// Start moves a Pending adapter to Streaming.
func (a *Adapter) Start() {
	if a.state == Pending {
		a.state = Streaming
	}
}

// Emit classifies and delivers one item.
func (a *Adapter) Emit(it Item) {
	a.Start()
	if a.state != Streaming {
		logger.Debug("stream: item after completion dropped", "op", a.op, "key", it.Key)
		return
	}

	switch it.Status {
	case status.OK:
		res, ok := a.decode(it)
		if !ok {
			a.failed++
			return
		}
		a.deliver(res)
	case status.KeyNotFound:
		a.missing++
		logger.Warn("stream: record not found", "op", a.op, "key", it.Key)
		a.deliver(Result{Record: record.Absent(it.Key)})
	default:
		a.failed++
		logger.Error("stream: item failed", "op", a.op, "key", it.Key, "code", int(it.Status), "status", it.Status.String(), "error", it.Err)
	}
}

func (a *Adapter) decode(it Item) (Result, bool) {
	if it.Value != nil {
		v, err := value.Decode(*it.Value)
		if err != nil {
			logger.Error("stream: undecodable result value", "op", a.op, "error", err)
			return Result{}, false
		}
		return Result{Value: v}, true
	}
	if it.Record == nil {
		logger.Error("stream: item carries neither record nor value", "op", a.op, "key", it.Key)
		return Result{}, false
	}
	return Result{Record: record.FromWire(it.Record, it.Key)}, true
}

func (a *Adapter) deliver(res Result) {
	a.delivered++
	if a.consumer != nil {
		a.consumer(res)
		return
	}
	a.results = append(a.results, res)
}

// Finish completes the call. A non-nil err fails the whole call; otherwise
// the accumulated results are returned, or nil when a consumer received
// them.
func (a *Adapter) Finish(err error) ([]Result, error) {
	if err != nil {
		a.state = Failed
		a.results = nil
		return nil, err
	}
	logger.Trace("stream: complete", "op", a.op, "delivered", a.delivered, "missing", a.missing, "failed", a.failed)
	if a.consumer != nil {
		a.state = Delivered
		return nil, nil
	}
	a.state = Accumulated
	if a.results == nil {
		return []Result{}, nil
	}
	return a.results, nil
}

// Run starts an adapter, lets drive push items into it and finishes with
// drive's error.
func Run(op string, consumer Consumer, drive func(Emit) error) ([]Result, error) {
	a := New(op, consumer)
	a.Start()
	return a.Finish(drive(a.Emit))
}
