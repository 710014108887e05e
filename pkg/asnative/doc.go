// Package asnative is the client surface of the binding. A Client owns one
// driver connection and exposes single-key reads and writes, multi-operation
// requests, batch reads, secondary index queries, scans, index management
// and UDF module management.
//
// Every call takes a per-call policy map that is resolved into the typed
// policy of its category before anything reaches the driver, so malformed
// maps fail synchronously. Driver failures surface as *status.Error values
// whose Code is preserved:
//
//	rec, err := client.Get(ctx, k, nil)
//	if status.IsNotFound(err) {
//		// the record does not exist
//	}
//
// Batch reads, queries and scans either return the ordered results or, when
// a consumer is supplied, deliver each result to it synchronously and return
// nil. A key missing from a batch yields the record.Absent marker at its
// position rather than an error.
//
// NewFromEnv selects the transport from AEROSPIKE_* environment variables:
// a live cluster, the REST gateway, or the in-memory mock.
package asnative
