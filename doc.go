// Package alluvium extracts relational tables from an ordered blockchain
// transaction stream.
//
// The name comes from the geological theme: alluvium is the sediment a stream
// deposits as it flows, and the pipeline builds its tables by depositing
// records from the transaction stream over time.
//
// # Pipeline
//
// A Processor runs one pipeline: a transaction Source delivers the canonical
// stream in version order, a pool of Extractors turns each transaction into
// table records, an accumulator groups the records of a contiguous version
// range into a Batch, and a Sink commits each Batch together with a
// checkpoint recording the end of the range. A batch flushes when its
// serialized size reaches MaxBufferBytes, when UploadInterval has elapsed
// since the first buffered transaction, or when the pipeline drains (end of a
// bounded range, shutdown).
//
// The stages run concurrently, connected by bounded channels: a slow sink
// suspends extraction, a slow extractor suspends the source. Extraction is
// parallelized across transactions, but records always enter the accumulator
// in version order.
//
// # Checkpoints and restarts
//
// The checkpoint is the only durable coordination state. It is keyed by the
// processor name and stores the last version whose records are fully
// committed. On start, the processor resumes from the version after the
// checkpoint, or from StartingVersion if that is later. Sinks commit data and
// checkpoint atomically (or equivalently, make replay of the last batch
// idempotent), so a crash at any point never loses a committed batch and
// never applies one twice.
//
// # Backfill
//
// A backfill run re-processes a version range concurrently with a tailing
// processor. It checkpoints under its own alias, so the two runs never fight
// over the resume position, and its ending version bounds the stream: once
// the range is drained the run stops with success. Version-guarded sink
// writes keep a backfill from clobbering newer rows written by the tailing
// run.
//
// # Errors
//
// Per-transaction extraction failures follow the configured policy: halt the
// pipeline, or skip the failing extractor's records and continue. Sink
// commit failures are retried with exponential backoff up to SinkRetries
// attempts, then stop the pipeline with ErrSinkExhausted. A source that
// breaks version ordering, or no longer retains the requested range, stops
// the pipeline with the corresponding stream error. Cancellation is not an
// error: the pipeline flushes what is complete and exits cleanly.
package alluvium
