// Package jsonshard converts newline-delimited JSON files into batches of
// columnar shard files.
//
// The converter streams the input one line at a time, accumulates records
// into a bounded batch, and writes every full batch (plus the final partial
// one) to its own self-contained shard file named {prefix}-{n}{ext}. Memory
// use is bounded by the batch size, never by the input size, so inputs far
// larger than RAM convert in a single pass.
//
// Each shard carries its own schema, inferred from that shard's records
// alone: integer and floating point values stay distinguishable during
// decoding, mixed numeric fields widen to float, irreconcilable types fall
// back to strings, and nested objects or arrays are stored as JSON-encoded
// string columns.
//
// Supported shard formats are Parquet (the default), Arrow IPC, Avro object
// container files, CSV, and NDJSON. Compressed inputs (.gz, .zst, .s2,
// .snappy, .lz4, .deflate) are decompressed transparently.
//
// The jsonshard command wraps the library:
//
//	jsonshard convert -i events.ndjson.gz -o out/events -b 100000
//	jsonshard inspect out/events-0.parquet
//
// See internal/convert for the conversion loop, pkg/schema for inference,
// and pkg/formats/columnar for the shard writers and readers.
package jsonshard
