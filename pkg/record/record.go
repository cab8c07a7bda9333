// Package record defines the in-memory row and batch types flowing through
// the converter.
package record

// Record is one parsed NDJSON row. Data maps field names to decoded JSON
// values; numbers are json.Number until schema inference classifies them.
type Record struct {
	Data map[string]interface{}
	// Line is the zero-based line number the record was read from.
	Line int
}

// New creates a record for the given source line.
func New(data map[string]interface{}, line int) *Record {
	return &Record{Data: data, Line: line}
}

// Batch is an ordered, bounded accumulation of records. It is owned by a
// single converter for its whole accumulate-then-flush lifecycle and is
// reset, not reallocated, after every flush.
type Batch struct {
	records []*Record
}

// NewBatch creates an empty batch with capacity for size records.
func NewBatch(size int) *Batch {
	if size < 0 {
		size = 0
	}
	return &Batch{records: make([]*Record, 0, size)}
}

// Append adds a record to the end of the batch.
func (b *Batch) Append(r *Record) {
	b.records = append(b.records, r)
}

// Len returns the number of buffered records.
func (b *Batch) Len() int {
	return len(b.records)
}

// Records returns the buffered records in input order. The slice is only
// valid until the next Reset.
func (b *Batch) Records() []*Record {
	return b.records
}

// Reset clears the batch while keeping its backing array.
func (b *Batch) Reset() {
	for i := range b.records {
		b.records[i] = nil
	}
	b.records = b.records[:0]
}
