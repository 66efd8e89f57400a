// Package storage holds file sinks for raw logs and replay output.
package storage

import "hypercertsIndexer/internal/model"

// LogSink receives raw logs fetched by the indexer so they can be replayed
// offline with the decode command.
type LogSink interface {
	PutLogBatch(logs []model.LogRecord) error
}
