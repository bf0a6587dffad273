// Package logger provides structured logging for the storage engine
package logger

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Logger wraps zerolog with engine-specific functionality
type Logger struct {
	zlog zerolog.Logger
}

// Config holds logger configuration
type Config struct {
	Level      string // debug, info, warn, error
	Pretty     bool   // pretty-print for development
	Output     io.Writer
	WithCaller bool
}

// NewLogger creates a new structured logger
func NewLogger(cfg Config) *Logger {
	level := zerolog.InfoLevel
	switch cfg.Level {
	case "debug":
		level = zerolog.DebugLevel
	case "info":
		level = zerolog.InfoLevel
	case "warn":
		level = zerolog.WarnLevel
	case "error":
		level = zerolog.ErrorLevel
	}
	zerolog.SetGlobalLevel(level)

	output := cfg.Output
	if output == nil {
		output = os.Stdout
	}

	if cfg.Pretty {
		output = zerolog.ConsoleWriter{
			Out:        output,
			TimeFormat: time.RFC3339,
		}
	}

	zlog := zerolog.New(output).
		With().
		Timestamp().
		Str("service", "shdb").
		Logger()

	if cfg.WithCaller {
		zlog = zlog.With().Caller().Logger()
	}

	return &Logger{zlog: zlog}
}

// DbLogger returns a logger scoped to engine read/write operations
func (l *Logger) DbLogger(operation string) *Logger {
	return &Logger{
		zlog: l.zlog.With().
			Str("component", "engine").
			Str("operation", operation).
			Logger(),
	}
}

// WalLogger returns a logger scoped to write-ahead-log operations
func (l *Logger) WalLogger() *Logger {
	return &Logger{
		zlog: l.zlog.With().
			Str("component", "wal").
			Logger(),
	}
}

// CompactionLogger returns a logger scoped to compaction operations
func (l *Logger) CompactionLogger() *Logger {
	return &Logger{
		zlog: l.zlog.With().
			Str("component", "compaction").
			Logger(),
	}
}

// LogDbOperation logs an engine read/write operation with structured fields
func (l *Logger) LogDbOperation(operation string, duration time.Duration, recordCount int, err error) {
	event := l.zlog.Debug().
		Str("component", "engine").
		Str("operation", operation).
		Dur("duration_ms", duration).
		Int("record_count", recordCount)

	if err != nil {
		event = l.zlog.Error().
			Str("component", "engine").
			Str("operation", operation).
			Dur("duration_ms", duration).
			Err(err)
	}

	event.Msg("engine operation completed")
}

// LogFlush logs a memtable flush
func (l *Logger) LogFlush(duration time.Duration, pagesWritten int, nextPageID uint64, err error) {
	event := l.zlog.Info().
		Str("component", "engine").
		Str("event", "flush").
		Dur("duration_ms", duration).
		Int("pages_written", pagesWritten).
		Uint64("next_page_id", nextPageID)

	if err != nil {
		event = l.zlog.Error().
			Str("component", "engine").
			Str("event", "flush").
			Dur("duration_ms", duration).
			Err(err)
	}

	event.Msg("memtable flush completed")
}

// LogCompaction logs an L0->L1 compaction run
func (l *Logger) LogCompaction(duration time.Duration, inputPages, outputPages int, err error) {
	event := l.zlog.Info().
		Str("component", "compaction").
		Dur("duration_ms", duration).
		Int("input_pages", inputPages).
		Int("output_pages", outputPages)

	if err != nil {
		event = l.zlog.Error().
			Str("component", "compaction").
			Dur("duration_ms", duration).
			Err(err)
	}

	event.Msg("compaction completed")
}

// LogCheckpoint logs a WAL checkpoint rewrite
func (l *Logger) LogCheckpoint(duration time.Duration, checkpointSeqno uint64, err error) {
	wlog := l.WalLogger()
	event := wlog.zlog.Info().
		Str("event", "checkpoint").
		Dur("duration_ms", duration).
		Uint64("checkpoint_seqno", checkpointSeqno)

	if err != nil {
		event = wlog.zlog.Error().
			Str("event", "checkpoint").
			Dur("duration_ms", duration).
			Err(err)
	}

	event.Msg("wal checkpoint completed")
}

// LogRecovery logs crash-recovery replay
func (l *Logger) LogRecovery(duration time.Duration, entriesReplayed int, checkpointSeqno uint64, err error) {
	event := l.zlog.Info().
		Str("component", "recovery").
		Dur("duration_ms", duration).
		Int("entries_replayed", entriesReplayed).
		Uint64("checkpoint_seqno", checkpointSeqno)

	if err != nil {
		event = l.zlog.Error().
			Str("component", "recovery").
			Dur("duration_ms", duration).
			Err(err)
	}

	event.Msg("recovery completed")
}
