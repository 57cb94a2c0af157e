// Package tools holds small logging helpers shared by the transports:
// stream wrappers that mirror transferred bytes into a debug logger and
// a sanitizer for untrusted strings in log lines.
package tools

import (
	"io"
	"log/slog"
	"net/http"
)

// LogReader mirrors everything read through it into a debug logger.
type LogReader struct {
	Reader io.Reader
	logger *slog.Logger
}

func (rw *LogReader) Read(b []byte) (int, error) {
	n, err := rw.Reader.Read(b)
	if rw.logger != nil && n > 0 { // Log only if n > 0 to avoid logging empty reads
		rw.logger.Debug("transfer read", "body", IsPrintable(b[:n]))
	}
	return n, err
}

func NewLogReader(r io.Reader, logger *slog.Logger) *LogReader {
	return &LogReader{Reader: r, logger: logger}
}

// LogWriter mirrors everything written through it into a debug logger.
type LogWriter struct {
	Writer io.Writer
	logger *slog.Logger
}

func (rw *LogWriter) Write(b []byte) (int, error) {
	if rw.logger != nil {
		rw.logger.Debug("transfer write", "body", IsPrintable(b))
	}
	return rw.Writer.Write(b)
}

func NewLogWriter(w io.Writer, logger *slog.Logger) *LogWriter {
	return &LogWriter{Writer: w, logger: logger}
}

// HttpResponseWriter mirrors response bodies into a debug logger while
// delegating to the wrapped http.ResponseWriter.
type HttpResponseWriter struct {
	http.ResponseWriter
	logger *slog.Logger
}

func (rw *HttpResponseWriter) Write(b []byte) (int, error) {
	if rw.logger != nil {
		rw.logger.Debug("response", "body", IsPrintable(b))
	}
	return rw.ResponseWriter.Write(b)
}

func NewHttpResponseWriter(w http.ResponseWriter, logger *slog.Logger) *HttpResponseWriter {
	return &HttpResponseWriter{ResponseWriter: w, logger: logger}
}
