// Package logging routes the standard logger to the escombro log file.
package logging

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/mwiater/escombro/internal/util"
)

var (
	mu      sync.Mutex
	logFile *os.File
)

// Init points the standard logger at logPath. When echo is set, entries are
// also written to stderr. An empty logPath without echo discards output.
func Init(logPath string, echo bool) error {
	mu.Lock()
	defer mu.Unlock()

	if logFile != nil {
		_ = logFile.Close()
		logFile = nil
	}

	var writers []io.Writer
	if echo {
		writers = append(writers, os.Stderr)
	}

	if logPath != "" {
		if dir := filepath.Dir(logPath); dir != "" && dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return err
			}
		}
		file, err := os.OpenFile(logPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return err
		}
		logFile = file
		writers = append(writers, logFile)
	}

	if len(writers) == 0 {
		log.SetOutput(io.Discard)
		return nil
	}
	log.SetOutput(io.MultiWriter(writers...))
	return nil
}

// Close restores stderr logging and releases the log file.
func Close() error {
	mu.Lock()
	defer mu.Unlock()
	if logFile == nil {
		return nil
	}
	log.SetOutput(os.Stderr)
	err := logFile.Close()
	logFile = nil
	return err
}

// LogEvent records a normal step of the session, e.g. a fold or a reset.
func LogEvent(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	log.Println(msg)
}

// LogWarn records a recoverable problem, such as an unreadable snapshot.
func LogWarn(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	log.Println("[WARN] " + msg)
}

// LogRequest records one leg of a backend exchange.
func LogRequest(direction, endpoint, requestID string, payload any) {
	msg := buildRequestMessage(direction, endpoint, requestID, payload)
	log.Println(msg)
}

func buildRequestMessage(direction, endpoint, requestID string, payload any) string {
	dir := strings.TrimSpace(direction)
	if dir != "" {
		dir = strings.ToUpper(dir)
	}
	endpointValue := strings.TrimSpace(endpoint)
	if endpointValue == "" {
		endpointValue = "unknown"
	}
	parts := []string{fmt.Sprintf("[%s]", dir)}
	parts = append(parts, fmt.Sprintf("endpoint=%s", endpointValue))
	if id := strings.TrimSpace(requestID); id != "" {
		parts = append(parts, fmt.Sprintf("request_id=%s", id))
	}
	parts = append(parts, fmt.Sprintf("payload=%s", formatPayload(payload)))
	return strings.Join(parts, " ")
}

// maxPayloadRunes caps how much of a payload reaches the log line.
const maxPayloadRunes = 512

// formatPayload renders a request or response body for the log. Binary
// bodies (uploaded images, CSV downloads with odd encodings) are reduced to
// their size.
func formatPayload(payload any) string {
	var text string
	switch v := payload.(type) {
	case nil:
		return "null"
	case string:
		if strings.TrimSpace(v) == "" {
			return `""`
		}
		text = v
	case []byte:
		if len(v) == 0 {
			return "[]"
		}
		if !utf8.Valid(v) {
			return fmt.Sprintf("<%d bytes>", len(v))
		}
		text = string(v)
	case fmt.Stringer:
		text = v.String()
	default:
		data, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("%v", v)
		}
		text = string(data)
	}
	return util.TruncateRunes(text, maxPayloadRunes)
}
