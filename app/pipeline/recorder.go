package pipeline

import (
	"encoding/json"
	"log/slog"
	"time"

	"github.com/jsnider89/ai-news-digest/app/database"
)

// Recorder writes one run's structured events to the run_logs table, the
// in-process ring buffer, and the process logger. It satisfies the AI
// cascade's event sink.
type Recorder struct {
	runID  string
	repo   database.RunRepository
	buffer *LogBuffer
}

func NewRecorder(runID string, repo database.RunRepository, buffer *LogBuffer) *Recorder {
	return &Recorder{runID: runID, repo: repo, buffer: buffer}
}

func (r *Recorder) Info(message string, context map[string]interface{}) {
	r.Event("info", message, context)
}

func (r *Recorder) Warn(message string, context map[string]interface{}) {
	r.Event("warn", message, context)
}

func (r *Recorder) Error(message string, context map[string]interface{}) {
	r.Event("error", message, context)
}

// Event persists a single entry. Context values are JSON-encoded and the
// encoded text is redacted; a persistence failure is reported to the process
// log and the entry still reaches the ring buffer.
func (r *Recorder) Event(level, message string, context map[string]interface{}) {
	now := time.Now().UTC()
	message = Redact(message)

	var contextJSON string
	if len(context) > 0 {
		if encoded, err := json.Marshal(context); err == nil {
			contextJSON = Redact(string(encoded))
		}
	}

	entry := database.RunLog{
		RunID:       r.runID,
		TS:          now,
		Level:       level,
		Message:     message,
		ContextJSON: contextJSON,
	}
	if err := r.repo.AppendRunLogs([]database.RunLog{entry}); err != nil {
		slog.Error("Failed to persist run log", "run_id", r.runID, "error", err)
	}

	buffered := message
	if contextJSON != "" {
		buffered = message + " " + contextJSON
	}
	r.buffer.Push(LogEntry{
		Timestamp: now,
		Level:     level,
		Message:   buffered,
		RunID:     r.runID,
	})

	args := []interface{}{"run_id", r.runID}
	for k, v := range context {
		args = append(args, k, v)
	}
	switch level {
	case "error":
		slog.Error(message, args...)
	case "warn":
		slog.Warn(message, args...)
	default:
		slog.Info(message, args...)
	}
}
