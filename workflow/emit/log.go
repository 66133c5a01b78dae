package emit

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"sync"
	"time"
)

// LogEmitter writes events as structured log lines.
//
// Text mode (default):
//
//	2025-01-02T15:04:05Z [stage_start] workflow=wf-1 step=1 stage=research meta={"worker":"researcher"}
//
// JSON mode, one object per line:
//
//	{"time":"2025-01-02T15:04:05Z","workflow_id":"wf-1","step":1,"stage":"research","msg":"stage_start","meta":{"worker":"researcher"}}
//
// Writes are serialized so lines from concurrent runs never interleave.
type LogEmitter struct {
	mu       sync.Mutex
	writer   io.Writer
	jsonMode bool
	now      func() time.Time
}

// NewLogEmitter creates a LogEmitter writing to writer (os.Stdout when nil).
func NewLogEmitter(writer io.Writer, jsonMode bool) *LogEmitter {
	if writer == nil {
		writer = os.Stdout
	}
	return &LogEmitter{
		writer:   writer,
		jsonMode: jsonMode,
		now:      time.Now,
	}
}

// Emit writes a single event line.
func (l *LogEmitter) Emit(event Event) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.jsonMode {
		l.emitJSON(event)
	} else {
		l.emitText(event)
	}
}

func (l *LogEmitter) emitJSON(event Event) {
	data, err := json.Marshal(struct {
		Time       string                 `json:"time"`
		WorkflowID string                 `json:"workflow_id"`
		Step       int                    `json:"step"`
		Stage      string                 `json:"stage,omitempty"`
		Msg        string                 `json:"msg"`
		Meta       map[string]interface{} `json:"meta,omitempty"`
	}{
		Time:       l.now().UTC().Format(time.RFC3339),
		WorkflowID: event.WorkflowID,
		Step:       event.Step,
		Stage:      event.Stage,
		Msg:        event.Msg,
		Meta:       event.Meta,
	})
	if err != nil {
		fmt.Fprintf(l.writer, "{\"error\":\"failed to marshal event: %v\"}\n", err)
		return
	}
	fmt.Fprintf(l.writer, "%s\n", data)
}

func (l *LogEmitter) emitText(event Event) {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s [%s] workflow=%s step=%d",
		l.now().UTC().Format(time.RFC3339), event.Msg, event.WorkflowID, event.Step)
	if event.Stage != "" {
		fmt.Fprintf(&sb, " stage=%s", event.Stage)
	}

	if len(event.Meta) > 0 {
		if metaJSON, err := json.Marshal(event.Meta); err == nil {
			fmt.Fprintf(&sb, " meta=%s", metaJSON)
		} else {
			keys := make([]string, 0, len(event.Meta))
			for k := range event.Meta {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			for _, k := range keys {
				fmt.Fprintf(&sb, " %s=%v", k, event.Meta[k])
			}
		}
	}

	sb.WriteByte('\n')
	_, _ = io.WriteString(l.writer, sb.String())
}
