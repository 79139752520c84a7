package event

import (
	"encoding/json"
	"time"
)

// Encode marshals an event into its flat JSON wire form: correlation context
// keys first, then the typed payload fields, then "type" and "timestamp".
// Payload fields win over context keys of the same name, and "type" and
// "timestamp" always win, so a context entry can never spoof them.
// Durations encode as nanoseconds (the encoding/json default for
// time.Duration); timestamps encode as RFC 3339 with nanoseconds in UTC.
func Encode(e Event) ([]byte, error) {
	payload, err := json.Marshal(e)
	if err != nil {
		return nil, err
	}

	fields := make(map[string]any)
	if err := json.Unmarshal(payload, &fields); err != nil {
		return nil, err
	}

	out := make(map[string]any, len(fields)+2)
	for k, v := range e.Context() {
		out[k] = v
	}
	for k, v := range fields {
		out[k] = v
	}
	out["type"] = e.EventType()
	out["timestamp"] = e.Timestamp().UTC().Format(time.RFC3339Nano)

	return json.Marshal(out)
}
