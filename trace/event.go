// Package trace is the structured diagnostic pipeline: events are ordered
// key=value string pairs with a severity, buffered on the network goroutine,
// formatted and written by a dedicated pool worker, with size-based rolling,
// duplicate suppression and a latest-event cache for crash snapshots.
package trace

import (
	"fmt"

	"github.com/quarkdb/flux/core"
)

// Severity orders events for filtering. WarnAlways is a warning that must not
// be sampled away by analytics.
type Severity int

const (
	SevDebug      Severity = 5
	SevInfo       Severity = 10
	SevWarn       Severity = 20
	SevWarnAlways Severity = 30
	SevError      Severity = 40
)

func (s Severity) String() string {
	switch s {
	case SevDebug:
		return "5"
	case SevInfo:
		return "10"
	case SevWarn:
		return "20"
	case SevWarnAlways:
		return "30"
	case SevError:
		return "40"
	default:
		return fmt.Sprintf("%d", int(s))
	}
}

// Field is one key=value pair of an event. Order is significant.
type Field struct {
	Key   string
	Value string
}

// Fields is the ordered field list of a formatted event.
type Fields []Field

// Get returns the value of the first field named key.
func (f Fields) Get(key string) (string, bool) {
	for _, kv := range f {
		if kv.Key == key {
			return kv.Value, true
		}
	}
	return "", false
}

// Event is a builder for one trace event. Build it fluently and finish with
// Log:
//
//	trace.New("SlowTask").Detail("Duration", d).Severity(trace.SevWarn).Log(tl)
type Event struct {
	typ            string
	severity       Severity
	fields         Fields
	err            *core.Error
	allowCancelled bool
	trackLatest    bool
	suppressFor    float64
}

// New starts an event of the given type at SevInfo.
func New(typ string) *Event {
	return &Event{typ: typ, severity: SevInfo}
}

// Severity sets the event severity.
func (e *Event) Severity(s Severity) *Event {
	e.severity = s
	return e
}

// Detail appends a key=value field. Values are rendered with fmt.Sprint;
// float64 values use %g to keep timestamps compact.
func (e *Event) Detail(key string, value any) *Event {
	var s string
	switch v := value.(type) {
	case string:
		s = v
	case float64:
		s = fmt.Sprintf("%g", v)
	default:
		s = fmt.Sprint(v)
	}
	e.fields = append(e.fields, Field{Key: key, Value: s})
	return e
}

// Err attaches a runtime error: Error, ErrorCode and ErrorDescription fields.
// An actor_cancelled error suppresses the whole event unless AllowCancelled
// was called; an injected fault downgrades SevError to SevWarnAlways so fault
// injection cannot mask real bugs in analytics.
func (e *Event) Err(err *core.Error) *Event {
	e.err = err
	return e
}

// AllowCancelled opts in to logging events that carry actor_cancelled, which
// is normally a benign end-of-life signal.
func (e *Event) AllowCancelled() *Event {
	e.allowCancelled = true
	return e
}

// TrackLatest keeps the formatted event in the log's latest-event cache,
// keyed by type, for crash-reporting snapshots.
func (e *Event) TrackLatest() *Event {
	e.trackLatest = true
	return e
}

// SuppressFor drops duplicate events of this type for the given window in
// seconds; the count of suppressed duplicates is attached to the next event
// of the type that passes.
func (e *Event) SuppressFor(seconds float64) *Event {
	e.suppressFor = seconds
	return e
}

// Log finishes the event and hands it to the log. Returns false when the
// event was suppressed or dropped.
func (e *Event) Log(tl *Log) bool {
	return tl.append(e)
}
