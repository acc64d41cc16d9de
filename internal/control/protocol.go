// Package control implements the Control Server of spec section 4.6: a
// Unix domain stream socket, one newline-terminated JSON request answered
// by one newline-terminated JSON response per connection.
package control

import (
	"encoding/json"

	"github.com/adasa/adasa/internal/adasaerr"
)

// Request is the wire envelope for every command (spec section 4.6).
// Command is left as a single-key object (`{"Start": {...}}`) so dispatch
// can decide the handler before fully decoding the variant's payload,
// mirroring the externally-tagged enum shape of the original protocol.
type Request struct {
	ID      uint64                     `json:"id"`
	Command map[string]json.RawMessage `json:"command"`
}

// variant returns the request's single command name and raw payload.
func (r Request) variant() (string, json.RawMessage, error) {
	if len(r.Command) != 1 {
		return "", nil, adasaerr.New(adasaerr.ProtocolError, "command must have exactly one variant, got %d", len(r.Command))
	}
	for name, payload := range r.Command {
		return name, payload, nil
	}
	panic("unreachable")
}

// Response is the wire envelope for every reply (spec section 4.6). Result
// id MUST equal the request id.
type Response struct {
	ID     uint64 `json:"id"`
	Result Result `json:"result"`
}

// Result is {"Ok": <data>} on success or {"Err": <message>} on failure.
type Result struct {
	Ok  any    `json:"Ok,omitempty"`
	Err string `json:"Err,omitempty"`
}

func ok(id uint64, data any) Response  { return Response{ID: id, Result: Result{Ok: data}} }
func errResp(id uint64, err error) Response {
	return Response{ID: id, Result: Result{Err: err.Error()}}
}

// StartParams is the Start command payload.
type StartParams struct {
	Script    string            `json:"script"`
	Name      string            `json:"name,omitempty"`
	Instances int               `json:"instances,omitempty"`
	Cwd       string            `json:"cwd,omitempty"`
	Env       map[string]string `json:"env,omitempty"`
	Args      []string          `json:"args,omitempty"`
}

// StartResult is returned for a successful Start: the first replica's id
// and the number of replicas actually spawned.
type StartResult struct {
	ID    uint64 `json:"id"`
	Count int    `json:"count"`
}

// StopParams is the Stop command payload.
type StopParams struct {
	ID    uint64 `json:"id"`
	Force bool   `json:"force,omitempty"`
}

// RestartParams is the Restart command payload. Target is a decimal id or a
// process/group name; Rolling selects RollingRestart over the base name.
type RestartParams struct {
	Target  string `json:"target"`
	Rolling bool   `json:"rolling,omitempty"`
}

// DeleteParams is the Delete command payload. By id it deletes one entry;
// by name it deletes every replica sharing that base name.
type DeleteParams struct {
	Target string `json:"target"`
}

// ListEntry is one row of the List response.
type ListEntry struct {
	ID    uint64 `json:"id"`
	Name  string `json:"name"`
	State string `json:"state"`
	Stats any    `json:"stats"`
}

// LogsParams is the Logs command payload.
type LogsParams struct {
	ID     uint64 `json:"id"`
	Lines  int    `json:"lines,omitempty"`
	Follow bool   `json:"follow,omitempty"`
}

// LogsResult carries the tailed lines. Follow under the fixed
// one-request/one-response contract (spec section 4.6) cannot stream
// indefinitely; Truncated reports whether the current log file holds more
// lines than the requested tail returned.
type LogsResult struct {
	Lines     []string `json:"lines"`
	Truncated bool     `json:"truncated"`
}

// ConfigPathParams is the StartFromConfig/ReloadConfig payload. ApplyDiff is
// only consulted by ReloadConfig: false (the default) spawns only configs
// whose name isn't already registered; true additionally restarts any
// already-registered process whose on-disk config has changed.
type ConfigPathParams struct {
	Path      string `json:"path"`
	ApplyDiff bool   `json:"apply_diff,omitempty"`
}

// ConfigResult reports aggregated success/failure when spawning from a
// config file (spec section 4.6, the Config collaborator contract).
type ConfigResult struct {
	Spawned int      `json:"spawned"`
	Failed  int      `json:"failed"`
	Errors  []string `json:"errors,omitempty"`
}

// DaemonParams selects the Daemon sub-action.
type DaemonParams struct {
	Action string `json:"action"` // "start" | "stop" | "status"
}

// DaemonStatus is the Daemon{Status} response payload.
type DaemonStatus struct {
	PID          int   `json:"pid"`
	UptimeSecs   int64 `json:"uptime_secs"`
	ProcessCount int   `json:"process_count"`
}

func unsupportedVariant(name string) error {
	return adasaerr.New(adasaerr.ProtocolError, "unsupported command %q", name)
}
