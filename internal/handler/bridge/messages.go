package bridge

import "encoding/json"

// Message types for WebSocket communication
const (
	MsgTypeExec              = "exec"
	MsgTypeResult            = "result"
	MsgTypeRequestPermission = "request_permission"
	MsgTypePermissionResult  = "permission_result"
)

// Result statuses
const (
	StatusOK    = "ok"
	StatusError = "error"
)

// ErrInvalidAction is reported for exec calls naming an unknown action.
const ErrInvalidAction = "Invalid action"

// InboundMessage is anything a client sends over the bridge
type InboundMessage struct {
	Type string `json:"type"`

	// exec
	CallbackID string            `json:"callback_id,omitempty"`
	Action     string            `json:"action,omitempty"`
	Args       []json.RawMessage `json:"args,omitempty"`

	// permission_result
	RequestID string `json:"request_id,omitempty"`
	Granted   bool   `json:"granted,omitempty"`
}

// ResultMessage completes the exec call with the same callback id
type ResultMessage struct {
	Type       string `json:"type"`
	CallbackID string `json:"callback_id"`
	Status     string `json:"status"`
	Message    string `json:"message"`
}

// PermissionRequestMessage asks the client to prompt the user for a grant
type PermissionRequestMessage struct {
	Type       string `json:"type"`
	RequestID  string `json:"request_id"`
	Permission string `json:"permission"`
}

// optString returns positional argument i when it is a JSON string, and ""
// when it is missing, null or of another type.
func optString(args []json.RawMessage, i int) string {
	if i >= len(args) {
		return ""
	}
	var s string
	if err := json.Unmarshal(args[i], &s); err != nil {
		return ""
	}
	return s
}
