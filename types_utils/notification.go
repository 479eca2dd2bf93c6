package types_utils

import "encoding/json"

const LogsNotificationMethod = "logsNotification"

// RpcResponseContext is the slot context Solana attaches to subscription results.
type RpcResponseContext struct {
	Slot uint64 `json:"slot"`
}

// LogsResult is params.result of a logsNotification.
type LogsResult struct {
	Context RpcResponseContext `json:"context"`
	Value   json.RawMessage    `json:"value"`
}

type LogsParams struct {
	Result       LogsResult `json:"result"`
	Subscription uint64     `json:"subscription"`
}

// Frame covers every shape the log stream sends: a bare record, a
// logsNotification envelope, or the reply to logsSubscribe.
type Frame struct {
	JSONRPC string          `json:"jsonrpc,omitempty"`
	ID      *uint64         `json:"id,omitempty"`
	Method  string          `json:"method,omitempty"`
	Params  *LogsParams     `json:"params,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   json.RawMessage `json:"error,omitempty"`

	Signature *string         `json:"signature,omitempty"`
	Err       json.RawMessage `json:"err,omitempty"`
	Logs      *[]string       `json:"logs,omitempty"`
}

// IsNotification reports whether the frame wraps a record in a subscription envelope.
func (f *Frame) IsNotification() bool {
	return f.Method == LogsNotificationMethod && f.Params != nil
}

// IsAck reports whether the frame is the numeric subscription id returned by logsSubscribe.
func (f *Frame) IsAck() bool {
	if f.ID == nil || len(f.Result) == 0 {
		return false
	}
	var id uint64
	return json.Unmarshal(f.Result, &id) == nil
}

// IsErrorReply reports whether the frame is a JSON-RPC error answering one of our requests.
func (f *Frame) IsErrorReply() bool {
	return f.ID != nil && len(f.Error) > 0 && string(f.Error) != "null"
}

// SubscribeRequest is the JSON-RPC request sent once after the stream is opened.
type SubscribeRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      uint64 `json:"id"`
	Method  string `json:"method"`
	Params  []any  `json:"params"`
}

func NewLogsSubscribe(id uint64, mentions []string, commitment string) SubscribeRequest {
	var filter any = "all"
	if len(mentions) > 0 {
		filter = map[string][]string{"mentions": mentions}
	}
	return SubscribeRequest{
		JSONRPC: "2.0",
		ID:      id,
		Method:  "logsSubscribe",
		Params:  []any{filter, map[string]string{"commitment": commitment}},
	}
}
