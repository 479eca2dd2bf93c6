package common

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"reward-bot/types_utils"
)

// LogRecord is one transaction's execution trace as delivered by the stream.
type LogRecord struct {
	Signature string
	Err       *string
	Logs      []string
	Slot      uint64
}

// Failed reports whether the original transaction failed on chain.
func (r LogRecord) Failed() bool {
	return r.Err != nil
}

type wireRecord struct {
	Signature *string         `json:"signature"`
	Err       json.RawMessage `json:"err"`
	Logs      *[]string       `json:"logs"`
}

// ParseLogRecord decodes one raw stream frame. Both bare records and
// logsNotification envelopes are accepted.
func ParseLogRecord(raw []byte) (LogRecord, error) {
	var frame types_utils.Frame
	if err := json.Unmarshal(raw, &frame); err != nil {
		return LogRecord{}, newParseError(raw, err)
	}

	if frame.IsErrorReply() {
		return LogRecord{}, fmt.Errorf("%w: request %d rejected: %s", ErrConnect, *frame.ID, frame.Error)
	}
	if frame.IsAck() {
		return LogRecord{}, ErrSubscriptionAck
	}

	if frame.IsNotification() {
		var w wireRecord
		if err := json.Unmarshal(frame.Params.Result.Value, &w); err != nil {
			return LogRecord{}, newParseError(raw, err)
		}
		rec, err := w.record()
		if err != nil {
			return LogRecord{}, newParseError(raw, err)
		}
		rec.Slot = frame.Params.Result.Context.Slot
		return rec, nil
	}

	rec, err := wireRecord{Signature: frame.Signature, Err: frame.Err, Logs: frame.Logs}.record()
	if err != nil {
		return LogRecord{}, newParseError(raw, err)
	}
	return rec, nil
}

func (w wireRecord) record() (LogRecord, error) {
	if w.Signature == nil || *w.Signature == "" {
		return LogRecord{}, errors.New("missing signature")
	}
	if w.Logs == nil {
		return LogRecord{}, errors.New("missing logs")
	}
	rec := LogRecord{
		Signature: *w.Signature,
		Logs:      *w.Logs,
	}
	txErr, err := decodeTxError(w.Err)
	if err != nil {
		return LogRecord{}, err
	}
	rec.Err = txErr
	return rec, nil
}

// decodeTxError maps the err field to a string. Solana sends objects such as
// {"InstructionError":[0,"Custom"]}; those are kept as compact JSON.
func decodeTxError(raw json.RawMessage) (*string, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, nil
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil, err
		}
		return &s, nil
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return nil, err
	}
	s := buf.String()
	return &s, nil
}
