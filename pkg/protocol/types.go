package protocol

import (
	"bytes"
	"encoding/json"
	"errors"

	"github.com/sourcegraph/jsonrpc2"
)

const JSONRPCVersion = "2.0"

var ErrInvalidID = errors.New("id must be a string, a number or null")

// JSONRPCRequest is one line read from the agent. ID keeps the raw bytes of
// the id so that any JSON number or string is echoed back unchanged.
type JSONRPCRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// IsNotification reports whether the request carries no id (absent or null).
func (r *JSONRPCRequest) IsNotification() bool {
	return len(r.ID) == 0 || bytes.Equal(r.ID, []byte("null"))
}

// ValidateID rejects ids that are neither strings, numbers nor null.
func (r *JSONRPCRequest) ValidateID() error {
	if r.IsNotification() {
		return nil
	}
	var v interface{}
	if err := json.Unmarshal(r.ID, &v); err != nil {
		return ErrInvalidID
	}
	switch v.(type) {
	case string, float64:
		return nil
	default:
		return ErrInvalidID
	}
}

// HasParams reports whether params is present and not null.
func (r *JSONRPCRequest) HasParams() bool {
	return len(r.Params) > 0 && !bytes.Equal(r.Params, []byte("null"))
}

// JSONRPCResponse is the envelope written back to the agent. A nil ID is
// written as "id": null, which is what responses to unparseable lines and
// notifications carry.
type JSONRPCResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *jsonrpc2.Error `json:"error,omitempty"`
}

func NewResult(id json.RawMessage, result interface{}) (*JSONRPCResponse, error) {
	data, err := json.Marshal(result)
	if err != nil {
		return nil, err
	}
	return &JSONRPCResponse{
		JSONRPC: JSONRPCVersion,
		ID:      id,
		Result:  data,
	}, nil
}

func NewError(id json.RawMessage, code int64, message string) *JSONRPCResponse {
	return &JSONRPCResponse{
		JSONRPC: JSONRPCVersion,
		ID:      id,
		Error: &jsonrpc2.Error{
			Code:    code,
			Message: message,
		},
	}
}

// RequestID returns the correlation id of req, or nil for notifications.
func RequestID(req *JSONRPCRequest) json.RawMessage {
	if req == nil || req.IsNotification() {
		return nil
	}
	return req.ID
}
