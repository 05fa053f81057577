package bridge

import (
	"encoding/json"
	"fmt"
)

// Kind is the "type" discriminator carried by every bridge message.
type Kind string

const (
	KindGetExpression         Kind = "DESMOS_GET_EXPRESSION"
	KindGetExpressionResponse Kind = "DESMOS_GET_EXPRESSION_RESPONSE"
	KindSetExpression         Kind = "DESMOS_SET_EXPRESSION"
	KindSetExpressionResponse Kind = "DESMOS_SET_EXPRESSION_RESPONSE"
)

// IsResponse reports whether k is one of the two response kinds.
func (k Kind) IsResponse() bool {
	return k == KindGetExpressionResponse || k == KindSetExpressionResponse
}

// ResponseKind returns the response kind paired with a request kind.
func (k Kind) ResponseKind() (Kind, bool) {
	switch k {
	case KindGetExpression:
		return KindGetExpressionResponse, true
	case KindSetExpression:
		return KindSetExpressionResponse, true
	}
	return "", false
}

// Message is one bridge message. Which fields are meaningful depends on Type:
//
//	DESMOS_GET_EXPRESSION           RequestID, ExprID
//	DESMOS_GET_EXPRESSION_RESPONSE  RequestID, Latex (nil encodes as null)
//	DESMOS_SET_EXPRESSION           RequestID, ExprID, Latex
//	DESMOS_SET_EXPRESSION_RESPONSE  RequestID, Success
type Message struct {
	Type      Kind
	RequestID int64
	ExprID    string
	Latex     *string
	Success   bool
}

// GetExpressionRequest builds a DESMOS_GET_EXPRESSION message.
func GetExpressionRequest(requestID int64, exprID string) Message {
	return Message{Type: KindGetExpression, RequestID: requestID, ExprID: exprID}
}

// GetExpressionResponse builds a DESMOS_GET_EXPRESSION_RESPONSE message.
// A nil latex means the page found no such expression.
func GetExpressionResponse(requestID int64, latex *string) Message {
	return Message{Type: KindGetExpressionResponse, RequestID: requestID, Latex: latex}
}

// SetExpressionRequest builds a DESMOS_SET_EXPRESSION message.
func SetExpressionRequest(requestID int64, exprID, latex string) Message {
	return Message{Type: KindSetExpression, RequestID: requestID, ExprID: exprID, Latex: &latex}
}

// SetExpressionResponse builds a DESMOS_SET_EXPRESSION_RESPONSE message.
func SetExpressionResponse(requestID int64, success bool) Message {
	return Message{Type: KindSetExpressionResponse, RequestID: requestID, Success: success}
}

type getRequestWire struct {
	Type      Kind   `json:"type"`
	RequestID int64  `json:"requestId"`
	ExprID    string `json:"exprId"`
}

type getResponseWire struct {
	Type      Kind    `json:"type"`
	RequestID int64   `json:"requestId"`
	Latex     *string `json:"latex"`
}

type setRequestWire struct {
	Type      Kind   `json:"type"`
	RequestID int64  `json:"requestId"`
	ExprID    string `json:"exprId"`
	Latex     string `json:"latex"`
}

type setResponseWire struct {
	Type      Kind  `json:"type"`
	RequestID int64 `json:"requestId"`
	Success   bool  `json:"success"`
}

// MarshalJSON encodes exactly the fields of the message's kind.
func (m Message) MarshalJSON() ([]byte, error) {
	switch m.Type {
	case KindGetExpression:
		return json.Marshal(getRequestWire{Type: m.Type, RequestID: m.RequestID, ExprID: m.ExprID})
	case KindGetExpressionResponse:
		return json.Marshal(getResponseWire{Type: m.Type, RequestID: m.RequestID, Latex: m.Latex})
	case KindSetExpression:
		latex := ""
		if m.Latex != nil {
			latex = *m.Latex
		}
		return json.Marshal(setRequestWire{Type: m.Type, RequestID: m.RequestID, ExprID: m.ExprID, Latex: latex})
	case KindSetExpressionResponse:
		return json.Marshal(setResponseWire{Type: m.Type, RequestID: m.RequestID, Success: m.Success})
	}
	return nil, fmt.Errorf("unknown message type %q", m.Type)
}

// messageWire accepts any of the four shapes. Pointer fields tell "absent"
// apart from zero values.
type messageWire struct {
	Type      Kind    `json:"type"`
	RequestID *int64  `json:"requestId"`
	ExprID    string  `json:"exprId"`
	Latex     *string `json:"latex"`
	Success   *bool   `json:"success"`
}

// UnmarshalJSON decodes a bridge message. Data that is not an object, has an
// unknown type or lacks a requestId is rejected, so unrelated traffic on a
// shared channel never decodes into a Message.
func (m *Message) UnmarshalJSON(data []byte) error {
	var w messageWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	switch w.Type {
	case KindGetExpression, KindGetExpressionResponse, KindSetExpression, KindSetExpressionResponse:
	default:
		return fmt.Errorf("unknown message type %q", w.Type)
	}
	if w.RequestID == nil {
		return fmt.Errorf("%s message without requestId", w.Type)
	}

	*m = Message{Type: w.Type, RequestID: *w.RequestID, ExprID: w.ExprID, Latex: w.Latex}
	if w.Success != nil {
		m.Success = *w.Success
	}
	return nil
}

// Decode parses raw wire data into a Message.
func Decode(data []byte) (Message, error) {
	var m Message
	if err := json.Unmarshal(data, &m); err != nil {
		return Message{}, fmt.Errorf("failed to decode bridge message: %w", err)
	}
	return m, nil
}
