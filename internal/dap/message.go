// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.

package dap

import (
	"bytes"
	"fmt"
	"strconv"
	"sync/atomic"

	json "github.com/goccy/go-json"
	"github.com/google/go-dap"
)

const (
	messageTypeRequest  = "request"
	messageTypeResponse = "response"
	messageTypeEvent    = "event"
)

// RawMessage is a DAP message kept in its wire form.
//
// Messages from the debugger backend, and editor requests go-dap does not know about,
// are carried as RawMessage values. Bodies the relay does not look at are forwarded
// byte-for-byte. Only the header fields are parsed up front.
type RawMessage struct {
	Seq        int
	Type       string
	Command    string
	Event      string
	RequestSeq int
	Success    bool

	// All top-level fields of the message, as received.
	fields map[string]json.RawMessage
}

type messageHeader struct {
	Seq        int    `json:"seq"`
	Type       string `json:"type"`
	Command    string `json:"command"`
	Event      string `json:"event"`
	RequestSeq int    `json:"request_seq"`
	Success    bool   `json:"success"`
}

// ParseRawMessage parses a single JSON encoded DAP message.
// The message must be a JSON object carrying a known "type" discriminator.
func ParseRawMessage(data []byte) (*RawMessage, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("%w: empty message", ErrMalformedMessage)
	}

	fields := make(map[string]json.RawMessage)
	if err := json.Unmarshal(trimmed, &fields); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedMessage, err)
	}

	var header messageHeader
	if err := json.Unmarshal(trimmed, &header); err != nil {
		return nil, fmt.Errorf("%w: invalid message header: %w", ErrMalformedMessage, err)
	}

	switch header.Type {
	case messageTypeRequest:
		if header.Command == "" {
			return nil, fmt.Errorf("%w: request without a command", ErrMalformedMessage)
		}
	case messageTypeResponse:
		// Some backends omit the command on responses; the relay forwards them anyway.
	case messageTypeEvent:
		if header.Event == "" {
			return nil, fmt.Errorf("%w: event without an event name", ErrMalformedMessage)
		}
	case "":
		return nil, fmt.Errorf("%w: missing message type", ErrMalformedMessage)
	default:
		return nil, fmt.Errorf("%w: unknown message type '%s'", ErrMalformedMessage, header.Type)
	}

	return &RawMessage{
		Seq:        header.Seq,
		Type:       header.Type,
		Command:    header.Command,
		Event:      header.Event,
		RequestSeq: header.RequestSeq,
		Success:    header.Success,
		fields:     fields,
	}, nil
}

func (m *RawMessage) GetSeq() int {
	return m.Seq
}

// SetSeq overwrites the sequence number, both in the parsed header and in the wire form.
func (m *RawMessage) SetSeq(seq int) {
	m.Seq = seq
	m.fields["seq"] = json.RawMessage(strconv.Itoa(seq))
}

// Body returns the raw "body" field, or nil if the message has none.
func (m *RawMessage) Body() json.RawMessage {
	return m.fields["body"]
}

// Arguments returns the raw "arguments" field, or nil if the message has none.
func (m *RawMessage) Arguments() json.RawMessage {
	return m.fields["arguments"]
}

// DecodeBody unmarshals the message body into v.
func (m *RawMessage) DecodeBody(v any) error {
	body := m.Body()
	if len(body) == 0 {
		return fmt.Errorf("%s message has no body", m.describe())
	}
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("could not decode body of %s message: %w", m.describe(), err)
	}
	return nil
}

// SetBody replaces the message body with the JSON encoding of v.
func (m *RawMessage) SetBody(v any) error {
	body, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("could not encode body of %s message: %w", m.describe(), err)
	}
	m.fields["body"] = body
	return nil
}

func (m *RawMessage) MarshalJSON() ([]byte, error) {
	return json.Marshal(m.fields)
}

func (m *RawMessage) describe() string {
	switch m.Type {
	case messageTypeEvent:
		return fmt.Sprintf("'%s' event", m.Event)
	default:
		return fmt.Sprintf("'%s' %s", m.Command, m.Type)
	}
}

var _ dap.Message = (*RawMessage)(nil)

// NormalizeSeq resets the sequence number of a message received from the backend.
// The backend's own numbering must never reach the editor's channel.
func NormalizeSeq(msg *RawMessage) *RawMessage {
	msg.SetSeq(0)
	return msg
}

// sequenceCounter generates sequence numbers for messages the relay sends to the editor on its own behalf.
type sequenceCounter struct {
	counter atomic.Int64
}

func (c *sequenceCounter) Next() int {
	return int(c.counter.Add(1))
}

// pendingRequest is a request forwarded to the backend that has not been answered yet.
type pendingRequest struct {
	command string
	request dap.Message
}

// pendingRequests tracks requests forwarded to the backend that have not been answered yet,
// keyed by the editor's request sequence number. It is only accessed from the session loop.
type pendingRequests struct {
	requests map[int]pendingRequest
}

func newPendingRequests() *pendingRequests {
	return &pendingRequests{
		requests: make(map[int]pendingRequest),
	}
}

func (p *pendingRequests) Add(seq int, command string, request dap.Message) {
	p.requests[seq] = pendingRequest{command: command, request: request}
}

// Remove deletes the request with the given sequence number and returns it.
func (p *pendingRequests) Remove(seq int) (pendingRequest, bool) {
	pr, found := p.requests[seq]
	if found {
		delete(p.requests, seq)
	}
	return pr, found
}

func (p *pendingRequests) Len() int {
	return len(p.requests)
}

// Drain removes all pending requests and returns them.
func (p *pendingRequests) Drain() map[int]pendingRequest {
	drained := p.requests
	p.requests = make(map[int]pendingRequest)
	return drained
}
