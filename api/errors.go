package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
)

// ErrMalformedResponse is returned when a 2xx response body does not have the
// expected shape.
var ErrMalformedResponse = errors.New("malformed api response")

// RejectedError is a non-2xx answer from the API. Detail and Fields hold the
// server's messages unchanged.
type RejectedError struct {
	Op     string
	Status int
	Detail string
	Fields map[string][]string
}

func (e *RejectedError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s rejected (%d)", e.Op, e.Status)
	if e.Detail != "" {
		b.WriteString(": ")
		b.WriteString(e.Detail)
	}
	for _, field := range e.fieldNames() {
		fmt.Fprintf(&b, "; %s: %s", field, strings.Join(e.Fields[field], " "))
	}
	return b.String()
}

// Messages returns every server message, detail first, then fields in name order.
func (e *RejectedError) Messages() []string {
	var out []string
	if e.Detail != "" {
		out = append(out, e.Detail)
	}
	for _, field := range e.fieldNames() {
		out = append(out, e.Fields[field]...)
	}
	return out
}

// Unauthorized reports whether the server refused the credentials.
func (e *RejectedError) Unauthorized() bool {
	return e.Status == http.StatusUnauthorized || e.Status == http.StatusForbidden
}

func (e *RejectedError) fieldNames() []string {
	names := make([]string, 0, len(e.Fields))
	for name := range e.Fields {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// TransportError is a failure to reach the API or read its answer.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s transport: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// rejection builds a RejectedError from a Django REST style error body:
// {"detail": "..."} and/or {"field": ["msg", ...]} or {"field": "msg"}.
func rejection(op string, status int, body []byte) *RejectedError {
	rej := &RejectedError{Op: op, Status: status}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil {
		if text := strings.TrimSpace(string(body)); text != "" && len(text) <= 512 && !strings.HasPrefix(text, "<") {
			rej.Detail = text
		} else {
			rej.Detail = http.StatusText(status)
		}
		return rej
	}

	for key, value := range raw {
		msgs := messages(value)
		if len(msgs) == 0 {
			continue
		}
		if key == "detail" {
			rej.Detail = strings.Join(msgs, " ")
			continue
		}
		if rej.Fields == nil {
			rej.Fields = make(map[string][]string)
		}
		rej.Fields[key] = msgs
	}
	if rej.Detail == "" && len(rej.Fields) == 0 {
		rej.Detail = http.StatusText(status)
	}
	return rej
}

func messages(value json.RawMessage) []string {
	var one string
	if err := json.Unmarshal(value, &one); err == nil {
		if one == "" {
			return nil
		}
		return []string{one}
	}
	var many []string
	if err := json.Unmarshal(value, &many); err == nil {
		return many
	}
	var nested map[string]json.RawMessage
	if err := json.Unmarshal(value, &nested); err == nil {
		var out []string
		for _, v := range nested {
			out = append(out, messages(v)...)
		}
		sort.Strings(out)
		return out
	}
	return []string{string(value)}
}
