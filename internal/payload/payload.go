// Package payload renders the JSON envelopes every tool returns.
//
// Success payloads are {"status":"success",...}, failures are
// {"status":"error","error_type":...,"message":...}. Field order is
// deterministic so identical inputs produce identical strings.
package payload

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"sort"
	"strings"
)

// Typer is implemented by errors that carry their own taxonomy name.
type Typer interface {
	ErrorType() string
}

type taggedError struct {
	typ string
	msg string
}

func (e *taggedError) Error() string     { return e.msg }
func (e *taggedError) ErrorType() string { return e.typ }

// E builds an error that names its own taxonomy type.
func E(errType, format string, args ...any) error {
	return &taggedError{typ: errType, msg: fmt.Sprintf(format, args...)}
}

// OK renders a success envelope. The status field comes first, the
// remaining fields follow in sorted key order. Values that cannot be
// marshaled are stringified instead of failing the whole envelope.
func OK(fields map[string]any) string {
	var b strings.Builder
	b.WriteString(`{"status":"success"`)
	keys := make([]string, 0, len(fields))
	for k := range fields {
		if k == "status" {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		writeField(&b, k, fields[k])
	}
	b.WriteByte('}')
	return b.String()
}

// Err renders an error envelope with an explicit taxonomy name.
func Err(errType, message string) string {
	var b strings.Builder
	b.WriteString(`{"status":"error"`)
	writeField(&b, "error_type", errType)
	writeField(&b, "message", message)
	b.WriteByte('}')
	return b.String()
}

// FromError renders an error envelope for err, resolving the taxonomy
// name via TypeOf.
func FromError(err error) string {
	return Err(TypeOf(err), err.Error())
}

// TypeOf resolves the taxonomy name for err. Errors implementing Typer
// name themselves; a few well-known conditions map to fixed names; the
// fallback is the concrete Go type name.
func TypeOf(err error) string {
	var t Typer
	if errors.As(err, &t) {
		return t.ErrorType()
	}
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, context.Canceled):
		return "canceled"
	case errors.Is(err, fs.ErrNotExist):
		return "not_found"
	case errors.Is(err, fs.ErrExist):
		return "already_exists"
	}
	return typeName(err)
}

func writeField(b *strings.Builder, key string, value any) {
	kb, _ := json.Marshal(key)
	vb, err := json.Marshal(value)
	if err != nil {
		vb, _ = json.Marshal(fmt.Sprint(value))
	}
	b.WriteByte(',')
	b.Write(kb)
	b.WriteByte(':')
	b.Write(vb)
}

func typeName(err error) string {
	name := fmt.Sprintf("%T", err)
	name = strings.TrimPrefix(name, "*")
	if i := strings.LastIndex(name, "."); i >= 0 {
		name = name[i+1:]
	}
	return name
}
