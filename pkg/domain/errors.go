package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when a referenced node, port or connection is absent.
	ErrNotFound = errors.New("not found")

	// ErrInvalidType is returned for an unregistered node type tag.
	ErrInvalidType = errors.New("invalid node type")

	// ErrTypeMismatch is returned when a property value does not match its declared type.
	ErrTypeMismatch = errors.New("type mismatch")

	// ErrPortCapacity is returned when a port cannot take another connection.
	ErrPortCapacity = errors.New("port capacity exceeded")

	// ErrSelfLoop is returned when a node type forbids connecting a node to itself.
	ErrSelfLoop = errors.New("self loop not allowed")

	// ErrClipboardFormat is returned for a structurally invalid clipboard payload.
	ErrClipboardFormat = errors.New("invalid clipboard payload")

	// ErrCorruptFile is returned when a persisted document violates structural rules.
	ErrCorruptFile = errors.New("corrupt document file")

	// ErrUnsupportedVersion is returned for a persisted format this build cannot read.
	ErrUnsupportedVersion = errors.New("unsupported format version")

	// ErrDocumentNotFound is returned by stores for a key without saved content.
	ErrDocumentNotFound = errors.New("document not found")
)

// NotFoundError names the missing entity.
type NotFoundError struct {
	Kind string // "node", "port", "connection"
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Kind, e.ID)
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// NodeNotFound builds a NotFoundError for a node.
func NodeNotFound(id NodeID) error {
	return &NotFoundError{Kind: "node", ID: string(id)}
}

// PortNotFound builds a NotFoundError for a port reference.
func PortNotFound(ref PortRef) error {
	return &NotFoundError{Kind: "port", ID: string(ref.Node) + "." + string(ref.Port)}
}

// ConnectionNotFound builds a NotFoundError for a connection.
func ConnectionNotFound(id ConnectionID) error {
	return &NotFoundError{Kind: "connection", ID: string(id)}
}

// InvalidTypeError reports an unknown type tag.
type InvalidTypeError struct {
	Type TypeTag
}

func (e *InvalidTypeError) Error() string {
	return fmt.Sprintf("unknown node type %q", e.Type)
}

func (e *InvalidTypeError) Unwrap() error { return ErrInvalidType }

// TypeMismatchError reports a property value that failed schema validation.
type TypeMismatchError struct {
	Node   NodeID
	Key    string
	Reason string
}

func (e *TypeMismatchError) Error() string {
	if e.Node == "" {
		return fmt.Sprintf("property %q: %s", e.Key, e.Reason)
	}
	return fmt.Sprintf("node %q property %q: %s", e.Node, e.Key, e.Reason)
}

func (e *TypeMismatchError) Unwrap() error { return ErrTypeMismatch }

// PortCapacityError reports a rejected connection on a saturated port.
type PortCapacityError struct {
	Port   PortRef
	Limit  int
	Reason string
}

func (e *PortCapacityError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("port %s.%s: %s", e.Port.Node, e.Port.Port, e.Reason)
	}
	return fmt.Sprintf("port %s.%s accepts at most %d connection(s)", e.Port.Node, e.Port.Port, e.Limit)
}

func (e *PortCapacityError) Unwrap() error { return ErrPortCapacity }

// SelfLoopError reports a connection from a node to itself.
type SelfLoopError struct {
	Node NodeID
	Type TypeTag
}

func (e *SelfLoopError) Error() string {
	return fmt.Sprintf("node %q of type %q cannot connect to itself", e.Node, e.Type)
}

func (e *SelfLoopError) Unwrap() error { return ErrSelfLoop }

// FormatError wraps a decoding failure with one of the format sentinels
// (ErrClipboardFormat, ErrCorruptFile, ErrUnsupportedVersion).
type FormatError struct {
	Kind error
	Msg  string
	Err  error
}

func (e *FormatError) Error() string {
	msg := e.Kind.Error()
	if e.Msg != "" {
		msg += ": " + e.Msg
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap exposes both the sentinel and the underlying cause.
func (e *FormatError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// Formatf builds a FormatError of the given kind.
func Formatf(kind error, format string, args ...any) error {
	return &FormatError{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// WrapFormat tags err with a format sentinel.
func WrapFormat(kind error, msg string, err error) error {
	return &FormatError{Kind: kind, Msg: msg, Err: err}
}
