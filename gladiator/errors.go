package gladiator

import "fmt"

// CheckErrorKind enumerates the latched error cases IncomingCheck can
// produce. IncomingCheck tests recursion first, then permission, extension
// permission, extension id parsing, and extension attribute validation.
type CheckErrorKind int

const (
	ErrKindPermissionDenied CheckErrorKind = iota + 1
	ErrKindExtPermissionNotMatched
	ErrKindRecursionEchoElement
	ErrKindInvalidExtID
	ErrKindExtCheckError
)

// IncomingCheckError is the first-wins latched error of the IncomingCheck
// consumer. Compare with errors.Is against one of the Err* sentinels below;
// RecursionEchoElement errors carry a Depth, so compare their Kind via
// errors.As when the depth matters.
type IncomingCheckError struct {
	Kind  CheckErrorKind
	Depth int
	Cause error
}

func (e *IncomingCheckError) Error() string {
	switch e.Kind {
	case ErrKindPermissionDenied:
		return "gladiator: permission denied"
	case ErrKindExtPermissionNotMatched:
		return "gladiator: extension permission not matched"
	case ErrKindRecursionEchoElement:
		return fmt.Sprintf("gladiator: recursive echo element at depth %d", e.Depth)
	case ErrKindInvalidExtID:
		return fmt.Sprintf("gladiator: invalid extension id: %v", e.Cause)
	case ErrKindExtCheckError:
		return fmt.Sprintf("gladiator: extension validation failed: %v", e.Cause)
	default:
		return "gladiator: incoming check error"
	}
}

func (e *IncomingCheckError) Unwrap() error { return e.Cause }

func (e *IncomingCheckError) Is(target error) bool {
	t, ok := target.(*IncomingCheckError)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

var (
	ErrPermissionDenied        = &IncomingCheckError{Kind: ErrKindPermissionDenied}
	ErrExtPermissionNotMatched = &IncomingCheckError{Kind: ErrKindExtPermissionNotMatched}
	ErrInvalidExtID            = &IncomingCheckError{Kind: ErrKindInvalidExtID}
	ErrExtCheckError           = &IncomingCheckError{Kind: ErrKindExtCheckError}
)

// NewRecursionError builds a RecursionEchoElement error for the given depth.
func NewRecursionError(depth int) *IncomingCheckError {
	return &IncomingCheckError{Kind: ErrKindRecursionEchoElement, Depth: depth}
}

// ExtErrorKind enumerates the extension error family.
type ExtErrorKind int

const (
	ExtErrUnknownExtID ExtErrorKind = iota + 1
	ExtErrMetaKeyNotExist
	ExtErrEvaluateKeyExist
	ExtErrCustomValidation
	ExtErrArcUpgrade
	ExtErrIDTransUsize
	ExtErrFragDomMissingChild
	ExtErrResourceSigner
)

// ExtensionError is returned by the Extension Registry's validate_attr and
// render operations.
type ExtensionError struct {
	Kind  ExtErrorKind
	ExtID uint32
	Key   string
	Msg   string
	Cause error
}

func (e *ExtensionError) Error() string {
	switch e.Kind {
	case ExtErrUnknownExtID:
		return fmt.Sprintf("gladiator/ext: unknown extension id: %d", e.ExtID)
	case ExtErrMetaKeyNotExist:
		return fmt.Sprintf("gladiator/ext: meta key not exist: %s", e.Key)
	case ExtErrEvaluateKeyExist:
		return fmt.Sprintf("gladiator/ext: evaluate key exist: %s", e.Key)
	case ExtErrCustomValidation:
		return fmt.Sprintf("gladiator/ext: custom validation error, key: %s, err: %s", e.Key, e.Msg)
	case ExtErrArcUpgrade:
		return "gladiator/ext: failed to upgrade weak reference"
	case ExtErrIDTransUsize:
		return "gladiator/ext: failed to convert extension id"
	case ExtErrFragDomMissingChild:
		return "gladiator/ext: fragment dom missing child"
	case ExtErrResourceSigner:
		return fmt.Sprintf("gladiator/ext: resource signer: %v", e.Cause)
	default:
		return "gladiator/ext: extension error"
	}
}

func (e *ExtensionError) Unwrap() error { return e.Cause }

func (e *ExtensionError) Is(target error) bool {
	t, ok := target.(*ExtensionError)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// PipelineSerializeError wraps a serialization/UTF-8 recovery failure at
// CollectEnd.
type PipelineSerializeError struct {
	Cause error
}

func (e *PipelineSerializeError) Error() string {
	return fmt.Sprintf("gladiator: serialize: %v", e.Cause)
}

func (e *PipelineSerializeError) Unwrap() error { return e.Cause }
