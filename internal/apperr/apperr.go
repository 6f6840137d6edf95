// Package apperr defines the error taxonomy of a render job. Each error carries
// a Kind so callers can map it to a response code, plus the failing stage and
// scene when known.
package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies where a job failed.
type Kind string

const (
	KindInput       Kind = "input"       // bad request: no scenes, missing media
	KindAcquisition Kind = "acquisition" // remote download / decode failed
	KindEncode      Kind = "encode"      // both encode profiles failed
	KindPackaging   Kind = "packaging"   // output missing, oversized, upload failed
	KindInternal    Kind = "internal"
)

// MaxDetailLen bounds the encoder diagnostics attached to an error.
const MaxDetailLen = 500

// NoScene marks an error that is not tied to a particular scene.
const NoScene = -1

// Error is a classified job error.
type Error struct {
	Kind    Kind
	Stage   string // e.g. "segment", "concat", "compose"
	Scene   int    // zero-based scene index, NoScene if not scene-scoped
	Message string
	Detail  string // bounded stderr of the failing tool
	Cause   error
}

func (e *Error) Error() string {
	msg := e.Message
	if e.Scene != NoScene {
		msg = fmt.Sprintf("scene %d: %s", e.Scene+1, msg)
	}
	if e.Detail != "" {
		msg = fmt.Sprintf("%s: %s", msg, e.Detail)
	} else if e.Cause != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Cause)
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Input reports a request problem. scene may be NoScene.
func Input(scene int, format string, args ...any) *Error {
	return &Error{Kind: KindInput, Stage: "validate", Scene: scene, Message: fmt.Sprintf(format, args...)}
}

// Acquisition reports a failed media download or decode for a scene.
func Acquisition(scene int, cause error) *Error {
	return &Error{Kind: KindAcquisition, Stage: "acquire", Scene: scene, Message: "media acquisition failed", Cause: cause}
}

// Encode reports a fatal encode failure with the tool's diagnostic output.
func Encode(stage string, scene int, stderr string, cause error) *Error {
	return &Error{
		Kind:    KindEncode,
		Stage:   stage,
		Scene:   scene,
		Message: stage + " rendering failed",
		Detail:  TruncateDetail(stderr),
		Cause:   cause,
	}
}

// Packaging reports a problem with the finished artifact.
func Packaging(format string, args ...any) *Error {
	return &Error{Kind: KindPackaging, Stage: "package", Scene: NoScene, Message: fmt.Sprintf(format, args...)}
}

// Internal wraps an unexpected failure.
func Internal(stage string, cause error) *Error {
	return &Error{Kind: KindInternal, Stage: stage, Scene: NoScene, Message: stage + " failed", Cause: cause}
}

// KindOf returns the Kind of err, or KindInternal for unclassified errors.
func KindOf(err error) Kind {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindInternal
}

// Is reports whether err is an *Error of the given kind.
func Is(err error, kind Kind) bool {
	var appErr *Error
	return errors.As(err, &appErr) && appErr.Kind == kind
}

// TruncateDetail keeps the last MaxDetailLen bytes of tool output, where
// ffmpeg prints the actual failure.
func TruncateDetail(s string) string {
	if len(s) <= MaxDetailLen {
		return s
	}
	return s[len(s)-MaxDetailLen:]
}
