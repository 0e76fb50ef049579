package entity

import (
	"errors"
	"fmt"
)

type ErrorKind string

const (
	KindValidation ErrorKind = "VALIDATION"
	KindNotFound   ErrorKind = "NOT_FOUND"
	KindForbidden  ErrorKind = "FORBIDDEN"
	KindConflict   ErrorKind = "CONFLICT"
)

// Error is a workflow failure the caller can act on. Anything else reaching a handler is internal.
type Error struct {
	Kind    ErrorKind
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Is matches on kind so errors.Is(err, ErrNotFound) works for any not-found message.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind && (t.Message == "" || t.Message == e.Message)
}

func NewValidationError(msg string) *Error { return &Error{Kind: KindValidation, Message: msg} }
func NewNotFoundError(msg string) *Error { return &Error{Kind: KindNotFound, Message: msg} }
func NewForbiddenError(msg string) *Error { return &Error{Kind: KindForbidden, Message: msg} }
func NewConflictError(msg string) *Error { return &Error{Kind: KindConflict, Message: msg} }

// Kind-only sentinels for errors.Is.
var (
	ErrValidation = &Error{Kind: KindValidation}
	ErrNotFound   = &Error{Kind: KindNotFound}
	ErrForbidden  = &Error{Kind: KindForbidden}
	ErrConflict   = &Error{Kind: KindConflict}
)

const (
	MsgRequiredFields    = "required fields missing"
	MsgApproverRequired  = "at least one approver required"
	MsgEndBeforeStart    = "end date before start date"
	MsgNegativeBudget    = "budget must not be negative"
	MsgDuplicateApprover = "duplicate approver"
	MsgCommentRequired   = "comment required"
	MsgPostNotFound      = "post not found"
	MsgNotApprover       = "not an approver"
	MsgAlreadyProcessed  = "already processed"
	MsgNotYourTurn       = "not your turn"
	MsgPostNotPending    = "post is not pending approval"
	MsgNotCreator        = "only the creator can modify this post"
	MsgDeleteForbidden   = "only the creator or an admin can delete this post"
	MsgPublishForbidden  = "only the creator or an admin can publish this post"
	MsgPostFinalized     = "post can no longer be edited"
	MsgPostPublished     = "published posts cannot be deleted"
	MsgPostNotApproved   = "post is not approved"
	MsgInvalidStatus     = "invalid status"
	MsgInvalidTransition = "invalid status transition"
	MsgUnknownUser       = "unknown user reference"
)

// KindOf returns the workflow kind of err, or "" for infrastructure errors.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}
