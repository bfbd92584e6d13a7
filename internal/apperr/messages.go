package apperr

import (
	"errors"
	"io/fs"
	"strings"
)

var userMessages = map[Code]string{
	CodeNotFound:           "The requested item no longer exists.",
	CodeInvalidArgument:    "Please check the highlighted fields and try again.",
	CodeUnavailable:        "The service is temporarily unavailable. Please try again.",
	CodeFileTooLarge:       "The file is too large.",
	CodeCategoryExists:     "A category with that name already exists.",
	CodeCategoryNotEmpty:   "Remove the images in this category before deleting it.",
	CodeAuthUserNotFound:   "No admin account found. Please create an account first.",
	CodeAuthWrongPassword:  "Incorrect password. Please try again.",
	CodeAuthInvalidEmail:   "Invalid email address.",
	CodeAuthEmailInUse:     "Admin account already exists. Please log in instead.",
	CodeAuthNotConfigured:  "Backend not configured. Please set up the backend first.",
	CodeAuthSessionInvalid: "Your session has expired. Please sign in again.",
}

// UserMessage returns a human-readable message for err. Invalid-argument
// errors carry their own message since it names the offending field.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	var e *Error
	if !errors.As(err, &e) {
		return "Something went wrong. Please try again."
	}
	if e.Code == CodeInvalidArgument && e.Message != "" {
		return capitalize(e.Message) + "."
	}
	if msg, ok := userMessages[e.Code]; ok {
		return msg
	}
	if e.Message != "" {
		return capitalize(e.Message) + "."
	}
	return "Something went wrong. Please try again."
}

// CauseText describes the innermost cause of err for display. Coded
// errors use their user message; file paths are left out.
func CauseText(err error) string {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return UserMessage(err)
	}
	var pe *fs.PathError
	if errors.As(err, &pe) {
		return capitalize(pe.Err.Error()) + "."
	}
	for next := errors.Unwrap(err); next != nil; next = errors.Unwrap(err) {
		err = next
	}
	if msg := capitalize(err.Error()); msg != "" {
		return msg + "."
	}
	return "Something went wrong. Please try again."
}

func capitalize(s string) string {
	s = strings.TrimSuffix(strings.TrimSpace(s), ".")
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
