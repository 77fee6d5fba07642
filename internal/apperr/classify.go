// Package apperr 将底层错误归类为用户可理解的错误类型
package apperr

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"syscall"

	"gorm.io/gorm"
)

// Kind 错误类型
type Kind string

const (
	KindValidation Kind = "VALIDATION"
	KindPermission Kind = "PERMISSION"
	KindConflict   Kind = "CONFLICT"
	KindDuplicate  Kind = "DUPLICATE"
	KindNetwork    Kind = "NETWORK"
	KindServer     Kind = "SERVER"
)

var (
	ErrPermissionDenied = errors.New("permission denied")
	ErrConflict         = errors.New("record was modified by someone else")
)

// 数据库错误码
const (
	sqlStateInsufficientPrivilege = "42501"
	sqlStateUniqueViolation       = "23505"
)

type fieldErrorer interface {
	FieldErrors() map[string]string
}

type sqlStater interface {
	SQLState() string
}

type statusCoder interface {
	StatusCode() int
}

// Classify 按优先级归类错误，首个命中生效，未识别的错误（包括 nil）视为 SERVER
func Classify(err error) Kind {
	if err == nil {
		return KindServer
	}

	var appErr *Error
	if errors.As(err, &appErr) && appErr.Kind != "" {
		return appErr.Kind
	}

	var fe fieldErrorer
	if errors.As(err, &fe) {
		return KindValidation
	}
	if errors.Is(err, ErrConflict) {
		return KindConflict
	}

	msg := strings.ToLower(err.Error())
	state := sqlState(err)
	status := statusCode(err)

	switch {
	case isPermission(err, msg, state, status):
		return KindPermission
	case isDuplicate(err, msg, state):
		return KindDuplicate
	case isNetwork(err, msg, status):
		return KindNetwork
	}
	return KindServer
}

func isPermission(err error, msg, state string, status int) bool {
	if errors.Is(err, ErrPermissionDenied) {
		return true
	}
	if status == 401 || status == 403 {
		return true
	}
	if state == sqlStateInsufficientPrivilege {
		return true
	}
	return strings.Contains(msg, "permission")
}

func isDuplicate(err error, msg, state string) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	if state == sqlStateUniqueViolation {
		return true
	}
	return strings.Contains(msg, "duplicate key") ||
		strings.Contains(msg, "unique constraint")
}

var networkHints = []string{
	"network",
	"fetch",
	"timeout",
	"connection refused",
	"no such host",
	"host not found",
}

func isNetwork(err error, msg string, status int) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, syscall.ECONNREFUSED) {
		return true
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	if status >= 500 {
		return true
	}
	for _, hint := range networkHints {
		if strings.Contains(msg, hint) {
			return true
		}
	}
	return false
}

func sqlState(err error) string {
	var s sqlStater
	if errors.As(err, &s) {
		return s.SQLState()
	}
	return ""
}

func statusCode(err error) int {
	var s statusCoder
	if errors.As(err, &s) {
		return s.StatusCode()
	}
	return 0
}

// Retryable 只有网络与服务端错误值得重试
func Retryable(kind Kind) bool {
	return kind == KindNetwork || kind == KindServer
}

// Message 面向用户的错误描述
func Message(kind Kind) string {
	switch kind {
	case KindValidation:
		return "Please fix the highlighted fields and try again."
	case KindPermission:
		return "You don't have permission to save this prompt."
	case KindConflict:
		return "This prompt was changed by someone else. Reload to see the latest version."
	case KindDuplicate:
		return "A prompt with the same identity already exists."
	case KindNetwork:
		return "Network problem while saving. Check your connection and try again."
	default:
		return "Something went wrong while saving. Please try again."
	}
}

// Error 带类型的应用错误
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

// New 创建带类型的错误，message 为空时使用默认描述
func New(kind Kind, message string, cause error) *Error {
	if message == "" {
		message = Message(kind)
	}
	return &Error{Kind: kind, Message: message, Cause: cause}
}

// Wrap 归类 err 并包装，nil 返回 nil
func Wrap(err error) *Error {
	if err == nil {
		return nil
	}
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr
	}
	kind := Classify(err)
	return &Error{Kind: kind, Message: Message(kind), Cause: err}
}

func (e *Error) Error() string {
	if e.Cause == nil {
		return fmt.Sprintf("%s: %s", e.Kind, e.Message)
	}
	return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
}

func (e *Error) Unwrap() error {
	return e.Cause
}
