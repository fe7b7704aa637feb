// Package apperr описывает классы ошибок сервиса: ошибки валидации, конфликты
// доменных правил, отсутствие ресурса и сбои удалённых платформ видеовстреч.
// Класс ошибки определяет, повторяется ли операция и какой HTTP-статус получит клиент.
package apperr

import (
	"errors"
	"fmt"
)

// Kind — класс ошибки.
type Kind string

const (
	KindValidation      Kind = "validation"
	KindConflict        Kind = "conflict"
	KindNotFound        Kind = "not_found"
	KindRemoteAuth      Kind = "remote_auth"
	KindRemoteTransient Kind = "remote_transient"
)

// Error — ошибка с классом, операцией и, при конфликте, конфликтующей сущностью.
type Error struct {
	Kind   Kind
	Op     string
	Msg    string
	Entity any
	Err    error
}

// Error реализует интерфейс error
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %s: %v", e.Op, e.Kind, e.Msg, e.Err)
	}
	return fmt.Sprintf("%s: %s: %s", e.Op, e.Kind, e.Msg)
}

// Unwrap возвращает исходную ошибку
func (e *Error) Unwrap() error {
	return e.Err
}

// Validation создаёт ошибку некорректных входных данных.
func Validation(op, msg string) *Error {
	return &Error{Kind: KindValidation, Op: op, Msg: msg}
}

// Conflict создаёт ошибку нарушения доменного правила с конфликтующей сущностью.
func Conflict(op, msg string, entity any) *Error {
	return &Error{Kind: KindConflict, Op: op, Msg: msg, Entity: entity}
}

// NotFound создаёт ошибку отсутствующего ресурса.
func NotFound(op, msg string) *Error {
	return &Error{Kind: KindNotFound, Op: op, Msg: msg}
}

// RemoteAuth создаёт ошибку отказа платформы в доступе. Такие ошибки не повторяются.
func RemoteAuth(op string, err error) *Error {
	return &Error{Kind: KindRemoteAuth, Op: op, Msg: "credentials rejected by remote platform", Err: err}
}

// RemoteTransient создаёт ошибку временного сбоя платформы (сеть, 5xx, 429).
func RemoteTransient(op string, err error) *Error {
	return &Error{Kind: KindRemoteTransient, Op: op, Msg: "remote platform temporarily unavailable", Err: err}
}

// KindOf возвращает класс ошибки или пустую строку, если ошибка не классифицирована.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// Is сообщает, относится ли ошибка к классу kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// EntityOf возвращает сущность, приложенную к ошибке.
func EntityOf(err error) any {
	var e *Error
	if errors.As(err, &e) {
		return e.Entity
	}
	return nil
}

// Retryable сообщает, имеет ли смысл повторять операцию. Неклассифицированные
// ошибки (обрыв соединения и т.п.) считаются временными.
func Retryable(err error) bool {
	switch KindOf(err) {
	case KindValidation, KindConflict, KindNotFound, KindRemoteAuth:
		return false
	default:
		return true
	}
}
