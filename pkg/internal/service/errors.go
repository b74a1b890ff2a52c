package service

import (
	"errors"
	"fmt"

	"github.com/yeisme/fileparser/pkg/rule"
)

// 对外错误分类，handler 据此映射 HTTP 状态码.
var (
	ErrValidation   = errors.New("validation failed")
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
	ErrConflict     = errors.New("conflict")
	ErrNotFound     = errors.New("not found")
	ErrNotReady     = errors.New("not ready")
)

// Invalid 把绑定或校验错误包装为 ErrValidation.
func Invalid(err error) error {
	if ve := rule.Errors(err); ve != nil {
		return fmt.Errorf("%w: %s", ErrValidation, ve.Error())
	}

	return fmt.Errorf("%w: %s", ErrValidation, err.Error())
}
