package service

import "errors"

var (
	ErrUnknownAction = errors.New("unknown delivery action")
	ErrInvalidAction = errors.New("invalid delivery action")
)
