package domain

import "errors"

var (
	ErrNotFound        = errors.New("not found")
	ErrUnknownProvider = errors.New("unknown provider")
	ErrNoProviderKey   = errors.New("subscriber has no provider identifier")
	ErrNotEligible     = errors.New("subscriber is not eligible")
)
