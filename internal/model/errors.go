package model

import "errors"

var (
	ErrInvalidAmount                = errors.New("amount must be zero or positive")
	ErrUnsupportedCalculationMethod = errors.New("unsupported tax calculation method")
	ErrInvalidTransition            = errors.New("booking status transition not allowed")
	ErrSignatureMismatch            = errors.New("payment signature verification failed")
	ErrConsentRequired              = errors.New("user consent is required to create a booking")
)
