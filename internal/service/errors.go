package service

import (
	"errors"

	"github.com/nurpe/foodshare-pickups/internal/lifecycle"
)

var (
	ErrNotFound                    = errors.New("not found")
	ErrForbidden                   = errors.New("forbidden")
	ErrInvalidInput                = errors.New("invalid input")
	ErrInvalidStateTransition      = lifecycle.ErrInvalidTransition
	ErrQuantityExceedsAvailability = errors.New("quantity exceeds availability")
)
