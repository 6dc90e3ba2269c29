package storage

import (
	"errors"

	"github.com/iudanet/shelfsync/pkg/api"
)

// Common storage errors
var (
	// ErrUserNotFound indicates that user was not found in storage
	ErrUserNotFound = errors.New("user not found")

	// ErrUserAlreadyExists indicates that user with this username already exists
	ErrUserAlreadyExists = errors.New("user already exists")
)

// Rejection reasons returned in push outcomes
const (
	ReasonOutOfOrder = api.ReasonOutOfOrder
	ReasonBlocked    = "blocked by earlier rejected operation"
)
