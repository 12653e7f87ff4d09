package service

import "errors"

var (
	ErrConfigurationMissing   = errors.New("wallet project id is not configured")
	ErrEnvironmentUnsupported = errors.New("no wallet runtime available")
	ErrNotInitialized         = errors.New("wallet session is not initialized")
	ErrNotConnected           = errors.New("wallet is not connected")
	ErrModalOpen              = errors.New("failed to open connect modal")
	ErrSigningHandle          = errors.New("failed to create signing handle")
)
