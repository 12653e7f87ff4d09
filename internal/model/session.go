package model

import "time"

// Source identifies which detection path produced a session update.
type Source string

const (
	SourceInit   Source = "init"
	SourceSDK    Source = "sdk"
	SourcePoll   Source = "poll"
	SourceNative Source = "native"
)

// SessionState is an immutable snapshot of the wallet session.
// IsConnected is always equal to Address != "".
type SessionState struct {
	IsReady     bool      `json:"isReady"`
	Address     string    `json:"address,omitempty"`
	IsConnected bool      `json:"isConnected"`
	Source      Source    `json:"source,omitempty"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// NewSessionState builds a snapshot keeping the connected flag in sync with the address.
func NewSessionState(ready bool, address string, source Source, at time.Time) SessionState {
	return SessionState{
		IsReady:     ready,
		Address:     address,
		IsConnected: address != "",
		Source:      source,
		UpdatedAt:   at,
	}
}

// Listener receives the latest (address, connected) pair on every broadcast.
type Listener func(address string, connected bool)
