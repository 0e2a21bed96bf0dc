package model

import "errors"

var (
	ErrTimeout           = errors.New("miner timed out")
	ErrMalformed         = errors.New("malformed response")
	ErrNetwork           = errors.New("network error")
	ErrNoStatements      = errors.New("statement source produced no statements")
	ErrInvalidTransition = errors.New("invalid round state transition")
	ErrUnknownMiner      = errors.New("unknown miner")
)
