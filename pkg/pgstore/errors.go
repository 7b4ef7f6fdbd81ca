// Copyright 2025 BPI Labs

package pgstore

import "errors"

var (
	ErrNotFound      = errors.New("pgstore: record not found")
	ErrAlreadyExists = errors.New("pgstore: record already exists")
	ErrMarshalRecord = errors.New("pgstore: failed to marshal record")
)
