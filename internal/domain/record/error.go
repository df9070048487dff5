package record

import (
	"errors"
)

var (
	ErrNotFound        = errors.New("record not found")
	ErrAlreadyExists   = errors.New("record already exists")
	ErrInvalidData     = errors.New("invalid record data")
	ErrVersionConflict = errors.New("record version conflict")
	ErrRecordDeleted   = errors.New("record was deleted")
)
