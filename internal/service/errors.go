package service

import (
	"fmt"

	"github.com/google/uuid"
)

type ErrProjectNotFound struct {
	error
}

func NewErrProjectNotFound(id uuid.UUID) *ErrProjectNotFound {
	return &ErrProjectNotFound{fmt.Errorf("project %s not found", id)}
}

type ErrProjectUpdateConflict struct {
	error
}

func NewErrProjectUpdateConflict(id uuid.UUID) *ErrProjectUpdateConflict {
	return &ErrProjectUpdateConflict{fmt.Errorf("project %s update targets a missing record", id)}
}

type ErrImageRejected struct {
	error
}

func NewErrImageRejected(id uuid.UUID, reason error) *ErrImageRejected {
	return &ErrImageRejected{fmt.Errorf("project %s: image rejected: %w", id, reason)}
}

type ErrInvalidImage struct {
	error
}

func NewErrInvalidImage(fileName string, reason error) *ErrInvalidImage {
	return &ErrInvalidImage{fmt.Errorf("file %s: %w", fileName, reason)}
}
