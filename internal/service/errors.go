package service

import (
	"errors"

	"github.com/spec-kit/request-desk/internal/repository"
	apperrors "github.com/spec-kit/request-desk/pkg/util/errorutil"
)

// mapRepoError translates repository sentinels into domain errors.
func mapRepoError(err error, resource, id string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, repository.ErrNotFound):
		return apperrors.NewNotFound(resource, map[string]any{resource + "_id": id})
	case errors.Is(err, repository.ErrConflict):
		return apperrors.NewConflict(resource+" already exists", map[string]any{resource + "_id": id})
	default:
		return apperrors.MapError(err)
	}
}
