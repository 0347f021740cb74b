package service

import (
	"errors"

	"dpp-certification/internal/domain"
	"dpp-certification/internal/repository"
)

var domainKinds = []error{
	domain.ErrValidation,
	domain.ErrInvalidTransition,
	domain.ErrForbidden,
	domain.ErrConflict,
	domain.ErrNotFound,
	domain.ErrTemporary,
}

// translate maps repository sentinels onto the domain taxonomy. Errors that
// already carry a kind pass through untouched.
func translate(op string, err error) error {
	if err == nil {
		return nil
	}
	for _, kind := range domainKinds {
		if errors.Is(err, kind) {
			return err
		}
	}

	switch {
	case errors.Is(err, repository.ErrProductNotFound),
		errors.Is(err, repository.ErrDocumentNotFound),
		errors.Is(err, repository.ErrMaterialNotFound),
		errors.Is(err, repository.ErrAssignmentNotFound),
		errors.Is(err, repository.ErrCompanyNotFound),
		errors.Is(err, repository.ErrProductTypeNotFound):
		return domain.WrapError(domain.ErrNotFound, op, err)
	case errors.Is(err, repository.ErrDuplicateAssignment),
		errors.Is(err, repository.ErrCompanyAlreadyExists):
		return domain.WrapError(domain.ErrConflict, op, err)
	}
	return err
}

func forbidden(op, message string) error {
	return domain.WrapError(domain.ErrForbidden, op, errors.New(message))
}

// kindLabel names the taxonomy kind of err for metrics labels.
func kindLabel(err error) string {
	switch {
	case errors.Is(err, domain.ErrValidation):
		return "validation"
	case errors.Is(err, domain.ErrInvalidTransition):
		return "invalid_transition"
	case errors.Is(err, domain.ErrForbidden):
		return "forbidden"
	case errors.Is(err, domain.ErrConflict):
		return "conflict"
	case errors.Is(err, domain.ErrNotFound):
		return "not_found"
	case errors.Is(err, domain.ErrTemporary):
		return "temporary"
	}
	return "internal"
}
