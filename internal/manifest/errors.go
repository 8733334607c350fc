package manifest

import "errors"

var (
	ErrPlanRead        = errors.New("failed to read plan")
	ErrPlanParse       = errors.New("failed to parse plan")
	ErrPlanInvalid     = errors.New("invalid plan")
	ErrManifestRead    = errors.New("failed to read package manifest")
	ErrManifestEmpty   = errors.New("empty package manifest")
	ErrManifestInvalid = errors.New("invalid package manifest")
)
