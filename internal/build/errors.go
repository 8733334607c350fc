package build

import "errors"

var (
	ErrBake                = errors.New("bake failed")
	ErrFileSystemOperation = errors.New("file system operation failed")
	ErrCopy                = errors.New("copy failed")
	ErrCommandFailed       = errors.New("command failed")
	ErrMissingArtifacts    = errors.New("artifact cache is incomplete")
	ErrTool                = errors.New("tool install failed")
	ErrProbe               = errors.New("healthcheck rehearsal failed")
)
