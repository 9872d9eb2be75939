package secrets

import "errors"

var (
	ErrInvalidRule      = errors.New("invalid scrubbing rule")
	ErrInvalidAllowlist = errors.New("invalid allowlist")
	ErrDetectorInit     = errors.New("gitleaks detector initialization failed")
)
