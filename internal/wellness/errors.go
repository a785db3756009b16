package wellness

import "errors"

// Validation and lookup errors returned by Service. Handlers map them to
// 4xx responses; anything else is a storage failure.
var (
	ErrInvalidActivity = errors.New("activity must be meditation, breathing or yoga")
	ErrInvalidMinutes  = errors.New("minutes must be between 0 and 1440")
	ErrUnknownPose     = errors.New("unknown pose")
	ErrProfileNotFound = errors.New("profile not found")
	ErrInvalidProfile  = errors.New("invalid profile")
	ErrEmptyReflection = errors.New("reflection is empty")
	ErrInvalidDate     = errors.New("date must be YYYY-MM-DD")
	ErrFutureDate      = errors.New("date is in the future")
	ErrInvalidFaceScan = errors.New("invalid face scan")
)
