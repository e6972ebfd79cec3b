package pathid

import "errors"

// Sentinel errors for the pathid package. Using sentinels instead of ad-hoc
// fmt.Errorf allows callers to match with errors.Is for reliable error handling.
var (
	// ErrProjectRootNotFound is returned when no management marker or git root
	// can be located from the starting directory.
	ErrProjectRootNotFound = errors.New("project root not found: no .project/.edison marker or git root above this directory")

	// ErrInvalidID is returned when a raw ID string is empty or contains path
	// separators.
	ErrInvalidID = errors.New("invalid entity id")

	// ErrIDNotFound is returned when a short token does not expand to any
	// known entity.
	ErrIDNotFound = errors.New("no entity matches the given id")
)

// AmbiguousIDError is returned when a short token expands to more than one
// candidate. Candidates is sorted and truncated to the first 10 matches.
type AmbiguousIDError struct {
	Token      string
	Candidates []string
}

func (e *AmbiguousIDError) Error() string {
	return "ambiguous id " + e.Token + ": matches multiple entities"
}
