package metapage

import (
	"fmt"

	"github.com/tuannm99/thunder/internal/pagefmt"
)

// InvalidMetaPageError reports why a meta page failed Validate.
type InvalidMetaPageError struct {
	Reason string
	Got    uint64
	Want   uint64
}

func (e *InvalidMetaPageError) Error() string {
	if e.Want != 0 {
		return fmt.Sprintf("metapage: invalid meta page: %s (got %d, want %d)", e.Reason, e.Got, e.Want)
	}
	return fmt.Sprintf("metapage: invalid meta page: %s (got %d)", e.Reason, e.Got)
}

// PageSizeMismatchError reports that a meta page's recorded page size
// does not match the caller's expected page size.
type PageSizeMismatchError struct {
	Expected, Got pagefmt.PageSize
}

func (e *PageSizeMismatchError) Error() string {
	return fmt.Sprintf("metapage: page size mismatch: expected %s, got %s", e.Expected, e.Got)
}

// ErrBothMetaPagesInvalid is returned by the engine when SelectCurrent
// finds neither candidate meta page valid.
var ErrBothMetaPagesInvalid = fmt.Errorf("metapage: both meta pages are invalid")
