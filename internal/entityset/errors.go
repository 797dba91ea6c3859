package entityset

import "errors"

// ErrNoComparator is returned by Sort on a set without a comparator.
var ErrNoComparator = errors.New("entityset: cannot sort a set without a comparator")
