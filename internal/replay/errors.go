package replay

import "errors"

// ErrInvalidOrdering is returned when recorded frames are not in
// non-decreasing timestamp order.
var ErrInvalidOrdering = errors.New("recorded frames are not in timestamp order")
