package pricing

import "errors"

// ErrInvalidPrice is returned when a price entry is negative or not finite.
var ErrInvalidPrice = errors.New("pricing: invalid price")
