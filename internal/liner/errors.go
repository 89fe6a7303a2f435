package liner

import "errors"

var ErrLineTooLong = errors.New("response line too long")
