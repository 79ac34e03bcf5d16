package domain

import "errors"

var ErrInvalidQuery = errors.New("query is required")
