package claims

import "errors"

var errEmptyKey = errors.New("claims: claim key is required")
