package repofake

import "errors"

var errBackendDown = errors.New("credential backend unavailable")
