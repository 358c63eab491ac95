package crawler

import "errors"

// ErrNoModuleHeader is returned when a lesson page has none of the elements
// the module name is taken from.
var ErrNoModuleHeader = errors.New("module header not found")
