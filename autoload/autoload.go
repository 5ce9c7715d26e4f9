// Package autoload arms the interception as a side effect of being
// imported:
//
//	import _ "github.com/spoofkit/idmask/autoload"
//
// In a binary built with -buildmode=c-shared this runs from the library
// constructor the loader executes at load time, before any application
// code can call the target symbol.
package autoload

import "github.com/spoofkit/idmask"

func init() {
	// Failure is already logged and the host must keep working either
	// way, so there is nothing to do with the error here.
	_ = idmask.Enable()
}
