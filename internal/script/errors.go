package script

import "errors"

// ErrNoPackage is returned by calls that need a declared package, such as
// preference access, when the script has not declared one.
var ErrNoPackage = errors.New("no package declared")
