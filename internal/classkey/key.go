package classkey

import "strings"

// RelativeMarker prefixes class references that are relative to the
// declared package.
const RelativeMarker = "."

// Key is a fully-qualified class identifier scoped to a package.
// Class never begins with RelativeMarker.
type Key struct {
	Package string
	Class   string
}

// String renders the key as "package/class".
func (k Key) String() string {
	return k.Package + "/" + k.Class
}

// AnyPackage returns the package-agnostic form of the key. Bindings made
// without a declared package are stored under this form.
func (k Key) AnyPackage() Key {
	return Key{Class: k.Class}
}

// Context is the package a loading script has declared. Each script owns
// its own Context; it is not shared between scripts.
type Context struct {
	pkg string
}

// NewContext returns a Context with pkg already declared.
func NewContext(pkg string) *Context {
	return &Context{pkg: pkg}
}

// Declare sets the active package. Declaring again only affects references
// resolved afterwards.
func (c *Context) Declare(pkg string) {
	c.pkg = strings.TrimSpace(pkg)
}

// Package returns the declared package, or "" if none.
func (c *Context) Package() string {
	if c == nil {
		return ""
	}
	return c.pkg
}

// Declared reports whether a package has been declared.
func (c *Context) Declared() bool {
	return c.Package() != ""
}

// IsRelative reports whether ref is relative to the declared package.
func IsRelative(ref string) bool {
	return strings.HasPrefix(ref, RelativeMarker)
}

// Resolve turns ref into a Key under ctx. Relative references are expanded
// against the declared package; anything else is used verbatim.
func Resolve(ctx *Context, ref string) (Key, error) {
	if ref == "" {
		return Key{}, &ReferenceError{Ref: ref, Reason: "empty reference"}
	}

	pkg := ctx.Package()
	if !IsRelative(ref) {
		return Key{Package: pkg, Class: ref}, nil
	}

	if pkg == "" {
		return Key{}, &ReferenceError{Ref: ref, Reason: "relative reference before package declared"}
	}
	if ref == RelativeMarker {
		return Key{}, &ReferenceError{Ref: ref, Reason: "missing class name"}
	}
	return Key{Package: pkg, Class: pkg + ref}, nil
}
