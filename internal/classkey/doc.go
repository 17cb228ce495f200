// Package classkey resolves script-declared class references into
// fully-qualified keys scoped to an application package.
//
// A script declares its package once and then refers to classes either by
// their full name or relative to that package with a leading ".":
//
//	var pc classkey.Context
//	pc.Declare("com.android.contacts")
//	key, err := classkey.Resolve(&pc, ".EditText")
//	// key == Key{Package: "com.android.contacts", Class: "com.android.contacts.EditText"}
package classkey
