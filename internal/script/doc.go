// Package script is the API surface scripts program against, independent of
// the interpreter that runs them.
//
// Each loading script gets its own Session, which owns its package context.
// Two scripts loading concurrently therefore never observe each other's
// declared package:
//
//	sess := host.NewSession("lockscreen.lua")
//	sess.DeclarePackage("android")
//	sess.RegisterClass("com.android.internal.policy.impl.LockScreen",
//	    map[string]handler.Handler{"onViewFocused": h})
//
// A RegisterClass call captures the package declared at the time of the
// call; declaring a different package later does not move bindings that
// were already registered.
package script
