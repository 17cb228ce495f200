// Package lua runs accessibility scripts written in Lua on gopher-lua and
// exposes the script API to them.
//
// # Script API
//
// Scripts call a small set of globals:
//
//	forPackage("android")
//	forClass("com.android.internal.policy.impl.KeyguardViewManager$KeyguardViewHost", {
//	    onWindowStateChanged = function(self, e)
//	        speak("Locked, press menu to unlock.")
//	        return true
//	    end,
//	})
//
// forClass tables double as handler state: each handler receives the table
// as self, so fields written by one dispatch are visible to the next one
// for the same binding.
//
// Available globals:
//   - forPackage(name), declarePackage(name)
//   - forClass(ref, table), registerClass(ref, table)
//   - speak(text [, interrupt]), speakNotification(text)
//   - nextShouldNotInterrupt(), queryInterruptSuppressed()
//   - suppressNextInterrupt()
//   - preference{name=..., title=..., summary=..., default=...}, getPreference(name)
//   - print(...), routed to the structured logger
//
// # Threading
//
// gopher-lua's LState is not goroutine-safe. Every script owns one state and
// one Executor goroutine; loading and every handler call are marshalled onto
// it. Handler calls carry the dispatch context, so a script that overruns
// its timeout is aborted inside the VM.
package lua
