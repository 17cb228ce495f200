// Package speech decides whether the next utterance may interrupt speech
// that is already playing, and forwards utterances to the host's speech
// sink.
//
// The Coordinator is a two-state machine. It starts in InterruptAllowed.
// SuppressNextInterrupt moves it to InterruptSuppressed, and the next
// utterance consumes the suppression and returns it to InterruptAllowed:
//
//	coord := speech.NewCoordinator()
//	speaker := speech.NewSpeaker(sink, coord)
//
//	coord.SuppressNextInterrupt()
//	speaker.Speak("Locked")   // issued with interrupt=false
//	speaker.Speak("Unlocked") // issued with interrupt=true
package speech
