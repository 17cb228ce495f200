// Package event defines the UI events delivered by the host accessibility
// service and the closed set of event types scripts may bind to.
//
// Event payloads are opaque to the core. Handlers that need payload fields
// type-assert them; the Text helper covers the common text-view shape:
//
//	ev := event.New("com.android.contacts", "android.widget.EditText",
//	    event.ViewTextChanged, map[string]any{"text": []any{"555-1234"}})
//	text, _ := ev.Text()
package event
