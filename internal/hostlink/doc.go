// Package hostlink connects the script runtime to the host accessibility
// service.
//
// The host sends UI events as JSON frames and receives speech and dispatch
// results back:
//
//	{"kind":"event","id":"e1","package":"android","class":"...LockScreen","type":"ViewFocused","payload":{}}
//	{"kind":"result","id":"e1","handled":true}
//	{"kind":"speak","text":"Locked, press menu to unlock.","interrupt":true}
//	{"kind":"notify","text":"New message"}
//
// Server carries frames over a WebSocket. Decoder and Encoder carry the same
// frames as JSON lines, for hosts that talk over a pipe.
package hostlink
