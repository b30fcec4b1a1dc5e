// Package queue defines the message payloads exchanged over the broker and
// the background consumer that turns them into outbound e-mail.
package queue

// Mail event kinds. The consumer picks subject and body per kind.
const (
	MailKindVerification  = "email.verification"
	MailKindPasswordReset = "password.reset"
)

// MailEvent is published on the mail.outbound queue whenever a flow issues a
// single-use token. The token is already persisted by the time the event is
// published; losing the event loses only the notification, never the token.
type MailEvent struct {
	Kind  string `json:"kind"`
	To    string `json:"to"`
	Name  string `json:"name"`
	Token string `json:"token"`
}
