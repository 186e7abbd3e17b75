// Package session derives the conversation key shared with the AI collaborator.
package session

import "github.com/google/uuid"

// Namespace is the fixed namespace for session keys. Changing it moves every
// correspondent into a new upstream conversation.
var Namespace = uuid.NameSpaceDNS

// DeriveKey maps a correspondent identifier (typically the raw Twilio From
// address) to a stable version-5 UUID.
func DeriveKey(correspondentID string) string {
	return uuid.NewSHA1(Namespace, []byte(correspondentID)).String()
}
