package domain

import (
	"regexp"
	"strings"
)

// Channel is the out-of-band route a code travels to reach the owner of an identity.
type Channel string

const (
	ChannelUnknown Channel = ""
	ChannelEmail   Channel = "email"
	ChannelSMS     Channel = "sms"
)

var e164 = regexp.MustCompile(`^\+[1-9][0-9]{6,14}$`)

// NormalizeIdentity is applied on both issuance and verification so that
// "Alice@Example.com " and "alice@example.com" address the same record.
func NormalizeIdentity(identity string) string {
	return strings.ToLower(strings.TrimSpace(identity))
}

// ChannelOf classifies an identity. It does not validate email syntax.
func ChannelOf(identity string) Channel {
	switch {
	case strings.Contains(identity, "@"):
		return ChannelEmail
	case e164.MatchString(identity):
		return ChannelSMS
	default:
		return ChannelUnknown
	}
}
