package wire

import (
	"math/rand"
	"strconv"
	"time"
)

// ChatDomain classifies what a chat identifier addresses.
type ChatDomain uint8

const (
	// DomainUnknown is returned for identifiers with an unrecognized prefix.
	DomainUnknown = ChatDomain(0)
	// DomainPrivate is a user-to-user chat, addressed by the counterpart's user id.
	DomainPrivate = ChatDomain(1)
	// DomainChannel is a broadcast channel.
	DomainChannel = ChatDomain(2)
	// DomainGroup is a multi-member group chat.
	DomainGroup = ChatDomain(3)
)

func (d ChatDomain) String() string {
	switch d {
	case DomainPrivate:
		return "private"
	case DomainChannel:
		return "channel"
	case DomainGroup:
		return "group"
	}
	return "unknown"
}

// GenerateID builds a fresh identifier tagged with domain: the domain digit,
// the trailing 6 digits of the millisecond clock and a 2-digit random suffix.
// Uniqueness is best-effort; the store's unique keys are the real guard.
func GenerateID(domain ChatDomain) int64 {
	millis := time.Now().UnixNano() / int64(time.Millisecond)
	stamp := millis % 1000000
	suffix := rand.Int63n(100)
	id, _ := strconv.ParseInt(
		strconv.Itoa(int(domain))+
			padLeft(stamp, 6)+
			padLeft(suffix, 2), 10, 64)
	return id
}

// DetectDomain reads the domain tag off the identifier's leading decimal digit.
func DetectDomain(id int64) ChatDomain {
	if id <= 0 {
		return DomainUnknown
	}
	for id >= 10 {
		id /= 10
	}
	switch id {
	case 1:
		return DomainPrivate
	case 2:
		return DomainChannel
	case 3:
		return DomainGroup
	}
	return DomainUnknown
}

func padLeft(n int64, width int) string {
	s := strconv.FormatInt(n, 10)
	for len(s) < width {
		s = "0" + s
	}
	return s
}
