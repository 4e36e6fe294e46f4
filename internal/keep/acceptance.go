package keep

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrInvalidAcceptance is returned when parsing an unknown acceptance value.
var ErrInvalidAcceptance = errors.New("invalid acceptance")

// Acceptance is the trust status of a remote peer.
type Acceptance int

const (
	// Absent - no record of the peer
	Absent Acceptance = iota
	// Pending - awaiting a manual or policy decision
	Pending
	// Accepted - keys are trusted
	Accepted
	// Rejected - keys are not trusted
	Rejected
)

// String returns the string representation of an Acceptance.
func (a Acceptance) String() string {
	switch a {
	case Absent:
		return "absent"
	case Pending:
		return "pending"
	case Accepted:
		return "accepted"
	case Rejected:
		return "rejected"
	default:
		return "unknown"
	}
}

// Valid reports whether a is one of the four acceptance values.
func (a Acceptance) Valid() bool {
	return a >= Absent && a <= Rejected
}

// ParseAcceptance converts a string to an Acceptance.
func ParseAcceptance(s string) (Acceptance, error) {
	switch s {
	case "absent":
		return Absent, nil
	case "pending":
		return Pending, nil
	case "accepted":
		return Accepted, nil
	case "rejected":
		return Rejected, nil
	default:
		return Absent, fmt.Errorf("%w: %q", ErrInvalidAcceptance, s)
	}
}

// MarshalJSON implements json.Marshaler for Acceptance.
func (a Acceptance) MarshalJSON() ([]byte, error) {
	if !a.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrInvalidAcceptance, int(a))
	}
	return json.Marshal(a.String())
}

// UnmarshalJSON implements json.Unmarshaler for Acceptance. A JSON null
// reads as Absent.
func (a *Acceptance) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*a = Absent
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidAcceptance, data)
	}
	acceptance, err := ParseAcceptance(s)
	if err != nil {
		return err
	}
	*a = acceptance
	return nil
}

// Role selects the trust posture of an evaluation.
type Role int

const (
	// Acceptor - this node is the gatekeeper admitting the peer
	Acceptor Role = iota
	// Initiator - this node is reaching out to the peer
	Initiator
)

// ErrInvalidRole is returned when parsing an unknown role.
var ErrInvalidRole = errors.New("invalid role")

// String returns the string representation of a Role.
func (r Role) String() string {
	switch r {
	case Acceptor:
		return "acceptor"
	case Initiator:
		return "initiator"
	default:
		return "unknown"
	}
}

// ParseRole converts a string to a Role.
func ParseRole(s string) (Role, error) {
	switch s {
	case "acceptor":
		return Acceptor, nil
	case "initiator":
		return Initiator, nil
	default:
		return Acceptor, fmt.Errorf("%w: %q", ErrInvalidRole, s)
	}
}
