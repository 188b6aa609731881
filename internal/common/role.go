package common

import "strings"

// Role identifies one side of the patient/clinic pair as a bit in a mask.
// Delivery packets carry a receivers mask (which roles must see the packet)
// and a delivered mask (which roles already acknowledged it).
type Role uint8

const (
	RoleClinic  Role = 1 << iota // bit 0
	RolePatient                  // bit 1
)

// Client-id prefixes. A client id is an opaque string whose prefix signals
// the device role, e.g. "clinic-7f3a..." or "patient-0c91...".
const (
	ClinicIDPrefix  = "clinic-"
	PatientIDPrefix = "patient-"
)

func (r Role) String() string {
	switch r {
	case RoleClinic:
		return "clinic"
	case RolePatient:
		return "patient"
	}
	return "unknown"
}

// Complement returns the other side of the pair. Changes submitted by one
// role are addressed to its complement.
func (r Role) Complement() Role {
	switch r {
	case RoleClinic:
		return RolePatient
	case RolePatient:
		return RoleClinic
	}
	return 0
}

// Mask returns the role as a receivers/delivered bitmask value.
func (r Role) Mask() uint8 {
	return uint8(r)
}

// RoleFromClientID derives the caller role from the client-id prefix.
func RoleFromClientID(clientID string) (Role, error) {
	switch {
	case strings.HasPrefix(clientID, ClinicIDPrefix):
		return RoleClinic, nil
	case strings.HasPrefix(clientID, PatientIDPrefix):
		return RolePatient, nil
	}
	return 0, ErrUnknownRole
}
