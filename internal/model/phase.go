package model

import "fmt"

// Phase is the last cluster resource or configuration step confirmed for a
// server. Provisioning moves it forward, deprovisioning moves it back.
type Phase int

const (
	PhaseNone Phase = iota
	PhaseReplicationResource
	PhaseNetworkService
	PhaseInitializeConfiguration
	PhaseIngressRoute
)

var phaseNames = map[Phase]string{
	PhaseNone:                    "None",
	PhaseReplicationResource:     "ReplicationResource",
	PhaseNetworkService:          "NetworkService",
	PhaseInitializeConfiguration: "InitializeConfiguration",
	PhaseIngressRoute:            "IngressRoute",
}

func (p Phase) String() string {
	if name, ok := phaseNames[p]; ok {
		return name
	}
	return fmt.Sprintf("Phase(%d)", int(p))
}

// Valid reports whether p is one of the known phases.
func (p Phase) Valid() bool {
	_, ok := phaseNames[p]
	return ok
}

// ParsePhase converts a phase name back into a Phase.
func ParsePhase(s string) (Phase, error) {
	for p, name := range phaseNames {
		if name == s {
			return p, nil
		}
	}
	return PhaseNone, fmt.Errorf("unknown phase %q", s)
}

// MarshalText encodes the phase by name so stored records and events stay readable.
func (p Phase) MarshalText() ([]byte, error) {
	if !p.Valid() {
		return nil, fmt.Errorf("unknown phase %d", int(p))
	}
	return []byte(p.String()), nil
}

// UnmarshalText decodes a phase name.
func (p *Phase) UnmarshalText(text []byte) error {
	parsed, err := ParsePhase(string(text))
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}

// MaxPhase returns the later of two phases.
func MaxPhase(a, b Phase) Phase {
	if a > b {
		return a
	}
	return b
}

// MinPhase returns the earlier of two phases.
func MinPhase(a, b Phase) Phase {
	if a < b {
		return a
	}
	return b
}
