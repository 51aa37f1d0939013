package model

import "time"

// EntityKind tags the entity a StatusChanged event refers to.
type EntityKind string

const (
	EntityServer   EntityKind = "Server"
	EntityDatabase EntityKind = "Database"
)

// StatusChanged is published once per confirmed transition.
// Phase is only meaningful for servers; Error is set on failures.
type StatusChanged struct {
	ID         string     `json:"id"`
	EntityKind EntityKind `json:"entityKind"`
	EntityID   string     `json:"entityId"`
	ServerID   string     `json:"serverId"`
	Action     Action     `json:"action,omitempty"`
	Phase      Phase      `json:"phase"`
	Status     string     `json:"status"`
	Error      string     `json:"error,omitempty"`
	Timestamp  time.Time  `json:"timestamp"`
}

// ServerEvent builds an event describing the current state of a server.
func ServerEvent(s *ServerRecord) StatusChanged {
	return StatusChanged{
		EntityKind: EntityServer,
		EntityID:   s.ID,
		ServerID:   s.ID,
		Action:     s.Action,
		Phase:      s.Phase,
		Status:     string(s.Status),
		Error:      s.LastError,
		Timestamp:  time.Now().UTC(),
	}
}

// DatabaseEvent builds an event describing the current state of a database.
func DatabaseEvent(d *DatabaseRecord) StatusChanged {
	return StatusChanged{
		EntityKind: EntityDatabase,
		EntityID:   d.ID,
		ServerID:   d.ServerID,
		Action:     d.Action,
		Status:     string(d.Status),
		Error:      d.LastError,
		Timestamp:  time.Now().UTC(),
	}
}
