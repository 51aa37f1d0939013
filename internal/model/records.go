package model

import (
	"fmt"
	"time"
)

// Action is the desired action recorded for a server or database.
type Action string

const (
	ActionNone        Action = "None"
	ActionProvision   Action = "Provision"
	ActionReconfigure Action = "Reconfigure"
	ActionDeprovision Action = "Deprovision"
)

// ParseAction validates an action name.
func ParseAction(s string) (Action, error) {
	switch a := Action(s); a {
	case ActionNone, ActionProvision, ActionReconfigure, ActionDeprovision:
		return a, nil
	}
	return ActionNone, fmt.Errorf("unknown action %q", s)
}

// Status is the externally visible state of a server.
type Status string

const (
	StatusPending       Status = "Pending"
	StatusProcessing    Status = "Processing"
	StatusReady         Status = "Ready"
	StatusFailed        Status = "Failed"
	StatusDeprovisioned Status = "Deprovisioned"
)

// DatabaseStatus is the externally visible state of a database.
type DatabaseStatus string

const (
	DatabasePending        DatabaseStatus = "Pending"
	DatabaseReady          DatabaseStatus = "Ready"
	DatabaseFailed         DatabaseStatus = "Failed"
	DatabaseDeprovisioning DatabaseStatus = "Deprovisioning"
	DatabaseDeprovisioned  DatabaseStatus = "Deprovisioned"
)

// Endpoint is a host and port reachable by clients.
type Endpoint struct {
	Host string `json:"host"`
	Port int    `json:"port"`
}

func (e Endpoint) String() string {
	return fmt.Sprintf("%s,%d", e.Host, e.Port)
}

// ServerRecord is a tenant SQL Server instance.
//
// While a worker is active the orchestrator is the only writer of Phase,
// Status, LastError and PublicEndpoint. Other writers may only change Action.
type ServerRecord struct {
	ID               string    `json:"id"`
	TenantID         string    `json:"tenantId"`
	Name             string    `json:"name"`
	Action           Action    `json:"action"`
	Phase            Phase     `json:"phase"`
	Status           Status    `json:"status"`
	AdminPassword    string    `json:"adminPassword,omitempty"`
	MemoryLimitMB    int       `json:"memoryLimitMB"`
	StorageSizeMB    int       `json:"storageSizeMB"`
	ExposeExternally bool      `json:"exposeExternally"`
	PublicEndpoint   *Endpoint `json:"publicEndpoint,omitempty"`
	LastError        string    `json:"lastError,omitempty"`
	Version          int64     `json:"version"`
	UpdatedAt        time.Time `json:"updatedAt"`
}

// DatabaseRecord is a database hosted on a ServerRecord.
type DatabaseRecord struct {
	ID                   string         `json:"id"`
	ServerID             string         `json:"serverId"`
	Name                 string         `json:"name"`
	UserName             string         `json:"userName"`
	Password             string         `json:"password,omitempty"`
	MaxPrimaryFileSizeMB int            `json:"maxPrimaryFileSizeMB"`
	MaxLogFileSizeMB     int            `json:"maxLogFileSizeMB"`
	Action               Action         `json:"action"`
	Status               DatabaseStatus `json:"status"`
	LastError            string         `json:"lastError,omitempty"`
	Version              int64          `json:"version"`
	UpdatedAt            time.Time      `json:"updatedAt"`
}

// NeedsCreate reports whether the database sub-workflow should create it.
func (d *DatabaseRecord) NeedsCreate() bool {
	if d.Action == ActionDeprovision {
		return false
	}
	return d.Action == ActionProvision || d.Status == DatabasePending || d.Status == DatabaseFailed
}

// NeedsDrop reports whether the database has been asked to go away.
func (d *DatabaseRecord) NeedsDrop() bool {
	return d.Action == ActionDeprovision
}
