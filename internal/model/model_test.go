package model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPhaseOrdering(t *testing.T) {
	t.Parallel()

	ordered := []Phase{
		PhaseNone,
		PhaseReplicationResource,
		PhaseNetworkService,
		PhaseInitializeConfiguration,
		PhaseIngressRoute,
	}
	for i, p := range ordered {
		assert.Equal(t, i, int(p), "phase %s", p)
	}
}

func TestPhaseJSON(t *testing.T) {
	t.Parallel()

	data, err := json.Marshal(struct {
		Phase Phase `json:"phase"`
	}{PhaseNetworkService})
	require.NoError(t, err)
	assert.JSONEq(t, `{"phase":"NetworkService"}`, string(data))

	var decoded struct {
		Phase Phase `json:"phase"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"phase":"IngressRoute"}`), &decoded))
	assert.Equal(t, PhaseIngressRoute, decoded.Phase)

	assert.Error(t, json.Unmarshal([]byte(`{"phase":"Bogus"}`), &decoded))
}

func TestPhaseString_Unknown(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "Phase(9)", Phase(9).String())
	assert.False(t, Phase(9).Valid())
}

func TestMinMaxPhase(t *testing.T) {
	t.Parallel()
	assert.Equal(t, PhaseIngressRoute, MaxPhase(PhaseNetworkService, PhaseIngressRoute))
	assert.Equal(t, PhaseNetworkService, MinPhase(PhaseNetworkService, PhaseIngressRoute))
}

func TestParseAction(t *testing.T) {
	t.Parallel()

	a, err := ParseAction("Deprovision")
	require.NoError(t, err)
	assert.Equal(t, ActionDeprovision, a)

	_, err = ParseAction("Destroy")
	assert.Error(t, err)
}

func TestDatabaseRecord_Needs(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		record DatabaseRecord
		create bool
		drop   bool
	}{
		{"pending", DatabaseRecord{Status: DatabasePending}, true, false},
		{"ready", DatabaseRecord{Status: DatabaseReady}, false, false},
		{"failed retried", DatabaseRecord{Status: DatabaseFailed}, true, false},
		{"explicit provision", DatabaseRecord{Status: DatabaseReady, Action: ActionProvision}, true, false},
		{"deprovision", DatabaseRecord{Status: DatabaseReady, Action: ActionDeprovision}, false, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.create, tt.record.NeedsCreate())
			assert.Equal(t, tt.drop, tt.record.NeedsDrop())
		})
	}
}

func TestServerEvent(t *testing.T) {
	t.Parallel()

	ev := ServerEvent(&ServerRecord{ID: "s1", Phase: PhaseNetworkService, Status: StatusFailed, LastError: "boom"})
	assert.Equal(t, EntityServer, ev.EntityKind)
	assert.Equal(t, "s1", ev.EntityID)
	assert.Equal(t, "Failed", ev.Status)
	assert.Equal(t, "boom", ev.Error)
	assert.False(t, ev.Timestamp.IsZero())
}
