package types

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIDString(t *testing.T) {
	assert.Equal(t, "0", SuiteID(0).String())
	assert.Equal(t, "4294967295", TestID(4294967295).String())
}

func TestClientDefinitionHasRole(t *testing.T) {
	def := ClientDefinition{Name: "trin", Meta: ClientMetadata{Roles: []string{"portal"}}}
	assert.True(t, def.HasRole("portal"))
	assert.False(t, def.HasRole("eth1"))
}

func TestParamsSetDoesNotMutate(t *testing.T) {
	base := Params{"HIVE_LOGLEVEL": "3"}
	derived := base.Set("HIVE_BOOTNODE", "enr:-abc")

	assert.Len(t, base, 1)
	assert.Equal(t, "enr:-abc", derived["HIVE_BOOTNODE"])
	assert.Equal(t, "3", derived["HIVE_LOGLEVEL"])
}

func TestNodeConfigWireFormat(t *testing.T) {
	data, err := json.Marshal(NodeConfig{Client: "fluffy", Environment: map[string]string{}})
	require.NoError(t, err)
	assert.JSONEq(t, `{"client":"fluffy","environment":{}}`, string(data))
}
