package hivesim

import "github.com/ethereum-optimism/infra/op-hivesim/simapi"

// StartOption is a parameter for starting a client.
type StartOption = simapi.StartOption

var (
	WithEnvironment     = simapi.WithEnvironment
	WithInitialNetworks = simapi.WithInitialNetworks
	WithStaticFiles     = simapi.WithStaticFiles
	WithDynamicFile     = simapi.WithDynamicFile
	Bundle              = simapi.Bundle
)
