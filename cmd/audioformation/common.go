package main

import (
	"errors"

	"github.com/socialawy/audioformation/internal/appconfig"
	"github.com/socialawy/audioformation/internal/pipelineerr"
	"github.com/socialawy/audioformation/internal/project"
	"github.com/socialawy/audioformation/internal/storage"
	"github.com/socialawy/audioformation/pkg/types"
)

// exitCodeFor maps a command failure to the process exit code §6
// specifies: 2 for a hard gate that hasn't passed, 1 for everything else.
func exitCodeFor(err error) int {
	var gateErr *pipelineerr.GateError
	if errors.As(err, &gateErr) {
		return 2
	}
	return 1
}

// openStore loads the service configuration and wraps its storage
// adapter as a project store, the pair every subcommand needs before it
// can touch a project.
func openStore() (*project.Store, *types.ServiceConfig, error) {
	cfg, err := appconfig.Load(configPath)
	if err != nil {
		return nil, nil, err
	}
	adapter, err := storage.NewAdapter(cfg.Storage)
	if err != nil {
		return nil, nil, err
	}
	return project.NewStore(adapter, cfg.ProjectsRoot), cfg, nil
}
