package cmd

import (
	"time"

	"github.com/loomgate/loomgate/internal/agentmanager"
	"github.com/loomgate/loomgate/internal/config"
	"github.com/loomgate/loomgate/internal/tools"
)

// buildToolRegistry wires the external tool-executor capability: exec,
// read_file, write_file, web_fetch. The spawn tool is registered separately
// by registerSpawnTool once the agentmanager.Manager exists, since it
// depends on that manager's construction.
func buildToolRegistry(cfg *config.Config) *tools.Registry {
	reg := tools.NewRegistry()

	execTool := tools.NewExecTool(cfg.Agent.Workspace)
	if cfg.Agent.ExecTimeout > 0 {
		execTool.WithTimeout(time.Duration(cfg.Agent.ExecTimeout) * time.Second)
	}
	if cfg.Agent.ExecMaxOutput > 0 {
		execTool.WithMaxOutput(cfg.Agent.ExecMaxOutput)
	}
	reg.Register(execTool)

	reg.Register(tools.NewReadFileTool(cfg.Agent.Workspace))
	reg.Register(tools.NewWriteFileTool(cfg.Agent.Workspace))
	reg.Register(tools.NewWebFetchTool())

	return reg
}

// registerSpawnTool adds spec §4.7's spawn tool to an already-built
// registry once the agentmanager.Manager it dispatches through exists.
// Registry.Register is safe to call after construction: it just takes the
// registry's mutex and writes into its map.
func registerSpawnTool(reg *tools.Registry, mgr *agentmanager.Manager, defaultTimeout time.Duration) {
	reg.Register(tools.NewSpawnTool(&spawnerAdapter{mgr: mgr}, defaultTimeout))
}
