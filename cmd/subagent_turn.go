package cmd

import (
	"context"
	"fmt"

	"github.com/loomgate/loomgate/internal/chatmodel"
	"github.com/loomgate/loomgate/internal/orchestrator"
	"github.com/loomgate/loomgate/internal/providers"
	"github.com/loomgate/loomgate/internal/tools"
)

// isolatedTurnExecutor implements agentmanager.TurnExecutor: a throwaway
// conversation (system prompt + one user task) run to completion against
// the shared ProviderChain and tool registry, the same tool-calling loop
// shape as orchestrator.runRounds but with nothing persisted to a
// store.SessionStore — a sub-agent run has no location of its own.
type isolatedTurnExecutor struct {
	chain         *providers.ProviderChain
	tools         *tools.Registry
	toolDefs      []providers.ToolDefinition
	systemPrompt  string
	maxToolRounds int
	temperature   float64
	maxTokens     int
}

func newIsolatedTurnExecutor(chain *providers.ProviderChain, reg *tools.Registry, systemPrompt string, maxToolRounds int) *isolatedTurnExecutor {
	if maxToolRounds <= 0 {
		maxToolRounds = orchestrator.DefaultMaxToolRounds
	}
	return &isolatedTurnExecutor{
		chain:         chain,
		tools:         reg,
		toolDefs:      reg.Definitions(),
		systemPrompt:  systemPrompt,
		maxToolRounds: maxToolRounds,
		temperature:   0.7,
		maxTokens:     4096,
	}
}

// RunIsolatedTurn implements agentmanager.TurnExecutor.
func (e *isolatedTurnExecutor) RunIsolatedTurn(ctx context.Context, task, model string) (string, error) {
	conversation := []chatmodel.Message{
		chatmodel.NewSystem(e.systemPrompt),
		chatmodel.NewUser(task),
	}

	for round := 1; round <= e.maxToolRounds; round++ {
		req := providers.ChatRequest{
			Messages:    conversation,
			Tools:       e.toolDefs,
			Model:       model,
			Temperature: e.temperature,
			MaxTokens:   e.maxTokens,
		}

		resp, err := e.chain.Chat(ctx, req)
		if err != nil {
			return "", fmt.Errorf("subagent turn (round %d): %w", round, err)
		}

		assistantMsg := chatmodel.NewAssistant(resp.Content, resp.ToolCalls)
		conversation = append(conversation, assistantMsg)

		if len(resp.ToolCalls) == 0 {
			return resp.Content, nil
		}

		for _, tc := range resp.ToolCalls {
			result, _ := e.tools.Execute(ctx, tc.Name, tc.Arguments)
			conversation = append(conversation, chatmodel.NewToolResult(tc.ID, tc.Name, result))
		}
	}

	return "Reached maximum tool-call rounds without completing the task.", nil
}

// orchestratorDeliverer implements agentmanager.Deliverer by feeding a
// completed sub-agent's result back into its target location as a regular
// inbound turn — the receiving persona sees it as a user message in that
// location's session and can act on or relay it, rather than it bypassing the orchestrator's
// persistence and reply-chunking entirely.
type orchestratorDeliverer struct {
	orch *orchestrator.Orchestrator
}

func newOrchestratorDeliverer(orch *orchestrator.Orchestrator) *orchestratorDeliverer {
	return &orchestratorDeliverer{orch: orch}
}

// Deliver implements agentmanager.Deliverer.
func (d *orchestratorDeliverer) Deliver(ctx context.Context, targetLocation, text string) error {
	_, err := d.orch.HandleMessage(ctx, targetLocation, text)
	return err
}
