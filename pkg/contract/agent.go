package contract

// AgentStepResult is one step of an agent strategy's execution, mirroring
// the shape of the teacher's types.StepResult / agent.AgentResult but
// streamed rather than returned in one shot (invoke-agent-strategy
// streams its progress back to the daemon).
type AgentStepResult struct {
	Text       string
	ToolCalls  []map[string]interface{}
	StepNumber int
}

// AgentStrategy is the contract a plugin-supplied agent strategy
// implements — generalized from the teacher's pkg/agent.Agent interface
// (Execute/ExecuteWithMessages returning a single AgentResult) into a
// streaming channel, since invoke-agent-strategy is a streaming action.
type AgentStrategy interface {
	Execute(rt RuntimeContext, messages []ModelMessage, parameters map[string]interface{}) (<-chan AgentStepResult, <-chan error)
}
