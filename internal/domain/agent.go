package domain

import "context"

// AgentPersona is the fixed role, goal and backstory given to the model.
type AgentPersona struct {
	Role      string `json:"role"      yaml:"role"`
	Goal      string `json:"goal"      yaml:"goal"`
	Backstory string `json:"backstory" yaml:"backstory"`
}

// AgentResponse is the envelope returned for one query.
type AgentResponse struct {
	Query   string `json:"query"`
	Summary string `json:"summary"`
}

// AgentRunner turns a query into a synthesized summary.
type AgentRunner interface {
	Run(ctx context.Context, query string) (*AgentResponse, error)
}
