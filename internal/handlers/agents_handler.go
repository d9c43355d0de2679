package handlers

import (
	"agentchat-backend/internal/agents"
	api_models "agentchat-backend/internal/models"
	"agentchat-backend/pkg/httputil"
	"net/http"
)

type AgentsHandler struct {
	catalog *agents.Catalog
}

func NewAgentsHandler(catalog *agents.Catalog) *AgentsHandler {
	return &AgentsHandler{catalog: catalog}
}

// HandleListAgents handles GET /v1/agents.
func (h *AgentsHandler) HandleListAgents(w http.ResponseWriter, r *http.Request) {
	resp := api_models.ListAgentsResponse{DefaultAgentID: h.catalog.DefaultAgentID()}
	for _, cat := range h.catalog.Categories() {
		out := api_models.AgentCategoryResponse{Name: cat.Name, Agents: make([]api_models.AgentResponse, 0, len(cat.Agents))}
		for _, a := range cat.Agents {
			out.Agents = append(out.Agents, toAgentResponse(a))
		}
		resp.Categories = append(resp.Categories, out)
	}
	httputil.RespondJSON(w, http.StatusOK, resp)
}

func toAgentResponse(a agents.Agent) api_models.AgentResponse {
	return api_models.AgentResponse{
		ID:       a.ID,
		Name:     a.Name,
		IconKey:  a.IconKey,
		ImageRef: a.ImageRef,
		Tagline:  a.Tagline,
	}
}
