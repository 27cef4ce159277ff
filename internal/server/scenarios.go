// Copyright (c) 2025 VodaCare Labs
// SPDX-License-Identifier: AGPL-3.0-or-later

package server

import (
	"net/http"

	"github.com/vodacare/support-chat/internal/model"
)

// scenarios is the fixed study catalog served by GET /api/scenarios.
var scenarios = []model.Scenario{
	{
		ID:          "scenario_001_esim_setup",
		Name:        "eSIM Setup",
		Topic:       "device",
		Description: "Get help setting up an eSIM on your device",
		Context:     "You want to activate an eSIM but need guidance on compatibility and setup steps.",
	},
	{
		ID:          "scenario_002_roaming_activation",
		Name:        "EU Roaming Activation",
		Topic:       "roaming",
		Description: "Learn how to activate roaming for EU travel",
		Context:     "You're traveling to the EU and need to understand roaming charges and activation.",
	},
	{
		ID:          "scenario_003_billing_dispute",
		Name:        "Billing Dispute",
		Topic:       "billing",
		Description: "Resolve an issue with your bill",
		Context:     "You've noticed unexpected charges on your bill and want them explained or corrected.",
	},
	{
		ID:          "scenario_004_plan_upgrade",
		Name:        "Plan Upgrade",
		Topic:       "plans",
		Description: "Find the best plan for your needs",
		Context:     "Your current plan isn't meeting your needs and you want to explore upgrade options.",
	},
	{
		ID:          "scenario_005_network_issue",
		Name:        "Network Issue",
		Topic:       "network",
		Description: "Fix connectivity or signal problems",
		Context:     "You're experiencing poor signal or connection issues and need troubleshooting help.",
	},
}

// handleHealth reports liveness and the configured provider.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":   "ok",
		"provider": s.cfg.Provider,
	})
}

// handleScenarios serves the fixed scenario catalog.
func (s *Server) handleScenarios(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"scenarios": scenarios})
}
