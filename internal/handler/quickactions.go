package handler

import (
	"net/http"

	"github.com/capitalize-ai/medical-assistant/internal/model"
)

// Disclaimer is shown beneath the chat input.
const Disclaimer = "AI provides informational guidance only. Consult a doctor for diagnosis."

// QuickActions are input shortcuts. Choosing one only pre-fills the input box.
var QuickActions = []string{
	"Book appointment",
	"Fever symptoms",
	"Emergency contact",
	"Clinic hours",
}

// ListQuickActions handles GET /api/v1/quick-actions
func ListQuickActions(w http.ResponseWriter, r *http.Request) {
	actions := make([]string, len(QuickActions))
	copy(actions, QuickActions)

	writeJSON(w, http.StatusOK, &model.QuickActionsResponse{
		Actions:    actions,
		Disclaimer: Disclaimer,
	})
}
