package api

import (
	"fmt"
	"net/http"

	"github.com/gmoorevt/socialstyles/internal/models"
	"github.com/gmoorevt/socialstyles/internal/services"
)

// GET /api/assessments/active
func (rt *Router) handleActiveAssessment(w http.ResponseWriter, r *http.Request) {
	a, err := rt.Assessments.Active(r.Context())
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

// GET /api/assessments
func (rt *Router) handleListAssessments(w http.ResponseWriter, r *http.Request) {
	list, err := rt.Assessments.List(r.Context())
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"assessments": list})
}

// POST /api/results
// { assessment_id?: string, responses: {"1": 3, ...} }
func (rt *Router) handleSubmit(w http.ResponseWriter, r *http.Request) {
	var req struct {
		AssessmentID string             `json:"assessment_id"`
		Responses    models.ResponseSet `json:"responses"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		rt.writeError(w, r, err)
		return
	}
	res, err := rt.Assessments.Submit(r.Context(), currentUser(r), req.AssessmentID, req.Responses)
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	x, y := services.GridPosition(res.AssertivenessScore, res.ResponsivenessScore)
	writeJSON(w, http.StatusCreated, map[string]any{"result": res, "x": x, "y": y})
}

// GET /api/results
func (rt *Router) handleListResults(w http.ResponseWriter, r *http.Request) {
	list, err := rt.Assessments.ListResults(r.Context(), currentUser(r))
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"results": list})
}

// GET /api/results/{id}
func (rt *Router) handleGetResult(w http.ResponseWriter, r *http.Request) {
	res, err := rt.Assessments.GetResult(r.Context(), currentUser(r), r.PathValue("id"))
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// GET /api/results/{id}/report?format=json|text
func (rt *Router) handleReport(w http.ResponseWriter, r *http.Request) {
	rep, err := rt.Assessments.Report(r.Context(), currentUser(r), r.PathValue("id"))
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	switch r.URL.Query().Get("format") {
	case "", "json":
		writeJSON(w, http.StatusOK, rep)
	case "text":
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=social_style_report_%s.txt", rep.Result.ID))
		_, _ = w.Write([]byte(services.RenderReportText(*rep)))
	default:
		rt.writeError(w, r, services.NewInvalidError("unsupported format"))
	}
}
