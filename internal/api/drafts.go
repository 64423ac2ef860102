package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/samber/lo"

	"github.com/ryfty/ryfty-payments/internal/wizard"
)

// DraftResponse is the wizard state returned to the browser.
type DraftResponse struct {
	Step    wizard.Step  `json:"step"`
	Steps   []string     `json:"steps"`
	IsFirst bool         `json:"is_first"`
	IsLast  bool         `json:"is_last"`
	Draft   wizard.Draft `json:"draft"`
}

var stepNames = lo.Map(wizard.Steps, func(s wizard.Step, _ int) string {
	return s.String()
})

func draftResponse(w *wizard.Wizard) DraftResponse {
	return DraftResponse{
		Step:    w.Step,
		Steps:   stepNames,
		IsFirst: w.IsFirst(),
		IsLast:  w.IsLast(),
		Draft:   w.Draft,
	}
}

// GetDraft handles GET /api/v1/experience-drafts
func (h *Handler) GetDraft(c *gin.Context) {
	w, err := h.drafts.Current(c.Request.Context())
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, draftResponse(w))
}

// UpdateDraftStep handles PUT /api/v1/experience-drafts/steps/:step
func (h *Handler) UpdateDraftStep(c *gin.Context) {
	step, err := wizard.ParseStep(c.Param("step"))
	if err != nil {
		handleServiceError(c, err)
		return
	}
	body, err := c.GetRawData()
	if err != nil {
		badRequest(c, err)
		return
	}

	w, err := h.drafts.UpdateStep(c.Request.Context(), step, body)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, draftResponse(w))
}

// NextDraftStep handles POST /api/v1/experience-drafts/next
func (h *Handler) NextDraftStep(c *gin.Context) {
	w, err := h.drafts.Next(c.Request.Context())
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, draftResponse(w))
}

// PreviousDraftStep handles POST /api/v1/experience-drafts/back
func (h *Handler) PreviousDraftStep(c *gin.Context) {
	w, err := h.drafts.Back(c.Request.Context())
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, draftResponse(w))
}

// SubmitDraft handles POST /api/v1/experience-drafts/submit
func (h *Handler) SubmitDraft(c *gin.Context) {
	id, err := h.drafts.Submit(c.Request.Context())
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"success":       true,
		"experience_id": id,
	})
}

// DiscardDraft handles DELETE /api/v1/experience-drafts
func (h *Handler) DiscardDraft(c *gin.Context) {
	if err := h.drafts.Discard(c.Request.Context()); err != nil {
		handleServiceError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
