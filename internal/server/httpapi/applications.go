package httpapi

import (
	"net/http"
	"time"

	"github.com/gin-org/sitebackend/internal/common"
	"github.com/gin-org/sitebackend/internal/server/auth"
	"github.com/gin-org/sitebackend/internal/server/models"
	"github.com/gin-org/sitebackend/internal/server/services"
	"github.com/gorilla/mux"
)

type applicationJSON struct {
	ID          string    `json:"id"`
	FirstName   string    `json:"first_name"`
	LastName    string    `json:"last_name"`
	Email       string    `json:"email"`
	Offer       string    `json:"offre"`
	CV          string    `json:"cv"`
	CoverLetter string    `json:"cover_letter"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func toApplicationJSON(a *models.InternshipApplication) applicationJSON {
	return applicationJSON{
		ID:          a.ID,
		FirstName:   a.FirstName,
		LastName:    a.LastName,
		Email:       a.Email,
		Offer:       a.OfferID,
		CV:          a.CVKey,
		CoverLetter: a.CoverLetterKey,
		Status:      string(a.Status),
		CreatedAt:   a.CreatedAt,
		UpdatedAt:   a.UpdatedAt,
	}
}

type submitApplicationRequest struct {
	FirstName   string `json:"first_name"`
	LastName    string `json:"last_name"`
	Email       string `json:"email"`
	Offer       string `json:"offre"`
	CV          string `json:"cv"`
	CoverLetter string `json:"cover_letter"`
}

func (h *handlers) submitApplication(w http.ResponseWriter, r *http.Request) {
	var req submitApplicationRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, h.Log, err)
		return
	}

	app, err := h.Applications.Submit(r.Context(), auth.FromContext(r.Context()), services.SubmitApplication{
		FirstName:      req.FirstName,
		LastName:       req.LastName,
		Email:          req.Email,
		OfferID:        req.Offer,
		CVKey:          req.CV,
		CoverLetterKey: req.CoverLetter,
	})
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusCreated, toApplicationJSON(app))
}

func (h *handlers) listApplications(w http.ResponseWriter, r *http.Request) {
	list, err := h.Applications.List(r.Context(), auth.FromContext(r.Context()), r.URL.Query().Get("offre"))
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	out := make([]applicationJSON, 0, len(list))
	for i := range list {
		out = append(out, toApplicationJSON(&list[i]))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *handlers) getApplication(w http.ResponseWriter, r *http.Request) {
	app, err := h.Applications.Get(r.Context(), auth.FromContext(r.Context()), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, toApplicationJSON(app))
}

func (h *handlers) deleteApplication(w http.ResponseWriter, r *http.Request) {
	if err := h.Applications.Delete(r.Context(), auth.FromContext(r.Context()), mux.Vars(r)["id"]); err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type updateStatusRequest struct {
	Status string `json:"status"`
}

func (h *handlers) updateStatus(w http.ResponseWriter, r *http.Request) {
	var req updateStatusRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, h.Log, err)
		return
	}

	app, err := h.Applications.SetStatus(r.Context(), auth.FromContext(r.Context()), mux.Vars(r)["id"], models.ApplicationStatus(req.Status))
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, toApplicationJSON(app))
}

type presignRequest struct {
	Kind string `json:"kind"`
}

type presignResponse struct {
	Key       string    `json:"key"`
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expires_at"`
}

func (h *handlers) presignUpload(w http.ResponseWriter, r *http.Request) {
	var req presignRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	if req.Kind == "" {
		writeError(w, r, h.Log, common.NewValidationError("kind", "this field is required"))
		return
	}

	up, err := h.Applications.PresignUpload(r.Context(), auth.FromContext(r.Context()), req.Kind)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, presignResponse{Key: up.Key, URL: up.URL, ExpiresAt: up.ExpiresAt})
}

func (h *handlers) attachmentURL(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	url, err := h.Applications.AttachmentURL(r.Context(), auth.FromContext(r.Context()), vars["id"], vars["kind"])
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"url": url})
}
