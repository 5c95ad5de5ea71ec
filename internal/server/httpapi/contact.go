package httpapi

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-org/sitebackend/internal/common"
	"github.com/gin-org/sitebackend/internal/server/auth"
	"github.com/gin-org/sitebackend/internal/server/models"
	"github.com/gin-org/sitebackend/internal/server/services"
)

type contactJSON struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Subject   string    `json:"subject"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"created_at"`
}

func toContactJSON(m *models.ContactMessage) contactJSON {
	return contactJSON{
		ID:        m.ID,
		Name:      m.Name,
		Email:     m.Email,
		Subject:   m.Subject,
		Message:   m.Message,
		CreatedAt: m.CreatedAt,
	}
}

type contactRequest struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Subject string `json:"subject"`
	Message string `json:"message"`
}

func (h *handlers) submitContact(w http.ResponseWriter, r *http.Request) {
	var req contactRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, h.Log, err)
		return
	}

	msg, err := h.Contact.Submit(r.Context(), auth.FromContext(r.Context()), services.ContactInput{
		Name:    req.Name,
		Email:   req.Email,
		Subject: req.Subject,
		Message: req.Message,
	})
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusCreated, toContactJSON(msg))
}

func (h *handlers) listContact(w http.ResponseWriter, r *http.Request) {
	list, err := h.Contact.List(r.Context(), auth.FromContext(r.Context()))
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	out := make([]contactJSON, 0, len(list))
	for i := range list {
		out = append(out, toContactJSON(&list[i]))
	}
	writeJSON(w, http.StatusOK, out)
}

type notificationFailureJSON struct {
	ID        int64     `json:"id"`
	Template  string    `json:"template"`
	Recipient string    `json:"recipient"`
	Cause     string    `json:"cause"`
	CreatedAt time.Time `json:"created_at"`
}

func (h *handlers) notificationFailures(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, r, h.Log, common.NewValidationError("limit", "must be a non-negative integer"))
			return
		}
		limit = n
	}

	list, err := h.Contact.NotificationFailures(r.Context(), auth.FromContext(r.Context()), limit)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	out := make([]notificationFailureJSON, 0, len(list))
	for _, f := range list {
		out = append(out, notificationFailureJSON{
			ID:        f.ID,
			Template:  f.Template,
			Recipient: f.Recipient,
			Cause:     f.Cause,
			CreatedAt: f.CreatedAt,
		})
	}
	writeJSON(w, http.StatusOK, out)
}
