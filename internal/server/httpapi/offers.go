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

const dateLayout = "2006-01-02"

type offerJSON struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	StartDate   string    `json:"start_date"`
	Duration    int       `json:"duration"`
	Skills      string    `json:"skills"`
	Mission     string    `json:"mission"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func toOfferJSON(o *models.InternshipOffer) offerJSON {
	return offerJSON{
		ID:          o.ID,
		Title:       o.Title,
		Description: o.Description,
		StartDate:   o.StartDate.Format(dateLayout),
		Duration:    o.DurationWeeks,
		Skills:      o.Skills,
		Mission:     o.Mission,
		CreatedAt:   o.CreatedAt,
		UpdatedAt:   o.UpdatedAt,
	}
}

type offerRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	StartDate   string `json:"start_date"`
	Duration    int    `json:"duration"`
	Skills      string `json:"skills"`
	Mission     string `json:"mission"`
}

func (req offerRequest) input() (services.OfferInput, error) {
	in := services.OfferInput{
		Title:         req.Title,
		Description:   req.Description,
		DurationWeeks: req.Duration,
		Skills:        req.Skills,
		Mission:       req.Mission,
	}
	if req.StartDate != "" {
		d, err := time.Parse(dateLayout, req.StartDate)
		if err != nil {
			return in, common.NewValidationError("start_date", "expected YYYY-MM-DD")
		}
		in.StartDate = d
	}
	return in, nil
}

func (h *handlers) listOffers(w http.ResponseWriter, r *http.Request) {
	list, err := h.Offers.List(r.Context(), auth.FromContext(r.Context()))
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	out := make([]offerJSON, 0, len(list))
	for i := range list {
		out = append(out, toOfferJSON(&list[i]))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *handlers) getOffer(w http.ResponseWriter, r *http.Request) {
	o, err := h.Offers.Get(r.Context(), auth.FromContext(r.Context()), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, toOfferJSON(o))
}

func (h *handlers) createOffer(w http.ResponseWriter, r *http.Request) {
	in, err := h.decodeOffer(w, r)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	o, err := h.Offers.Create(r.Context(), auth.FromContext(r.Context()), in)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusCreated, toOfferJSON(o))
}

func (h *handlers) updateOffer(w http.ResponseWriter, r *http.Request) {
	in, err := h.decodeOffer(w, r)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	o, err := h.Offers.Update(r.Context(), auth.FromContext(r.Context()), mux.Vars(r)["id"], in)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, toOfferJSON(o))
}

func (h *handlers) deleteOffer(w http.ResponseWriter, r *http.Request) {
	if err := h.Offers.Delete(r.Context(), auth.FromContext(r.Context()), mux.Vars(r)["id"]); err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handlers) decodeOffer(w http.ResponseWriter, r *http.Request) (services.OfferInput, error) {
	var req offerRequest
	if err := decodeJSON(w, r, &req); err != nil {
		return services.OfferInput{}, err
	}
	return req.input()
}
