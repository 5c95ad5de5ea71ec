package httpapi

import (
	"net/http"
	"time"

	"github.com/gin-org/sitebackend/internal/server/auth"
	"github.com/gin-org/sitebackend/internal/server/models"
	"github.com/gorilla/mux"
)

type accountJSON struct {
	ID          string    `json:"id"`
	Username    string    `json:"username"`
	Email       string    `json:"email"`
	IsActive    bool      `json:"is_active"`
	IsSuperuser bool      `json:"is_superuser"`
	CreatedAt   time.Time `json:"created_at"`
}

func toAccountJSON(a *models.Account) accountJSON {
	return accountJSON{
		ID:          a.ID,
		Username:    a.Username,
		Email:       a.Email,
		IsActive:    a.IsActive,
		IsSuperuser: a.IsSuperuser,
		CreatedAt:   a.CreatedAt,
	}
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type tokenResponse struct {
	Access          string       `json:"access"`
	AccessExpiresAt time.Time    `json:"access_expires_at"`
	Refresh         string       `json:"refresh,omitempty"`
	User            *accountJSON `json:"user,omitempty"`
}

func (h *handlers) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, h.Log, err)
		return
	}

	res, err := h.Accounts.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     h.SessionCookieName,
		Value:    res.Session.ID,
		Path:     "/",
		Expires:  res.Session.ExpiresAt,
		HttpOnly: true,
		Secure:   h.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	})

	user := toAccountJSON(res.Account)
	writeJSON(w, http.StatusOK, tokenResponse{
		Access:          res.Tokens.AccessToken,
		AccessExpiresAt: res.Tokens.AccessExpiresAt,
		Refresh:         res.Tokens.RefreshToken,
		User:            &user,
	})
}

func (h *handlers) logout(w http.ResponseWriter, r *http.Request) {
	id := auth.FromContext(r.Context())
	if err := h.Accounts.Logout(r.Context(), id, sessionID(r, h.SessionCookieName), bearerToken(r)); err != nil {
		writeError(w, r, h.Log, err)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     h.SessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	})
	w.WriteHeader(http.StatusNoContent)
}

type refreshRequest struct {
	Refresh string `json:"refresh"`
}

func (h *handlers) refresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, h.Log, err)
		return
	}

	pair, err := h.Accounts.Refresh(r.Context(), req.Refresh)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, tokenResponse{
		Access:          pair.AccessToken,
		AccessExpiresAt: pair.AccessExpiresAt,
		Refresh:         pair.RefreshToken,
	})
}

func (h *handlers) profile(w http.ResponseWriter, r *http.Request) {
	p, err := h.Accounts.Profile(r.Context(), auth.FromContext(r.Context()))
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"user":             toAccountJSON(p.Account),
		"is_administrator": p.IsAdministrator,
	})
}

func (h *handlers) listAdministrators(w http.ResponseWriter, r *http.Request) {
	list, err := h.Accounts.ListAdministrators(r.Context(), auth.FromContext(r.Context()))
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	out := make([]accountJSON, 0, len(list))
	for i := range list {
		out = append(out, toAccountJSON(&list[i]))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *handlers) grantAdministrator(w http.ResponseWriter, r *http.Request) {
	err := h.Accounts.GrantAdministrator(r.Context(), auth.FromContext(r.Context()), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handlers) revokeAdministrator(w http.ResponseWriter, r *http.Request) {
	err := h.Accounts.RevokeAdministrator(r.Context(), auth.FromContext(r.Context()), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
