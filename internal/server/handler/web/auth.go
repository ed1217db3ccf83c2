package web

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	server "github.com/charadev96/ratewise/internal/server/domain"
	"github.com/charadev96/ratewise/internal/server/service"
	"github.com/charadev96/ratewise/internal/session"
)

type userView struct {
	ID        uuid.UUID            `json:"id"`
	Name      string               `json:"name"`
	Email     string               `json:"email"`
	Roles     []server.Role        `json:"roles"`
	Status    server.AccountStatus `json:"status"`
	CreatedAt time.Time            `json:"createdAt"`
}

func viewUser(u server.User) userView {
	return userView{
		ID:        u.ID,
		Name:      u.Name,
		Email:     u.Email,
		Roles:     u.Roles,
		Status:    u.Status,
		CreatedAt: u.CreatedAt,
	}
}

func (h *Handler) signUp(w http.ResponseWriter, r *http.Request) {
	var in service.SignUpInput
	if err := decodeBody(w, r, &in); err != nil {
		h.fail(w, r, err)
		return
	}
	sess := h.Auth.Resume(r.Context(), session.FromRequest(r, h.Cookie.Name))
	usr, err := h.Auth.SignUp(r.Context(), sess, in)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	session.SetCookie(w, sess.ID, h.Cookie)
	writeJSON(w, r, http.StatusCreated, viewUser(usr))
}

func (h *Handler) signIn(w http.ResponseWriter, r *http.Request) {
	var in service.SignInInput
	if err := decodeBody(w, r, &in); err != nil {
		h.fail(w, r, err)
		return
	}
	sess := h.Auth.Resume(r.Context(), session.FromRequest(r, h.Cookie.Name))
	usr, err := h.Auth.SignIn(r.Context(), sess, in)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	session.SetCookie(w, sess.ID, h.Cookie)
	writeJSON(w, r, http.StatusOK, viewUser(usr))
}

func (h *Handler) signOut(w http.ResponseWriter, r *http.Request) {
	p := principalFrom(r.Context())
	h.Auth.SignOut(r.Context(), p.session)
	session.ClearCookie(w, h.Cookie)
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) signOutAll(w http.ResponseWriter, r *http.Request) {
	p := principalFrom(r.Context())
	n, err := h.Auth.SignOutAll(r.Context(), p.session)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	session.ClearCookie(w, h.Cookie)
	writeJSON(w, r, http.StatusOK, map[string]int{"sessions": n})
}

func (h *Handler) me(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, viewUser(principalFrom(r.Context()).user))
}
