package web

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/charadev96/ratewise/internal/pagination"
	server "github.com/charadev96/ratewise/internal/server/domain"
	"github.com/charadev96/ratewise/internal/server/service"
	shared "github.com/charadev96/ratewise/internal/shared/domain"
)

const defaultPageSize = 20

// pageRequest reads ?limit= and ?after=. A missing limit means
// defaultPageSize.
func pageRequest(r *http.Request) (pagination.Request, error) {
	req := pagination.Request{
		Limit: defaultPageSize,
		After: r.URL.Query().Get("after"),
	}
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return req, fmt.Errorf("%w: limit '%s' is not a number", pagination.ErrInvalidLimit, raw)
		}
		req.Limit = n
	}
	return req, nil
}

func uuidParam(r *http.Request, name string) (uuid.UUID, error) {
	raw := chi.URLParam(r, name)
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: '%s' is not a valid id", shared.ErrInvalidInput, raw)
	}
	return id, nil
}

func (h *Handler) listItems(w http.ResponseWriter, r *http.Request) {
	req, err := pageRequest(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	q := service.ItemListQuery{
		Filter: server.ItemFilter{Category: r.URL.Query().Get("category")},
		Page:   req,
	}
	if raw := r.URL.Query().Get("owner"); raw != "" {
		owner, err := uuid.Parse(raw)
		if err != nil {
			h.fail(w, r, fmt.Errorf("%w: owner '%s' is not a valid id", shared.ErrInvalidInput, raw))
			return
		}
		q.Filter.OwnerID = owner
	}

	page, err := h.Items.List(r.Context(), q)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, page)
}

func (h *Handler) getItem(w http.ResponseWriter, r *http.Request) {
	id, err := uuidParam(r, "id")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	it, err := h.Items.Get(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, it)
}

func (h *Handler) createItem(w http.ResponseWriter, r *http.Request) {
	var in service.ItemInput
	if err := decodeBody(w, r, &in); err != nil {
		h.fail(w, r, err)
		return
	}
	p := principalFrom(r.Context())
	it, err := h.Items.Create(r.Context(), p.user.ID, in)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusCreated, it)
}

func (h *Handler) updateItem(w http.ResponseWriter, r *http.Request) {
	id, err := uuidParam(r, "id")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	var upd server.ItemUpdate
	if err := decodeBody(w, r, &upd); err != nil {
		h.fail(w, r, err)
		return
	}
	p := principalFrom(r.Context())
	it, err := h.Items.Update(r.Context(), p.user, id, upd)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, it)
}

func (h *Handler) listReviews(w http.ResponseWriter, r *http.Request) {
	id, err := uuidParam(r, "id")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	req, err := pageRequest(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	page, err := h.Reviews.ListByItem(r.Context(), id, req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, page)
}

func (h *Handler) createReview(w http.ResponseWriter, r *http.Request) {
	id, err := uuidParam(r, "id")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	var in service.ReviewInput
	if err := decodeBody(w, r, &in); err != nil {
		h.fail(w, r, err)
		return
	}
	p := principalFrom(r.Context())
	rv, err := h.Reviews.Create(r.Context(), p.user.ID, id, in)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusCreated, rv)
}
