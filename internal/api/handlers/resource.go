package handlers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/rohits-web03/opsdash/internal/repositories"
	"github.com/rohits-web03/opsdash/internal/utils"
)

// resource implements list/get/create/update/delete for one entity type.
// I is the validated request body; apply copies it onto the model.
type resource[T any, I any] struct {
	h       *Handler
	name    string
	repo    *repositories.Repository[T]
	filters map[string]string
	apply   func(I, *T)
	refs    func(*http.Request, *I) error
}

func (rs *resource[T, I]) list(w http.ResponseWriter, r *http.Request) {
	opts, err := listOptions(r, rs.filters)
	if err != nil {
		rs.h.fail(w, r, err)
		return
	}
	items, total, err := rs.repo.List(r.Context(), opts)
	if err != nil {
		rs.h.fail(w, r, err)
		return
	}
	respond(w, http.StatusOK, rs.name+" list retrieved", utils.Page[T]{
		Items: items,
		Total: total,
		Page:  opts.Page,
		Limit: opts.Limit,
	})
}

func (rs *resource[T, I]) get(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		rs.h.fail(w, r, err)
		return
	}
	item, err := rs.repo.Get(r.Context(), id)
	if err != nil {
		rs.h.fail(w, r, err)
		return
	}
	respond(w, http.StatusOK, rs.name+" retrieved", item)
}

func (rs *resource[T, I]) decode(r *http.Request) (*I, error) {
	in := new(I)
	if err := rs.h.decodeJSON(r, in); err != nil {
		return nil, err
	}
	if rs.refs != nil {
		if err := rs.refs(r, in); err != nil {
			return nil, err
		}
	}
	return in, nil
}

func (rs *resource[T, I]) create(w http.ResponseWriter, r *http.Request) {
	in, err := rs.decode(r)
	if err != nil {
		rs.h.fail(w, r, err)
		return
	}

	item := new(T)
	rs.apply(*in, item)
	if err := rs.repo.Create(r.Context(), item); err != nil {
		rs.h.fail(w, r, err)
		return
	}
	// re-read so relations are populated
	if id, ok := idOf(item); ok {
		if fresh, err := rs.repo.Get(r.Context(), id); err == nil {
			item = fresh
		}
	}
	respond(w, http.StatusCreated, rs.name+" created", item)
}

func (rs *resource[T, I]) update(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		rs.h.fail(w, r, err)
		return
	}
	in, err := rs.decode(r)
	if err != nil {
		rs.h.fail(w, r, err)
		return
	}

	item, err := rs.repo.Get(r.Context(), id)
	if err != nil {
		rs.h.fail(w, r, err)
		return
	}
	rs.apply(*in, item)
	if err := rs.repo.Update(r.Context(), item); err != nil {
		rs.h.fail(w, r, err)
		return
	}
	if fresh, err := rs.repo.Get(r.Context(), id); err == nil {
		item = fresh
	}
	respond(w, http.StatusOK, rs.name+" updated", item)
}

func (rs *resource[T, I]) remove(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		rs.h.fail(w, r, err)
		return
	}
	if err := rs.repo.Delete(r.Context(), id); err != nil {
		rs.h.fail(w, r, err)
		return
	}
	respond(w, http.StatusOK, rs.name+" deleted", nil)
}

func idOf(item any) (uuid.UUID, bool) {
	k, ok := item.(interface{ Key() uuid.UUID })
	if !ok {
		return uuid.Nil, false
	}
	return k.Key(), true
}
