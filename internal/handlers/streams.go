package handlers

import (
	"context"
	"net/http"

	"github.com/streamr/backend/internal/auth"
	"github.com/streamr/backend/internal/models"
	"github.com/streamr/backend/internal/streams"
)

// StreamHandler exposes stream CRUD and visibility transitions.
type StreamHandler struct {
	Streams StreamService
}

type streamEnvelope struct {
	Msg    string         `json:"msg,omitempty"`
	Stream streamResponse `json:"stream"`
}

// Create handles POST /movies/{id}/streams.
func (h StreamHandler) Create(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity := auth.IdentityFromContext(ctx)
	if err := h.Streams.AuthorizeCreate(ctx, identity, r.PathValue("id")); err != nil {
		writeError(ctx, w, err)
		return
	}

	var in streams.StreamInput
	if err := decodeJSON(r, &in); err != nil {
		invalidBody(ctx, w, err)
		return
	}

	stream, err := h.Streams.Create(ctx, identity, r.PathValue("id"), in)
	if err != nil {
		writeError(ctx, w, err)
		return
	}
	respondJSON(ctx, w, http.StatusCreated, streamEnvelope{Msg: "Stream created.", Stream: newStreamResponse(stream)})
}

// Get handles GET /streams/{id}.
func (h StreamHandler) Get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	stream, err := h.Streams.Get(ctx, auth.IdentityFromContext(ctx), r.PathValue("id"))
	if err != nil {
		writeError(ctx, w, err)
		return
	}
	respondJSON(ctx, w, http.StatusOK, streamEnvelope{Stream: newStreamResponse(stream)})
}

// Update handles PUT /streams/{id}.
func (h StreamHandler) Update(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity := auth.IdentityFromContext(ctx)
	if err := h.Streams.AuthorizeStream(ctx, identity, r.PathValue("id")); err != nil {
		writeError(ctx, w, err)
		return
	}

	var in streams.StreamInput
	if err := decodeJSON(r, &in); err != nil {
		invalidBody(ctx, w, err)
		return
	}

	stream, err := h.Streams.Update(ctx, identity, r.PathValue("id"), in)
	if err != nil {
		writeError(ctx, w, err)
		return
	}
	respondJSON(ctx, w, http.StatusOK, streamEnvelope{Msg: "Stream updated.", Stream: newStreamResponse(stream)})
}

// Delete handles DELETE /streams/{id}.
func (h StreamHandler) Delete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if err := h.Streams.Delete(ctx, auth.IdentityFromContext(ctx), r.PathValue("id")); err != nil {
		writeError(ctx, w, err)
		return
	}
	respondMessage(ctx, w, http.StatusOK, "Stream deleted.")
}

// Publish handles POST /streams/{id}/publish.
func (h StreamHandler) Publish(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.Streams.Publish, "Stream published.")
}

// Unpublish handles POST /streams/{id}/unpublish.
func (h StreamHandler) Unpublish(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.Streams.Unpublish, "Stream unpublished.")
}

func (h StreamHandler) transition(w http.ResponseWriter, r *http.Request, apply func(context.Context, auth.Identity, string) (models.Stream, error), msg string) {
	ctx := r.Context()
	stream, err := apply(ctx, auth.IdentityFromContext(ctx), r.PathValue("id"))
	if err != nil {
		writeError(ctx, w, err)
		return
	}
	respondJSON(ctx, w, http.StatusOK, streamEnvelope{Msg: msg, Stream: newStreamResponse(stream)})
}

// ListEntries handles GET /streams/{id}/entries.
func (h StreamHandler) ListEntries(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	entries, err := h.Streams.ListEntries(ctx, auth.IdentityFromContext(ctx), r.PathValue("id"))
	if err != nil {
		writeError(ctx, w, err)
		return
	}

	resp := make([]entryResponse, 0, len(entries))
	for _, e := range entries {
		resp = append(resp, newEntryResponse(e))
	}
	respondJSON(ctx, w, http.StatusOK, map[string][]entryResponse{"entries": resp})
}

// CreateEntry handles POST /streams/{id}/entries.
func (h StreamHandler) CreateEntry(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity := auth.IdentityFromContext(ctx)
	if err := h.Streams.AuthorizeStream(ctx, identity, r.PathValue("id")); err != nil {
		writeError(ctx, w, err)
		return
	}

	var in streams.EntryInput
	if err := decodeJSON(r, &in); err != nil {
		invalidBody(ctx, w, err)
		return
	}

	entry, err := h.Streams.CreateEntry(ctx, identity, r.PathValue("id"), in)
	if err != nil {
		writeError(ctx, w, err)
		return
	}
	respondJSON(ctx, w, http.StatusCreated, entryEnvelope{Msg: "Entry created.", Entry: newEntryResponse(entry)})
}
