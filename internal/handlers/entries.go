package handlers

import (
	"net/http"

	"github.com/streamr/backend/internal/auth"
	"github.com/streamr/backend/internal/streams"
)

// EntryHandler exposes single-entry endpoints. Access follows the parent stream.
type EntryHandler struct {
	Streams StreamService
}

type entryEnvelope struct {
	Msg   string        `json:"msg,omitempty"`
	Entry entryResponse `json:"entry"`
}

// Get handles GET /entries/{id}.
func (h EntryHandler) Get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	entry, err := h.Streams.GetEntry(ctx, auth.IdentityFromContext(ctx), r.PathValue("id"))
	if err != nil {
		writeError(ctx, w, err)
		return
	}
	respondJSON(ctx, w, http.StatusOK, entryEnvelope{Entry: newEntryResponse(entry)})
}

// Update handles PUT /entries/{id}.
func (h EntryHandler) Update(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity := auth.IdentityFromContext(ctx)
	if err := h.Streams.AuthorizeEntry(ctx, identity, r.PathValue("id")); err != nil {
		writeError(ctx, w, err)
		return
	}

	var in streams.EntryInput
	if err := decodeJSON(r, &in); err != nil {
		invalidBody(ctx, w, err)
		return
	}

	entry, err := h.Streams.UpdateEntry(ctx, identity, r.PathValue("id"), in)
	if err != nil {
		writeError(ctx, w, err)
		return
	}
	respondJSON(ctx, w, http.StatusOK, entryEnvelope{Msg: "Entry updated.", Entry: newEntryResponse(entry)})
}

// Delete handles DELETE /entries/{id}.
func (h EntryHandler) Delete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if err := h.Streams.DeleteEntry(ctx, auth.IdentityFromContext(ctx), r.PathValue("id")); err != nil {
		writeError(ctx, w, err)
		return
	}
	respondMessage(ctx, w, http.StatusOK, "Entry deleted.")
}
