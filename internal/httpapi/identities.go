package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/BrandonDHaskell/Portunus/gate/internal/gate/types"
)

func (s *Server) handleListIdentities(w http.ResponseWriter, r *http.Request) {
	ids, err := s.identities.List(r.Context(), r.URL.Query().Get("q"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, identityViews(ids))
}

func (s *Server) handleCreateIdentity(w http.ResponseWriter, r *http.Request) {
	var req types.IdentityRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_json", "invalid JSON body")
		return
	}
	id, err := s.identities.Create(r.Context(), req)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, identityView(id))
}

func (s *Server) handleGetIdentity(w http.ResponseWriter, r *http.Request) {
	id, err := s.identities.Get(r.Context(), chi.URLParam(r, "identity_id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, identityView(id))
}

func (s *Server) handleUpdateIdentity(w http.ResponseWriter, r *http.Request) {
	var req types.IdentityRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_json", "invalid JSON body")
		return
	}
	id, err := s.identities.Update(r.Context(), chi.URLParam(r, "identity_id"), req)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, identityView(id))
}

func (s *Server) handleDeleteIdentity(w http.ResponseWriter, r *http.Request) {
	if err := s.identities.Delete(r.Context(), chi.URLParam(r, "identity_id")); err != nil {
		s.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleSetDescriptor(w http.ResponseWriter, r *http.Request) {
	var req types.DescriptorRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_json", "invalid JSON body")
		return
	}
	id, err := s.identities.SetDescriptor(r.Context(), chi.URLParam(r, "identity_id"), req.Descriptor)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, identityView(id))
}

func (s *Server) handleIdentityQR(w http.ResponseWriter, r *http.Request) {
	png, err := s.identities.QRCode(r.Context(), chi.URLParam(r, "identity_id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(png)
}
