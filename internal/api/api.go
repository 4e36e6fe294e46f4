// Package api serves the keep administration HTTP API: listing peers by
// acceptance, inspecting and forgetting a peer, and applying manual
// accept/reject/pend overrides.
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	logging "github.com/ipfs/go-log/v2"

	"github.com/spacedatanetwork/sdn-keep/internal/keep"
	"github.com/spacedatanetwork/sdn-keep/internal/store"
)

var log = logging.Logger("sdn-keep-api")

// APIHandler provides HTTP endpoints for keep administration.
type APIHandler struct {
	safe *keep.SafeKeep
	road *keep.RoadKeep
	mux  *http.ServeMux

	// Browser origins allowed to call the API; requests carrying any other
	// Origin header are refused.
	allowedOrigins map[string]bool
}

// NewAPIHandler creates a new API handler. road may be nil.
func NewAPIHandler(safe *keep.SafeKeep, road *keep.RoadKeep) *APIHandler {
	h := &APIHandler{
		safe: safe,
		road: road,
		mux:  http.NewServeMux(),
	}
	h.setupRoutes()
	return h
}

// SetAllowedOrigins sets the browser origins that may call the API.
func (h *APIHandler) SetAllowedOrigins(origins []string) {
	h.allowedOrigins = make(map[string]bool, len(origins))
	for _, o := range origins {
		h.allowedOrigins[strings.TrimSuffix(o, "/")] = true
	}
}

// ServeHTTP implements http.Handler.
func (h *APIHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	// Requests without an Origin header come from non-browser clients.
	if origin := r.Header.Get("Origin"); origin != "" {
		w.Header().Add("Vary", "Origin")
		if !h.allowedOrigins[origin] {
			log.Warnf("Refused %s %s from origin %s", r.Method, r.URL.Path, origin)
			http.Error(w, "origin not allowed", http.StatusForbidden)
			return
		}
		w.Header().Set("Access-Control-Allow-Origin", origin)
		w.Header().Set("Access-Control-Allow-Methods", "GET, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
	}

	if r.Method == "OPTIONS" {
		w.WriteHeader(http.StatusOK)
		return
	}

	h.mux.ServeHTTP(w, r)
}

func (h *APIHandler) setupRoutes() {
	h.mux.HandleFunc("/api/local", h.handleLocal)
	h.mux.HandleFunc("/api/remotes", h.handleRemotes)
	h.mux.HandleFunc("/api/remotes/", h.handleRemoteByUID)
}

// LocalIdentity is the public half of this node's identity.
type LocalIdentity struct {
	UID               string `json:"uid"`
	Name              string `json:"name"`
	VerifyKeyHex      string `json:"verify_key_hex"`
	PublicKeyHex      string `json:"public_key_hex"`
	VerifyFingerprint string `json:"verify_fingerprint"`
	PublicFingerprint string `json:"public_fingerprint"`
	AutoAccept        bool   `json:"auto_accept"`
}

// RemoteView is a remote peer's trust record plus its routing facts, if any.
type RemoteView struct {
	keep.SafeRemoteRecord
	Road *keep.RoadRemoteRecord `json:"road,omitempty"`
}

// AcceptanceRequest is the request body for an acceptance override.
type AcceptanceRequest struct {
	Acceptance string `json:"acceptance"`
}

// handleLocal handles GET /api/local
func (h *APIHandler) handleLocal(w http.ResponseWriter, r *http.Request) {
	if r.Method != "GET" {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	local, err := h.safe.LocalPeer()
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, LocalIdentity{
		UID:               local.UID,
		Name:              local.Name,
		VerifyKeyHex:      local.Verifier().Hex(),
		PublicKeyHex:      local.Publican().Hex(),
		VerifyFingerprint: local.Verifier().Fingerprint(),
		PublicFingerprint: local.Publican().Fingerprint(),
		AutoAccept:        h.safe.AutoAccept(),
	})
}

// handleRemotes handles GET /api/remotes?acceptance=pending
func (h *APIHandler) handleRemotes(w http.ResponseWriter, r *http.Request) {
	if r.Method != "GET" {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	filter := keep.Absent
	if s := r.URL.Query().Get("acceptance"); s != "" {
		a, err := keep.ParseAcceptance(s)
		if err != nil {
			http.Error(w, "Invalid acceptance: "+err.Error(), http.StatusBadRequest)
			return
		}
		filter = a
	}

	recs, err := h.safe.ListRemotes(filter)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, recs)
}

// handleRemoteByUID handles /api/remotes/:uid endpoints
func (h *APIHandler) handleRemoteByUID(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/remotes/")
	parts := strings.Split(path, "/")

	if len(parts) == 0 || parts[0] == "" {
		http.Error(w, "Peer uid required", http.StatusBadRequest)
		return
	}
	uid := parts[0]

	if len(parts) > 1 {
		switch parts[1] {
		case "acceptance":
			h.handleAcceptance(w, r, uid)
		default:
			http.NotFound(w, r)
		}
		return
	}

	switch r.Method {
	case "GET":
		h.getRemote(w, r, uid)
	case "DELETE":
		h.forgetRemote(w, r, uid)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// getRemote returns a single peer.
func (h *APIHandler) getRemote(w http.ResponseWriter, r *http.Request, uid string) {
	rec, err := h.safe.LoadRemote(uid)
	if err != nil {
		writeError(w, err)
		return
	}
	if rec == nil {
		writeError(w, &keep.UnknownPeerError{UID: uid})
		return
	}

	view := RemoteView{SafeRemoteRecord: *rec}
	if h.road != nil {
		road, err := h.road.LoadRemote(uid)
		if err != nil {
			writeError(w, err)
			return
		}
		view.Road = road
	}
	writeJSON(w, view)
}

// forgetRemote removes a peer from both keeps.
func (h *APIHandler) forgetRemote(w http.ResponseWriter, r *http.Request, uid string) {
	if err := h.safe.ClearRemote(uid); err != nil {
		writeError(w, err)
		return
	}
	if h.road != nil {
		if err := h.road.ClearRemote(uid); err != nil {
			writeError(w, err)
			return
		}
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleAcceptance handles PUT /api/remotes/:uid/acceptance
func (h *APIHandler) handleAcceptance(w http.ResponseWriter, r *http.Request, uid string) {
	if r.Method != "PUT" {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req AcceptanceRequest
	if err := readJSON(r, &req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	a, err := keep.ParseAcceptance(req.Acceptance)
	if err != nil || a == keep.Absent {
		http.Error(w, "Invalid acceptance: "+req.Acceptance, http.StatusBadRequest)
		return
	}

	peer, err := h.safe.RemotePeer(uid)
	if err != nil {
		writeError(w, err)
		return
	}

	switch a {
	case keep.Accepted:
		err = h.safe.AcceptRemote(peer)
	case keep.Rejected:
		err = h.safe.RejectRemote(peer)
	case keep.Pending:
		err = h.safe.PendRemote(peer)
	}
	if err != nil {
		writeError(w, err)
		return
	}

	log.Infof("Peer %s set to %s via admin API (%s)", uid, a, r.RemoteAddr)
	h.getRemote(w, r, uid)
}

// Helper functions

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

func readJSON(r *http.Request, v interface{}) error {
	return json.NewDecoder(r.Body).Decode(v)
}

func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, keep.ErrUnknownPeer), errors.Is(err, keep.ErrKeyNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, store.ErrInvalidUID), errors.Is(err, keep.ErrIntegrity):
		http.Error(w, err.Error(), http.StatusBadRequest)
	default:
		log.Errorf("Request failed: %v", err)
		http.Error(w, "Internal error", http.StatusInternalServerError)
	}
}
