package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/haasonsaas/nexus-assistant/internal/pairing"
)

type authRequest struct {
	Code string `json:"code"`
}

// handleAuth implements POST /api/auth/{platform}: redeeming a pairing code
// issued to an unauthorized chat identity (§4.10, §6 acceptance scenario
// S6). The path's platform segment is checked against the redeemed
// identity's own platform so a code minted for one platform cannot be used
// to claim authorization on another.
func (s *Server) handleAuth(w http.ResponseWriter, r *http.Request) {
	platform := r.PathValue("platform")

	var req authRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Code == "" {
		http.Error(w, `{"error":"code is required"}`, http.StatusBadRequest)
		return
	}

	identity, err := s.pairing.Redeem(req.Code)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, pairing.ErrCodeNotFound) {
			status = http.StatusNotFound
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(map[string]any{"ok": false, "error": err.Error()})
		return
	}
	if identity.Platform != platform {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(map[string]any{"ok": false, "error": "code was not issued for this platform"})
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"ok":       true,
		"platform": identity.Platform,
		"user_id":  identity.UserID,
	})
}
