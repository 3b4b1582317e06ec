package relay

import (
	"encoding/json"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Routes returns the relay's HTTP mux: the three room endpoints multiplexed
// by path on one listener, plus metrics and a voice presence listing.
func (r *Relay) Routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/", r.GeneralHandler)
	mux.HandleFunc("/p2p", r.P2PHandler)
	mux.HandleFunc("/voice", r.VoiceHandler)
	mux.HandleFunc("/voice/active", r.ActiveVoiceHandler)
	mux.Handle("/metrics", promhttp.Handler())
	return mux
}

// ActiveVoiceHandler lists the identities currently present in the voice
// room, as recorded in the presence store.
func (r *Relay) ActiveVoiceHandler(w http.ResponseWriter, req *http.Request) {
	ctx, cancel := r.storeCtx()
	defer cancel()

	users, err := r.presence.ActiveVoiceUsers(ctx)
	if err != nil {
		r.log.Error().Err(err).Msg("failed to list voice presence")
		http.Error(w, "presence unavailable", http.StatusServiceUnavailable)
		return
	}
	if users == nil {
		users = []string{}
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"users": users,
		"count": len(users),
	})
}
