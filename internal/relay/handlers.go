package relay

import (
	"fmt"
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/oklog/ulid/v2"
)

func (r *Relay) upgrader() websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     r.origins.check,
	}
}

// GeneralHandler serves the root path: plain HTTP requests get a health
// banner, WebSocket upgrades join the general broadcast room. The general
// room has no handshake requirement; connections get an anonymous identity
// for the registry table.
func (r *Relay) GeneralHandler(w http.ResponseWriter, req *http.Request) {
	if !websocket.IsWebSocketUpgrade(req) {
		w.Header().Set("Content-Type", "text/plain")
		_, _ = fmt.Fprint(w, "Socket relay is running")
		return
	}

	conn, err := r.upgrade(w, req)
	if err != nil {
		return
	}

	c := newClient(conn, r, RoomGeneral, ulid.Make().String(), req.RemoteAddr)
	r.attach(c)
}

// P2PHandler serves the directed-messaging room. The handshake requires a
// userId query parameter; a connection without one is closed immediately
// with no state created.
func (r *Relay) P2PHandler(w http.ResponseWriter, req *http.Request) {
	conn, err := r.upgrade(w, req)
	if err != nil {
		return
	}

	userID := req.URL.Query().Get("userId")
	if userID == "" {
		r.rejectHandshake(conn, "p2p connection rejected: missing userId")
		return
	}

	c := newClient(conn, r, RoomP2P, userID, req.RemoteAddr)
	r.attach(c)
}

// VoiceHandler serves the signaling room. Same handshake requirement as
// p2p, plus a presence upsert on join.
func (r *Relay) VoiceHandler(w http.ResponseWriter, req *http.Request) {
	conn, err := r.upgrade(w, req)
	if err != nil {
		return
	}

	userID := req.URL.Query().Get("userId")
	if userID == "" {
		r.rejectHandshake(conn, "voice connection rejected: missing userId")
		return
	}

	c := newClient(conn, r, RoomVoice, userID, req.RemoteAddr)
	r.joinVoice(c)
}

func (r *Relay) upgrade(w http.ResponseWriter, req *http.Request) (*websocket.Conn, error) {
	u := r.upgrader()
	conn, err := u.Upgrade(w, req, nil)
	if err != nil {
		r.log.Warn().Err(err).Str("path", req.URL.Path).Msg("websocket upgrade failed")
		return nil, err
	}
	return conn, nil
}

// rejectHandshake closes a freshly upgraded connection whose handshake
// failed, mirroring the close-after-accept behavior clients expect.
func (r *Relay) rejectHandshake(conn *websocket.Conn, reason string) {
	r.log.Warn().Msg(reason)
	msg := websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "userId required")
	_ = conn.WriteMessage(websocket.CloseMessage, msg)
	_ = conn.Close()
}
