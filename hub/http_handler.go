package hub

import (
	"fmt"
	"log"
	"net/http"

	"github.com/ws-gateway/config"
	"github.com/ws-gateway/ratelimit"
)

// start http server ,this function must be in a routine
func httplisten(hub *Hub, conf *config.ServerConfig) {

	http.HandleFunc("/ws", hub.ServeWS)

	log.Println("listen on ", fmt.Sprintf("%s:%d", conf.ListenIP, conf.ListenPort))
	err := http.ListenAndServe(fmt.Sprintf("%s:%d", conf.ListenIP, conf.ListenPort), nil)

	if err != nil {
		log.Println("ListenAndServe: ", err)
		return
	}
}

// ServeWS authenticates the handshake and upgrades the connection. The
// identity comes from the signed token only, never from the payload.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")

	ident, err := h.verifier.Verify(token)
	if err != nil {
		log.Printf("authentication refused: %v", err)
		w.WriteHeader(http.StatusUnauthorized)
		return
	}

	if !h.limiter.Consume(ident.UserID, ratelimit.ActionConnection) {
		log.Printf("connection rate limit exceeded for %v", ident.UserID)
		w.WriteHeader(http.StatusTooManyRequests)
		return
	}

	serverIDs, err := h.snapshots.ServersOfUser(ident.UserID)
	if err != nil {
		log.Println(err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Println(err)
		return
	}

	session := newSession(h, ident, serverIDs)
	log.Printf("client %v connecting as %v", ident.UserID, session.ID())

	done := make(chan struct{}, 1)
	h.register <- &addSession{session: session, done: done}
	<-done

	// reads start only after the session is registered, so teardown always
	// finds it
	session.SetConnection(conn)
}
