package shared

import (
	"net/http"
	"strconv"
)

// ActorID extracts the acting user's ID forwarded by the authentication
// layer. Zero when the gateway sent no identity (e.g. internal calls).
func ActorID(r *http.Request) int64 {
	id, _ := strconv.ParseInt(r.Header.Get("X-Actor-ID"), 10, 64)
	return id
}
