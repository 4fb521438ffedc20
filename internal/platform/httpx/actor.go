package httpx

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/nusantara-erp/nusantara-erp/internal/shared"
)

// Identity headers set by the trusted gateway in front of this service.
// Requests that bypass the gateway carry no identity and fail every
// capability check.
const (
	HeaderActorID          = "X-Actor-Id"
	HeaderActorName        = "X-Actor-Name"
	HeaderActorPermissions = "X-Actor-Permissions"
)

// Actor builds the acting identity from request headers. Permissions arrive
// comma-separated.
func Actor(r *http.Request) shared.Actor {
	id, _ := strconv.ParseInt(r.Header.Get(HeaderActorID), 10, 64)
	name := r.Header.Get(HeaderActorName)
	var perms []string
	for _, p := range strings.Split(r.Header.Get(HeaderActorPermissions), ",") {
		if p = strings.TrimSpace(p); p != "" {
			perms = append(perms, p)
		}
	}
	return shared.NewActor(id, name, perms...)
}
