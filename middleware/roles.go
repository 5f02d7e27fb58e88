package middleware

import (
	"net/http"

	"github.com/MrEthical07/authclient"
)

// RequireRole admits users ranked at or above min.
func RequireRole(src SessionSource, guard authclient.Guard, min authclient.Role) func(http.Handler) http.Handler {
	return Guard(src, guard, authclient.RequireRole(min))
}

// RequireAdmin admits only ADMIN users.
func RequireAdmin(src SessionSource, guard authclient.Guard) func(http.Handler) http.Handler {
	return Guard(src, guard, authclient.RequireExactRole(authclient.RoleAdmin))
}
