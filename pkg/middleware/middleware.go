// Package middleware holds HTTP middlewares that do not depend on the domain.
package middleware

import "net/http"

type Middleware func(next http.Handler) http.Handler
