package server

import (
	"net/http"

	"github.com/rs/cors"
)

// corsAllowHeaders are the request headers browser clients send.
var corsAllowHeaders = []string{"authorization", "x-client-info", "apikey", "content-type"}

var corsPolicy = cors.New(cors.Options{
	AllowedOrigins:       []string{"*"},
	AllowedMethods:       []string{http.MethodGet, http.MethodPost, http.MethodOptions},
	AllowedHeaders:       corsAllowHeaders,
	ExposedHeaders:       []string{RequestIDHeader},
	OptionsSuccessStatus: http.StatusOK,
})

// CORSMiddleware allows browser clients from any origin and answers
// preflight requests directly.
func CORSMiddleware(next http.Handler) http.Handler {
	return corsPolicy.Handler(next)
}
