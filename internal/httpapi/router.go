// Package httpapi wires the gateway's paid byte-range route and its admin
// CRUD routes onto a chi router, with permissive CORS and the
// {"status":...,"data":...} envelope shared by every admin response.
package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"

	"github.com/xbyte-labs/byte-gateway/internal/adminauth"
	"github.com/xbyte-labs/byte-gateway/internal/gateway"
)

// Version is reported by GET /.
const Version = "v1"

// NewRouter builds the full route table.
func NewRouter(gw *gateway.Gateway, issuer *adminauth.Issuer, debugRoutes bool) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	h := &handlers{gw: gw}

	r.Get("/", h.index)
	r.Get("/health", h.health)

	r.Get("/s3/bucket/{bucket}/object/{object}", h.servePaidObject)

	if debugRoutes {
		r.Post("/debug/content", h.debugSetContent)
	}

	r.Group(func(r chi.Router) {
		r.Use(requireAdmin(issuer))

		r.Post("/client", h.createClient)
		r.Get("/client/{wallet}", h.getClient)
		r.Post("/price", h.setPrice)
		r.Get("/price/{bucket}/{object}", h.getPrice)
		r.Post("/s3/register", h.registerBucket)
		r.Get("/s3/bucket", h.listAllBuckets)
		r.Get("/s3/bucket/{bucket}/objects", h.listBucketObjects)
	})

	return cors.AllowAll().Handler(r)
}
