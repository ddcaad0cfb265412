package middleware

import (
	"net/http"
	"strings"

	chimw "github.com/go-chi/chi/v5/middleware"

	pkgmw "github.com/dinehall/dinehall/gateway/pkg/middleware"
	"github.com/dinehall/dinehall/gateway/pkg/models"
)

// ClientContextExtractor builds the per-request ClientContext from
// transport headers. Tenant and venue scoping come from these headers
// only — request bodies are user text and never trusted for scoping.
func ClientContextExtractor(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cc := models.ClientContext{
			TenantID:   strings.TrimSpace(r.Header.Get("X-Tenant-Id")),
			VenueID:    strings.TrimSpace(r.Header.Get("X-Venue-Id")),
			SessionKey: strings.TrimSpace(r.Header.Get("X-Session-Key")),
			RequestID:  chimw.GetReqID(r.Context()),
		}
		if auth := r.Header.Get("Authorization"); strings.HasPrefix(auth, "Bearer ") {
			cc.AuthToken = strings.TrimPrefix(auth, "Bearer ")
		}

		next.ServeHTTP(w, r.WithContext(pkgmw.SetClientContext(r.Context(), cc)))
	})
}
