package httpapi

import (
	"math"
	"net/http"
	"strconv"

	"github.com/MrEthical07/keygate"
	"github.com/MrEthical07/keygate/internal/rate"
)

// routeClass pairs a limiter category with the type reported on 429.
type routeClass struct {
	category rate.Category
	label    string
}

var (
	classAdmin    = routeClass{category: rate.Strict, label: "admin"}
	classSecurity = routeClass{category: rate.Strict, label: "security"}
	classTraffic  = routeClass{category: rate.Relaxed, label: "traffic"}
)

func (s *Server) limit(class routeClass, next http.Handler) http.Handler {
	if s.limiter == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		d := s.limiter.Allow(keygate.ClientIPFromContext(r.Context()), class.category)
		if d.Allowed {
			next.ServeHTTP(w, r)
			return
		}

		// One audit entry per source and window: the request that first
		// crossed the ceiling.
		if d.Count == d.Limit+1 && s.engine != nil {
			s.engine.RecordRateLimited(r.Context(), class.label, d.Limit, d.RetryAfter)
		}

		seconds := int(math.Ceil(d.RetryAfter.Seconds()))
		if seconds < 1 {
			seconds = 1
		}
		w.Header().Set("Retry-After", strconv.Itoa(seconds))
		writeJSON(w, http.StatusTooManyRequests, errorBody{
			Error: "Too many requests",
			Type:  class.label,
		})
	})
}
