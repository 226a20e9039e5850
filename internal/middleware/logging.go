package middleware

import (
	"time"

	"github.com/google/uuid"
	"github.com/m1z23r/drift/pkg/drift"
	log "github.com/sirupsen/logrus"
)

// RequestLogger writes one structured line per request once the handler
// chain has finished.
func RequestLogger() drift.HandlerFunc {
	return func(c *drift.Context) {
		start := time.Now()
		c.Next()

		fields := log.Fields{
			"method":   c.Request.Method,
			"path":     c.Request.URL.Path,
			"duration": time.Since(start).String(),
		}
		if userID := GetUserID(c); userID != uuid.Nil {
			fields["user_id"] = userID
		}
		log.WithFields(fields).Debug("request handled")
	}
}
