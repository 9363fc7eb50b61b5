package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/cetsp/diario-scraper/internal/storage"
	"github.com/cetsp/diario-scraper/pkg/logger"
)

// DiagnosticsLister lists stored failure artifacts. *storage.MinIOStorage
// implements it.
type DiagnosticsLister interface {
	List(ctx context.Context, prefix string) ([]storage.ObjectInfo, error)
}

// HandleDiagnostics lists the artifacts saved on ?day=YYYY-MM-DD, today by
// default.
func HandleDiagnostics(lister DiagnosticsLister, log *logger.Logger) http.HandlerFunc {
	log = log.WithComponent("diagnostics_handler")

	return func(w http.ResponseWriter, r *http.Request) {
		if lister == nil {
			RespondServiceUnavailable(w, "Diagnostics storage is not configured")
			return
		}

		day := r.URL.Query().Get("day")
		if day == "" {
			day = time.Now().Format(time.DateOnly)
		}
		if _, err := time.Parse(time.DateOnly, day); err != nil {
			RespondValidationError(w, "day must be YYYY-MM-DD")
			return
		}

		objects, err := lister.List(r.Context(), day)
		if err != nil {
			log.WithContext(r.Context()).WithError(err).Error("failed to list diagnostics", "day", day)
			RespondInternalError(w, "")
			return
		}
		if objects == nil {
			objects = []storage.ObjectInfo{}
		}
		RespondJSON(w, http.StatusOK, objects)
	}
}
