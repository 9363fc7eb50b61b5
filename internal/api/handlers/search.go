package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/cetsp/diario-scraper/internal/daterange"
	"github.com/cetsp/diario-scraper/internal/models"
	"github.com/cetsp/diario-scraper/pkg/logger"
)

const maxSearchBody = 64 << 10

// HandleSearch runs a search and responds with the record list. Progress
// lines only reach the log; clients that want them use the WebSocket.
func HandleSearch(runner SearchRunner, timeout time.Duration, log *logger.Logger) http.HandlerFunc {
	log = log.WithComponent("search_handler")

	return func(w http.ResponseWriter, r *http.Request) {
		var req models.SearchRequest
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxSearchBody)).Decode(&req); err != nil {
			RespondBadRequest(w, "Invalid request body: "+err.Error())
			return
		}
		req.Normalize()
		if err := req.Validate(); err != nil {
			RespondValidationError(w, err.Error())
			return
		}

		ctx := r.Context()
		if timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, timeout)
			defer cancel()
		}

		reqLog := log.WithContext(ctx)
		res, err := runner.Run(ctx, req, func(msg string) { reqLog.Debug(msg) })
		if res.SearchID != "" {
			w.Header().Set("X-Search-ID", res.SearchID)
		}
		if err != nil {
			RespondSearchError(w, err)
			return
		}

		RespondJSON(w, http.StatusOK, res.Records)
	}
}

// HandlePublications lists archived records for ?date=DD/MM/YYYY.
func HandlePublications(archive PublicationArchive, log *logger.Logger) http.HandlerFunc {
	log = log.WithComponent("publications_handler")

	return func(w http.ResponseWriter, r *http.Request) {
		if archive == nil {
			RespondServiceUnavailable(w, "Archive is not configured")
			return
		}

		day := strings.TrimSpace(r.URL.Query().Get("date"))
		if _, err := daterange.Parse("date", day); err != nil {
			RespondValidationError(w, err.Error())
			return
		}

		records, err := archive.ByDate(r.Context(), day)
		if err != nil {
			log.WithContext(r.Context()).WithError(err).Error("failed to load archived publications", "date", day)
			RespondInternalError(w, "")
			return
		}
		if records == nil {
			records = []models.PublicationRecord{}
		}
		RespondJSON(w, http.StatusOK, records)
	}
}
