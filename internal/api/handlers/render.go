package handlers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/cetsp/diario-scraper/internal/export"
	"github.com/cetsp/diario-scraper/internal/models"
	"github.com/cetsp/diario-scraper/internal/render"
	"github.com/cetsp/diario-scraper/pkg/logger"
)

const maxRecordsBody = 16 << 20

func decodeRecords(w http.ResponseWriter, r *http.Request) ([]models.PublicationRecord, bool) {
	var records []models.PublicationRecord
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRecordsBody)).Decode(&records); err != nil {
		RespondBadRequest(w, "Invalid record list: "+err.Error())
		return nil, false
	}
	return records, true
}

// HandleRender turns a record list into HTML cards. ?page=full returns a
// standalone document instead of a fragment.
func HandleRender(log *logger.Logger) http.HandlerFunc {
	log = log.WithComponent("render_handler")

	return func(w http.ResponseWriter, r *http.Request) {
		records, ok := decodeRecords(w, r)
		if !ok {
			return
		}

		var buf bytes.Buffer
		if r.URL.Query().Get("page") == "full" {
			if err := render.WriteDocument(&buf, records); err != nil {
				log.WithError(err).Error("failed to render document")
				RespondInternalError(w, "")
				return
			}
		} else {
			out, err := render.Fragment(records)
			if err != nil {
				log.WithError(err).Error("failed to render cards")
				RespondInternalError(w, "")
				return
			}
			buf.WriteString(string(out))
		}

		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = buf.WriteTo(w)
	}
}

// HandleExport returns a record list as a downloadable file in the format
// named by ?format= (json, xlsx or html).
func HandleExport(log *logger.Logger) http.HandlerFunc {
	log = log.WithComponent("export_handler")

	return func(w http.ResponseWriter, r *http.Request) {
		format, err := export.ParseFormat(r.URL.Query().Get("format"))
		if err != nil {
			RespondBadRequest(w, err.Error())
			return
		}
		records, ok := decodeRecords(w, r)
		if !ok {
			return
		}

		var buf bytes.Buffer
		if err := export.Write(&buf, format, records); err != nil {
			log.WithError(err).Error("failed to export records", "format", format)
			RespondInternalError(w, "")
			return
		}

		w.Header().Set("Content-Type", format.ContentType())
		w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="resultados.%s"`, format))
		w.WriteHeader(http.StatusOK)
		_, _ = buf.WriteTo(w)
	}
}
