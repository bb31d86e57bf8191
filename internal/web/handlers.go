package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/JonMunkholm/examimport/internal/core"
	"github.com/JonMunkholm/examimport/internal/layout"
	"github.com/JonMunkholm/examimport/internal/logging"
)

// maxRowsBody bounds revalidate and confirm bodies. Parsed rows are several
// times larger than the sheet they came from.
const maxRowsBody = 64 << 20

const healthPingTimeout = 2 * time.Second

// validateResponse is the validate result plus the uploaded file's name,
// which the client echoes back on confirm.
type validateResponse struct {
	*core.ValidateResult
	FileName string `json:"fileName,omitempty"`
}

type revalidateRequest struct {
	Rows []core.ParsedRow `json:"rows"`
}

// requestScope attaches the exam and school from the URL to the logger fields.
func requestScope(r *http.Request) (ctx context.Context, examID, schoolID string) {
	examID = chi.URLParam(r, "examID")
	schoolID = chi.URLParam(r, "schoolID")
	ctx = logging.ContextWith(r.Context(), "exam_id", examID, "school_id", schoolID)
	return ctx, examID, schoolID
}

// handleValidate reads a multipart upload ("file", optional "examType") and
// returns every parsed row with its validation verdict. Nothing is written.
func (s *Server) handleValidate(w http.ResponseWriter, r *http.Request) {
	ctx, examID, schoolID := requestScope(r)

	// Multipart overhead on top of the sheet itself.
	maxSize := s.cfg.Import.MaxFileSize + 1<<20
	r.Body = http.MaxBytesReader(w, r.Body, maxSize)

	if err := r.ParseMultipartForm(maxSize); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respondError(w, r, fmt.Errorf("%w: limit %d bytes", core.ErrFileTooLarge, s.cfg.Import.MaxFileSize))
			return
		}
		respondError(w, r, errNoFile)
		return
	}

	declared, err := layout.ParseExamType(r.FormValue("examType"))
	if err != nil {
		respondError(w, r, err)
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		respondError(w, r, errNoFile)
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		respondError(w, r, fmt.Errorf("read upload: %w", err))
		return
	}

	ctx = logging.ContextWith(ctx, "file_name", header.Filename)
	result, err := s.service.Validate(ctx, data, examID, schoolID, declared)
	if err != nil {
		respondError(w, r.WithContext(ctx), err)
		return
	}

	writeJSON(w, validateResponse{ValidateResult: result, FileName: header.Filename})
}

// handleRevalidate re-runs validation on rows the reviewer edited.
func (s *Server) handleRevalidate(w http.ResponseWriter, r *http.Request) {
	ctx, examID, schoolID := requestScope(r)

	var req revalidateRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRowsBody)).Decode(&req); err != nil {
		badRequest(w, r, err)
		return
	}

	result, err := s.service.Revalidate(ctx, req.Rows, examID, schoolID)
	if err != nil {
		respondError(w, r.WithContext(ctx), err)
		return
	}
	writeJSON(w, result)
}

// handleConfirm commits the reviewed rows. The exam and school in the URL
// take precedence over any sent in the body.
func (s *Server) handleConfirm(w http.ResponseWriter, r *http.Request) {
	ctx, examID, schoolID := requestScope(r)

	var req core.ConfirmRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRowsBody)).Decode(&req); err != nil {
		badRequest(w, r, err)
		return
	}
	req.ExamID = examID
	req.SchoolID = schoolID

	ctx = WithRequestMetadata(ctx, r)
	result, err := s.service.Confirm(ctx, req)
	if err != nil {
		respondError(w, r.WithContext(ctx), err)
		return
	}
	writeJSON(w, result)
}

// layoutInfo describes one accepted sheet layout.
type layoutInfo struct {
	Key        string          `json:"key"`
	ExamType   layout.ExamType `json:"examType"`
	Variant    layout.Variant  `json:"variant"`
	Columns    int             `json:"columns"`
	Lessons    []string        `json:"lessons"`
	ScoreTypes []string        `json:"scoreTypes"`
	Ranks      []string        `json:"ranks"`
}

// handleListLayouts returns every accepted layout so clients can explain
// rejected files.
func (s *Server) handleListLayouts(w http.ResponseWriter, r *http.Request) {
	maps := layout.All()
	out := make([]layoutInfo, 0, len(maps))
	for _, m := range maps {
		info := layoutInfo{
			Key:      m.Key(),
			ExamType: m.ExamType,
			Variant:  m.Variant,
			Columns:  m.ExpectedColumns,
			Lessons:  m.LessonNames(),
		}
		for _, sc := range m.Scores {
			info.ScoreTypes = append(info.ScoreTypes, sc.Type)
		}
		for _, rk := range m.Ranks {
			info.Ranks = append(info.Ranks, rk.Label)
		}
		out = append(out, info)
	}
	writeJSON(w, out)
}

type healthResponse struct {
	Status   string                   `json:"status"`
	Database string                   `json:"database,omitempty"`
	Imports  core.ImportLimiterStatus `json:"imports"`
}

// handleHealth reports import slot usage and, when a database is attached,
// whether it answers a ping.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{
		Status:  "ok",
		Imports: s.service.Limiter().Status(),
	}
	status := http.StatusOK

	if s.db != nil {
		ctx, cancel := context.WithTimeout(r.Context(), healthPingTimeout)
		defer cancel()
		if err := s.db.Ping(ctx); err != nil {
			logging.FromContext(r.Context()).Warn("health check ping failed", "error", err)
			resp.Status = "degraded"
			resp.Database = "unreachable"
			status = http.StatusServiceUnavailable
		} else {
			resp.Database = "ok"
		}
	}
	respondJSON(w, status, resp)
}
