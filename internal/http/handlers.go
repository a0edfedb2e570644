package http

import (
	"encoding/json"
	"errors"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"fireledger/internal/amqp"
	"fireledger/internal/core"
	"fireledger/internal/services"
)

const analyticsMonths = 12

type errorResponse struct {
	Error string `json:"error"`
}

type healthResponse struct {
	Status string `json:"status"`
	Time   string `json:"time"`
}

type csvFileInfo struct {
	Name     string `json:"name"`
	Size     int64  `json:"size"`
	Modified string `json:"modified"`
	Default  bool   `json:"default"`
}

type analyticsMonth struct {
	Period string             `json:"period"`
	Label  string             `json:"label"`
	Values map[string]float64 `json:"values"`
}

type analyticsResponse struct {
	Months []analyticsMonth `json:"months"`
}

type processRequest struct {
	CSVFile  string `json:"csv_file"`
	Month    int    `json:"month,omitempty"`
	Year     int    `json:"year,omitempty"`
	AutoDate *bool  `json:"auto_date,omitempty"`
	Shadow   bool   `json:"shadow,omitempty"`
	Override bool   `json:"override,omitempty"`
	Async    bool   `json:"async,omitempty"`
}

type processResponse struct {
	Status       string          `json:"status"`
	Period       string          `json:"period,omitempty"`
	Transactions int             `json:"transactions,omitempty"`
	Rows         []processedRow  `json:"rows,omitempty"`
	Outcomes     []outcomeDetail `json:"outcomes,omitempty"`
}

type processedRow struct {
	Month         string             `json:"month"`
	Values        map[string]float64 `json:"values"`
	Necessary     float64            `json:"necessary"`
	Discretionary float64            `json:"discretionary"`
	Excess        float64            `json:"excess"`
	Totals        float64            `json:"totals"`
}

type outcomeDetail struct {
	Period          string `json:"period"`
	Action          string `json:"action"`
	Row             int    `json:"row"`
	CellsWritten    int    `json:"cells_written"`
	FormulasSkipped int    `json:"formulas_skipped"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{
		Status: "ok",
		Time:   time.Now().UTC().Format(time.RFC3339),
	})
}

// handleCSVFiles lists the CSV inbox, newest first. The newest file is
// flagged as the default input.
func (s *Server) handleCSVFiles(w http.ResponseWriter, r *http.Request) {
	entries, err := os.ReadDir(s.csvDir)
	if err != nil {
		if os.IsNotExist(err) {
			writeJSON(w, http.StatusOK, []csvFileInfo{})
			return
		}
		writeError(w, http.StatusInternalServerError, "could not read csv directory")
		return
	}

	files := make([]csvFileInfo, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !strings.EqualFold(filepath.Ext(e.Name()), ".csv") {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		files = append(files, csvFileInfo{
			Name:     e.Name(),
			Size:     info.Size(),
			Modified: info.ModTime().UTC().Format(time.RFC3339),
		})
	}
	sort.Slice(files, func(i, j int) bool { return files[i].Modified > files[j].Modified })
	if len(files) > 0 {
		files[0].Default = true
	}
	writeJSON(w, http.StatusOK, files)
}

func (s *Server) handleAnalytics(w http.ResponseWriter, r *http.Request) {
	if s.archive == nil {
		writeError(w, http.StatusServiceUnavailable, "run archive not configured")
		return
	}
	if cached, ok := s.analyticsCache.Get("analytics"); ok {
		writeJSON(w, http.StatusOK, cached)
		return
	}

	months, err := s.archive.MonthlyHistory(r.Context(), analyticsMonths)
	if err != nil {
		slog.ErrorContext(r.Context(), "analytics query failed", "error", err)
		writeError(w, http.StatusInternalServerError, "could not load analytics")
		return
	}

	resp := analyticsResponse{Months: make([]analyticsMonth, 0, len(months))}
	for _, m := range months {
		resp.Months = append(resp.Months, analyticsMonth{
			Period: m.Period.String(),
			Label:  m.Period.Label(),
			Values: m.Values,
		})
	}
	s.analyticsCache.Set("analytics", resp)
	writeJSON(w, http.StatusOK, resp)
}

// handleProcess runs the pipeline for one CSV file, inline by default or
// queued when async is requested and a publisher is wired.
func (s *Server) handleProcess(w http.ResponseWriter, r *http.Request) {
	var req processRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.CSVFile == "" {
		req.CSVFile = s.defaultCSVFile()
	}
	if req.CSVFile == "" {
		writeError(w, http.StatusBadRequest, "csv_file is required and no csv files were found")
		return
	}
	if strings.Contains(req.CSVFile, "..") || strings.ContainsRune(req.CSVFile, os.PathSeparator) {
		writeError(w, http.StatusBadRequest, "csv_file must be a bare file name")
		return
	}
	if (req.Month != 0) != (req.Year != 0) {
		writeError(w, http.StatusBadRequest, "month and year must be supplied together")
		return
	}

	autoDate := true
	if req.AutoDate != nil {
		autoDate = *req.AutoDate
	}

	if req.Async {
		if s.publisher == nil {
			writeError(w, http.StatusServiceUnavailable, "async processing is not configured")
			return
		}
		msg := amqp.NewProcessRequestMessage(req.CSVFile)
		msg.Month = req.Month
		msg.Year = req.Year
		msg.AutoDate = autoDate
		msg.Shadow = req.Shadow
		msg.Override = req.Override
		if err := s.publisher.PublishProcessRequest(r.Context(), msg); err != nil {
			slog.ErrorContext(r.Context(), "failed to enqueue process request", "error", err)
			writeError(w, http.StatusBadGateway, "could not enqueue request")
			return
		}
		writeJSON(w, http.StatusAccepted, processResponse{Status: "queued"})
		return
	}

	result, err := s.pipeline.Process(r.Context(), services.ProcessRequest{
		CSVPath:  filepath.Join(s.csvDir, req.CSVFile),
		Month:    req.Month,
		Year:     req.Year,
		AutoDate: autoDate,
		Shadow:   req.Shadow,
		Override: req.Override,
	})
	if err != nil {
		status := http.StatusInternalServerError
		switch {
		case errors.Is(err, core.ErrMissingPeriod),
			errors.Is(err, core.ErrExpectedPeriodMissing):
			status = http.StatusUnprocessableEntity
		case errors.Is(err, core.ErrSchemaMismatch):
			status = http.StatusConflict
		case errors.Is(err, core.ErrStoreUnreachable):
			status = http.StatusBadGateway
		case errors.Is(err, fs.ErrNotExist):
			status = http.StatusNotFound
		}
		slog.ErrorContext(r.Context(), "processing failed", "csv_file", req.CSVFile, "error", err)
		writeError(w, status, err.Error())
		return
	}

	s.analyticsCache.Delete("analytics")

	resp := processResponse{
		Status:       "processed",
		Period:       result.Period.Label(),
		Transactions: result.Transactions,
	}
	if result.NothingToDo {
		resp.Status = "nothing-to-do"
	} else if req.Shadow {
		resp.Status = "shadow"
	}
	for _, row := range result.Rows {
		resp.Rows = append(resp.Rows, processedRow{
			Month:         row.Period().Label(),
			Values:        row.Values,
			Necessary:     row.Necessary,
			Discretionary: row.Discretionary,
			Excess:        row.Excess,
			Totals:        row.Totals,
		})
	}
	for _, o := range result.Outcomes {
		resp.Outcomes = append(resp.Outcomes, outcomeDetail{
			Period:          o.Period.Label(),
			Action:          string(o.Action),
			Row:             o.Row,
			CellsWritten:    o.CellsWritten,
			FormulasSkipped: o.FormulasSkipped,
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) defaultCSVFile() string {
	entries, err := os.ReadDir(s.csvDir)
	if err != nil {
		return ""
	}
	var newest string
	var newestMod time.Time
	for _, e := range entries {
		if e.IsDir() || !strings.EqualFold(filepath.Ext(e.Name()), ".csv") {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		if newest == "" || info.ModTime().After(newestMod) {
			newest = e.Name()
			newestMod = info.ModTime()
		}
	}
	return newest
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}
