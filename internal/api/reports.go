package api

import (
	"net/http"
)

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	periodDays, err := intQuery(r, "period_days")
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}

	dashboard, err := s.svc.Dashboard(r.Context(), periodDays)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, dashboard)
}

func (s *Server) handleMonthlyRevenue(w http.ResponseWriter, r *http.Request) {
	months, err := intQuery(r, "months")
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}
	if months == 0 {
		months = 12
	}

	revenue, err := s.svc.MonthlyRevenue(r.Context(), months)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, revenue)
}

func (s *Server) handleExportDashboard(w http.ResponseWriter, r *http.Request) {
	periodDays, err := intQuery(r, "period_days")
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}

	result, err := s.svc.ExportDashboard(r.Context(), periodDays)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusCreated, result)
}
