package http

import (
	"errors"
	"net/http"

	"budgetwise/internal/auth"
	"budgetwise/internal/core"
	"budgetwise/internal/extraction"
	applog "budgetwise/internal/log"
	"budgetwise/internal/services"
)

const (
	multipartMemory   = 1 << 20
	multipartOverhead = 1 << 20
)

type markPaidResponse struct {
	Loan    services.LoanView `json:"loan"`
	Applied bool              `json:"applied"`
}

type suggestResponse struct {
	Category core.Category `json:"category"`
}

// handleAnalyzeStatement extracts a draft loan from the multipart "file"
// upload. Nothing is saved.
func (s *Server) handleAnalyzeStatement(w http.ResponseWriter, r *http.Request) {
	if s.analyzer == nil {
		writeError(w, r, errExtractionDisabled)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, s.maxUpload+multipartOverhead)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var maxBytes *http.MaxBytesError
		if errors.As(err, &maxBytes) {
			writeError(w, r, err)
			return
		}
		writeError(w, r, badRequest("expected multipart upload: %v", err))
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, r, badRequest("missing file field"))
		return
	}
	defer file.Close()

	doc, err := extraction.ReadDocument(header.Filename, header.Header.Get("Content-Type"), file, s.maxUpload)
	if err != nil {
		writeError(w, r, err)
		return
	}

	ctx := r.Context()
	loan, err := s.analyzer.Analyze(ctx, doc)
	if err != nil {
		writeError(w, r, err)
		return
	}

	applog.FromContext(ctx).WithComponent(applog.ComponentExtraction).InfoContext(ctx, "Statement analyzed",
		applog.FieldOperation, applog.OpAnalyze,
		applog.FieldUserID, auth.UserID(ctx),
		applog.FieldMediaType, doc.MediaType,
		applog.FieldBytes, len(doc.Data),
		applog.FieldLoanName, loan.LoanName)
	writeJSON(w, http.StatusOK, loan)
}

func (s *Server) handleListLoans(w http.ResponseWriter, r *http.Request) {
	views, err := s.loans.List(r.Context(), auth.UserID(r.Context()))
	if err != nil {
		writeError(w, r, err)
		return
	}
	if views == nil {
		views = []services.LoanView{}
	}
	writeJSON(w, http.StatusOK, views)
}

func (s *Server) handleSaveLoan(w http.ResponseWriter, r *http.Request) {
	var analysis core.Loan
	if err := decodeJSON(w, r, &analysis); err != nil {
		writeError(w, r, err)
		return
	}

	view, err := s.loans.Save(r.Context(), auth.UserID(r.Context()), analysis)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, view)
}

// handleEditLoan applies {"field": ..., "value": ...} to the loan at index.
func (s *Server) handleEditLoan(w http.ResponseWriter, r *http.Request) {
	index, err := parseIndex(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	p := NewRequestBodyParser(w, r, maxJSONBody)
	if err := p.Parse(); err != nil {
		writeError(w, r, err)
		return
	}

	view, err := s.loans.Edit(r.Context(), auth.UserID(r.Context()), index, core.LoanField(p.Get("field")), p.Get("value"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) handleMarkPaid(w http.ResponseWriter, r *http.Request) {
	index, err := parseIndex(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	view, applied, err := s.loans.MarkPaid(r.Context(), auth.UserID(r.Context()), index)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, markPaidResponse{Loan: view, Applied: applied})
}

func (s *Server) handleDeleteLoan(w http.ResponseWriter, r *http.Request) {
	index, err := parseIndex(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	if err := s.loans.Delete(r.Context(), auth.UserID(r.Context()), index); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleLoanSummary(w http.ResponseWriter, r *http.Request) {
	summary, err := s.loans.Summary(r.Context(), auth.UserID(r.Context()))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (s *Server) handleSuggestCategory(w http.ResponseWriter, r *http.Request) {
	if s.analyzer == nil {
		writeError(w, r, errExtractionDisabled)
		return
	}
	if auth.UserID(r.Context()) == "" {
		writeError(w, r, services.ErrUnauthenticated)
		return
	}
	p := NewRequestBodyParser(w, r, maxJSONBody)
	if err := p.Parse(); err != nil {
		writeError(w, r, err)
		return
	}

	category, err := s.analyzer.SuggestCategory(r.Context(), p.Get("description"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, suggestResponse{Category: category})
}
