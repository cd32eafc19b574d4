package handler

import (
	"log/slog"
	"net/http"

	"github.com/ecoterra/siteapi/internal/domain"
)

// CompanyHandler serves the public company profile
type CompanyHandler struct {
	company domain.Company
	rs      *Responder
	logger  *slog.Logger
}

func NewCompanyHandler(company domain.Company, rs *Responder, logger *slog.Logger) *CompanyHandler {
	if logger == nil {
		logger = slog.Default()
	}
	if company.Services == nil {
		company.Services = []string{}
	}
	return &CompanyHandler{company: company, rs: rs, logger: logger}
}

// Get handles GET /api/company
func (h *CompanyHandler) Get(w http.ResponseWriter, r *http.Request) {
	h.rs.JSON(w, http.StatusOK, h.company)
}

// Update handles PUT /api/company. The body is checked but the profile comes
// from configuration, so nothing is stored.
func (h *CompanyHandler) Update(w http.ResponseWriter, r *http.Request) {
	var body domain.Company
	if err := decodeJSON(w, r, &body); err != nil {
		h.rs.Fail(w, r, err)
		return
	}
	h.logger.Info("company update accepted without persistence", slog.String("name", body.Name))
	h.rs.Message(w, http.StatusOK, "Company information updated")
}
