package ledger

import (
	"strings"

	"github.com/shopspring/decimal"

	"github.com/bobmcallan/folio-portal/internal/models"
)

func formatFloat(v float64) string {
	return decimal.NewFromFloat(v).String()
}

// PortfolioForm is the create/edit portfolio form.
type PortfolioForm struct {
	Name          string
	Description   string
	InitialCash   string
	TargetReturn  string
	RiskTolerance string
	Visibility    string
}

// FormFromPortfolio seeds an edit form from a stored portfolio.
func FormFromPortfolio(p models.Portfolio) PortfolioForm {
	return PortfolioForm{
		Name:          p.Name,
		Description:   p.Description,
		InitialCash:   formatFloat(p.InitialCash),
		TargetReturn:  formatFloat(p.TargetReturn),
		RiskTolerance: string(p.RiskTolerance),
		Visibility:    string(p.Visibility()),
	}
}

// Input validates the form and builds the request body.
func (f PortfolioForm) Input() (models.PortfolioInput, error) {
	var errs ValidationErrors

	name := strings.TrimSpace(f.Name)
	if name == "" {
		errs.add("name", "is required")
	} else if len(name) > 100 {
		errs.add("name", "must be at most 100 characters")
	}

	cash, _, err := parseAmount(f.InitialCash)
	if err != nil {
		errs.add("initial_cash", "%v", err)
	}
	target, _, err := parseAmount(f.TargetReturn)
	if err != nil {
		errs.add("target_return", "%v", err)
	}

	risk, err := models.ParseRiskTolerance(f.RiskTolerance)
	if err != nil {
		errs.add("risk_tolerance", "%v", err)
	}

	public := false
	switch strings.ToLower(strings.TrimSpace(f.Visibility)) {
	case "", string(models.VisibilityPrivate):
	case string(models.VisibilityPublic):
		public = true
	default:
		errs.add("visibility", "must be public or private")
	}

	if err := errs.orNil(); err != nil {
		return models.PortfolioInput{}, err
	}
	return models.PortfolioInput{
		Name:          name,
		Description:   strings.TrimSpace(f.Description),
		InitialCash:   cash.InexactFloat64(),
		TargetReturn:  target.InexactFloat64(),
		RiskTolerance: risk,
		IsPublic:      public,
	}, nil
}
