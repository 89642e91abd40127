package interfaces

import (
	"context"

	"github.com/bobmcallan/folio-portal/internal/models"
)

// PortfolioAPI is the portfolio resource of folio-server.
type PortfolioAPI interface {
	ListPortfolios(ctx context.Context) ([]models.Portfolio, error)
	GetPortfolio(ctx context.Context, id models.ID) (*models.Portfolio, error)
	CreatePortfolio(ctx context.Context, in models.PortfolioInput) (*models.Portfolio, error)
	UpdatePortfolio(ctx context.Context, id models.ID, in models.PortfolioInput) (*models.Portfolio, error)
	DeletePortfolio(ctx context.Context, id models.ID) error
	PortfolioSummary(ctx context.Context, id models.ID) (*models.PortfolioSummary, error)
}

// TransactionAPI is the transaction resource of folio-server.
type TransactionAPI interface {
	ListTransactions(ctx context.Context, opts models.TransactionListOptions) ([]models.Transaction, error)
	ListPortfolioTransactions(ctx context.Context, portfolioID models.ID) ([]models.Transaction, error)
	CreateTransaction(ctx context.Context, in models.TransactionInput) (*models.Transaction, error)
	UpdateTransaction(ctx context.Context, id models.ID, in models.TransactionInput) (*models.Transaction, error)
	DeleteTransaction(ctx context.Context, id models.ID) error
}

// MarketAPI is the read-only market data resource.
type MarketAPI interface {
	ListAssets(ctx context.Context, opts models.AssetListOptions) ([]models.Asset, error)
	SearchAssets(ctx context.Context, query string) ([]models.Asset, error)
	Price(ctx context.Context, symbol string) (*models.Quote, error)
	History(ctx context.Context, symbol, period string) ([]models.RawPricePoint, error)
}

// HoldingAPI is the user-asset resource.
type HoldingAPI interface {
	ListUserAssets(ctx context.Context) ([]models.UserAsset, error)
	CreateUserAsset(ctx context.Context, in models.UserAssetInput) (*models.UserAsset, error)
	UpdateUserAsset(ctx context.Context, id models.ID, in models.UserAssetInput) (*models.UserAsset, error)
	DeleteUserAsset(ctx context.Context, id models.ID) error
}

// AuthAPI is the authentication resource. Login and Register return the
// bearer token issued by folio-server.
type AuthAPI interface {
	Login(ctx context.Context, creds models.Credentials) (token string, user *models.User, err error)
	Register(ctx context.Context, creds models.Credentials) (token string, user *models.User, err error)
	Logout(ctx context.Context) error
	Me(ctx context.Context) (*models.User, error)
	ResendVerification(ctx context.Context) error
	ResetPassword(ctx context.Context, in models.PasswordReset) error
}

// FolioAPI is the full remote surface.
type FolioAPI interface {
	PortfolioAPI
	TransactionAPI
	MarketAPI
	HoldingAPI
	AuthAPI
}
