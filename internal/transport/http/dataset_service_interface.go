package http

import (
	"context"

	"covidcli/internal/services"
	"covidcli/pkg/contracts/domain"
)

// DatasetServiceInterface defines the dataset operations the handlers need
type DatasetServiceInterface interface {
	Nation(ctx context.Context) (*services.SliceResult, error)
	States(ctx context.Context) (*services.SliceResult, error)
	State(ctx context.Context, uf string) (*services.SliceResult, error)
	Cities(ctx context.Context, uf string) (*services.SliceResult, error)
	City(ctx context.Context, code string) (*services.SliceResult, error)
	Threshold(ctx context.Context, cases int64, uf string) (*services.ThresholdResult, error)
	Summary(ctx context.Context, g domain.Granularity) (*services.SummaryResult, error)
}
