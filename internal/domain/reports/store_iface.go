package reports

import (
	"context"
	"time"
)

type StoreAPI interface {
	LoadSalesSnapshot(ctx context.Context, from, to time.Time) (SalesSnapshot, error)
	LoadCafeSnapshot(ctx context.Context, shopID string, from, to time.Time) (CafeSnapshot, error)
	ListShops(ctx context.Context) ([]Shop, error)
	ShopExists(ctx context.Context, shopID string) (bool, error)
}
