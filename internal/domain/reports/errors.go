package reports

import "errors"

var (
	ErrShopRequired    = errors.New("shop id is required for the cafe pipeline")
	ErrShopNotFound    = errors.New("coffee shop not found")
	ErrUnknownPipeline = errors.New("unknown report pipeline")
	ErrUnknownFormat   = errors.New("unknown export format")
)
