package reports

const (
	FormatPDF  = "pdf"
	FormatXLSX = "xlsx"

	cacheKeyPrefix = "settlement:report"
	salesShopKey   = "all"
)
