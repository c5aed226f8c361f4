package settlement

const (
	PipelineSales = "sales"
	PipelineCafe  = "cafe"

	SplitEqual    = "equal"
	SplitWeighted = "weighted"

	PeriodModeSemimonthly = "semimonthly"
	PeriodModeWeekly      = "weekly"

	SourceShift  = "shift_assignment"
	SourceCash   = "cash_record"
	SourcePayout = "payout"
	SourceCredit = "credit"

	OrderTypeUntyped = "untyped"

	DefaultPercentScale int32 = 2

	firstHalfEnd = 15
)
