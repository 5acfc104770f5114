package observability

const (
	MetricPrefix = "parimutuel"
)

// Metric names
const (
	PoolsCreatedTotal   = MetricPrefix + ".pools.created_total"
	PoolsOpen           = MetricPrefix + ".pools.open"
	PoolsLockedTotal    = MetricPrefix + ".pools.locked_total"
	PoolsSettledTotal   = MetricPrefix + ".pools.settled_total"
	PoolsCancelledTotal = MetricPrefix + ".pools.cancelled_total"

	WagersPlacedTotal = MetricPrefix + ".wagers.placed_total"
	WagersStakedTotal = MetricPrefix + ".wagers.staked_total"

	PayoutsTotal      = MetricPrefix + ".settlement.paid_total"
	HouseTakeTotal    = MetricPrefix + ".settlement.house_take_total"
	FailedCreditTotal = MetricPrefix + ".settlement.failed_credits_total"

	NATSMessagesPublishedTotal = MetricPrefix + ".nats.messages_published_total"
)

// Label keys
const (
	LabelSubject   = "subject"
	LabelOutcome   = "outcome"
	LabelKind      = "kind"
	LabelNoWinners = "no_winners"
)
