package event

const (
	// Consumed from the gateway exchange.
	RoutingKeyMemberRolesUpdated = "member.roles.updated"

	// Published to the rank exchange.
	EventTypeQuizStarted   = "rank.quiz.started"
	EventTypeQuizCompleted = "rank.quiz.completed"
)

const (
	gatewayExchange = "guild.events"
	rankExchange    = "rank.events"
)
