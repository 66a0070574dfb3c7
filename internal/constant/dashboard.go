package constant

import "time"

const (
	DefaultPollInterval    = 15 * time.Second
	DefaultMaxPollInterval = 60 * time.Second
	DefaultBackoffFactor   = 1.5
	DefaultGraceFailures   = 3
	DefaultRequestTimeout  = 10 * time.Second
	DefaultReconnectDelay  = 3 * time.Second
	DefaultPingInterval    = 30 * time.Second

	DefaultLogCapacity     = 100
	DefaultCouncilCapacity = 50
)

const (
	CouncilStreamName            = "council"
	CouncilStreamSubjectAll      = "council.*"
	CouncilStreamSubjectMessage  = "council.message"
	CouncilStreamSubjectActivity = "council.activity"
)

// GRPCHealthService is the service name reported through grpc.health.v1.
const GRPCHealthService = "dashboard.sync"
