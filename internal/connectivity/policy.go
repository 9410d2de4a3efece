package connectivity

// Retry policy thresholds.
const (
	// FastDisconnectThreshold is the transport attempt count above which fast
	// escalation may fire.
	FastDisconnectThreshold = 15

	// NetworkFastDisconnectThreshold is the equivalent threshold for
	// network-layer outages.
	NetworkFastDisconnectThreshold = 10

	// RunawayCounterLimit bounds the attempt counter on very long outages.
	RunawayCounterLimit = 10000
)

// Policy parameterises the retry rule table.
type Policy struct {
	FastThreshold int
	RunawayLimit  int
}

// TransportPolicy governs broker connect attempts.
var TransportPolicy = Policy{
	FastThreshold: FastDisconnectThreshold,
	RunawayLimit:  RunawayCounterLimit,
}

// NetworkPolicy governs network-layer outages.
var NetworkPolicy = Policy{
	FastThreshold: NetworkFastDisconnectThreshold,
	RunawayLimit:  RunawayCounterLimit,
}

// policyRule is one row of the ordered policy table.
type policyRule struct {
	name    string
	outcome Outcome
	match   func(p Policy, counter int, cfg Config) bool
}

// policyTable is evaluated top to bottom; the first match wins.
//
// The runaway guard sits above max-retry so the counter is always bounded,
// and max-retry sits above fast-disconnect so EscalateMax holds for every
// counter at or above MaxRetry regardless of the fast flag.
var policyTable = []policyRule{
	{
		name:    "runaway-counter",
		outcome: OutcomeReset,
		match: func(p Policy, counter int, _ Config) bool {
			return counter > p.RunawayLimit
		},
	},
	{
		name:    "max-retry",
		outcome: OutcomeEscalateMax,
		match: func(_ Policy, counter int, cfg Config) bool {
			return counter >= cfg.MaxRetry
		},
	},
	{
		name:    "fast-disconnect",
		outcome: OutcomeEscalateFast,
		match: func(p Policy, counter int, cfg Config) bool {
			return cfg.FastDisconnectManagement && counter > p.FastThreshold
		},
	},
}

// Decide returns the outcome for the given failed-attempt counter.
// It is a pure function of its arguments.
func (p Policy) Decide(counter int, cfg Config) Outcome {
	for _, rule := range policyTable {
		if rule.match(p, counter, cfg) {
			return rule.outcome
		}
	}
	return OutcomeContinue
}

// Decide applies TransportPolicy.
func Decide(counter int, cfg Config) Outcome {
	return TransportPolicy.Decide(counter, cfg)
}

// Rules returns the rule names in evaluation order.
func Rules() []string {
	names := make([]string, 0, len(policyTable)+1)
	for _, rule := range policyTable {
		names = append(names, rule.name)
	}
	return append(names, "continue")
}
