package httptransport

import "expvar"

var (
	metricFindMatchTotal   = expvar.NewInt("find_match_total")
	metricMessagePostTotal = expvar.NewInt("message_post_total")
	metricDecisionTotal    = expvar.NewInt("decision_submit_total")
	metricDecisionErrors   = expvar.NewInt("decision_submit_errors_total")
)
