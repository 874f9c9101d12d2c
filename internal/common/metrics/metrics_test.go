package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestCandidatesDropped(t *testing.T) {
	before := testutil.ToFloat64(CandidatesDropped.WithLabelValues("not_allowed"))
	CandidatesDropped.WithLabelValues("not_allowed").Inc()
	assert.Equal(t, before+1, testutil.ToFloat64(CandidatesDropped.WithLabelValues("not_allowed")))
}

func TestSearchRequestsLabels(t *testing.T) {
	SearchRequests.WithLabelValues("serpapi", "ok").Inc()
	assert.GreaterOrEqual(t, testutil.CollectAndCount(SearchRequests), 1)
}
