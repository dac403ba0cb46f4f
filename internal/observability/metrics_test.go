package observability

import (
	"net/http"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestCollectorsRecord(t *testing.T) {
	Init()
	Init()

	before := testutil.ToFloat64(withdrawalTransitionsCtr.WithLabelValues("approved"))
	IncrementWithdrawalTransition("approved")
	assert.Equal(t, before+1, testutil.ToFloat64(withdrawalTransitionsCtr.WithLabelValues("approved")))

	SetWithdrawalQueueSize(7)
	assert.Equal(t, float64(7), testutil.ToFloat64(withdrawalQueueGauge))

	done := TrackInFlight()
	assert.Equal(t, float64(1), testutil.ToFloat64(httpInFlightGauge))
	done()
	assert.Zero(t, testutil.ToFloat64(httpInFlightGauge))

	ObserveHTTP(http.MethodGet, "/v1/wallet", http.StatusOK, 5*time.Millisecond)
	assert.Equal(t, 1, testutil.CollectAndCount(httpDurationHistogram))
}
