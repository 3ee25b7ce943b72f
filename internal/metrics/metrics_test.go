package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestObserveSearch_CountsByModeAndStatus(t *testing.T) {
	before := testutil.ToFloat64(SearchesTotal.WithLabelValues("any", StatusOK))

	ObserveSearch(false, StatusOK, 3, 2*time.Millisecond)
	ObserveSearch(true, StatusInvalid, 0, time.Millisecond)

	assert.Equal(t, before+1, testutil.ToFloat64(SearchesTotal.WithLabelValues("any", StatusOK)))
	assert.GreaterOrEqual(t, testutil.ToFloat64(SearchesTotal.WithLabelValues("all", StatusInvalid)), 1.0)
	assert.Positive(t, testutil.CollectAndCount(SearchDuration))
}

func TestObserveFlush(t *testing.T) {
	upserts := testutil.ToFloat64(FlushedEntriesTotal.WithLabelValues("upsert"))
	deletes := testutil.ToFloat64(FlushedEntriesTotal.WithLabelValues("delete"))
	failures := testutil.ToFloat64(FlushErrorsTotal)

	ObserveFlush(4, 1, time.Millisecond, nil)
	ObserveFlush(0, 0, time.Millisecond, errors.New("disk full"))

	assert.Equal(t, upserts+4, testutil.ToFloat64(FlushedEntriesTotal.WithLabelValues("upsert")))
	assert.Equal(t, deletes+1, testutil.ToFloat64(FlushedEntriesTotal.WithLabelValues("delete")))
	assert.Equal(t, failures+1, testutil.ToFloat64(FlushErrorsTotal))
}

func TestObserveReindex(t *testing.T) {
	ok := testutil.ToFloat64(ReindexTotal.WithLabelValues("request", StatusOK))
	failed := testutil.ToFloat64(ReindexTotal.WithLabelValues("recovery", StatusError))

	ObserveReindex("request", nil)
	ObserveReindex("recovery", errors.New("boom"))

	assert.Equal(t, ok+1, testutil.ToFloat64(ReindexTotal.WithLabelValues("request", StatusOK)))
	assert.Equal(t, failed+1, testutil.ToFloat64(ReindexTotal.WithLabelValues("recovery", StatusError)))
}

func TestRegister_Idempotent(t *testing.T) {
	assert.NotPanics(t, func() {
		Register()
		Register()
	})

	// a second registration of the same collector is rejected by the registry
	err := prometheus.Register(OutstandingEntries)
	var already prometheus.AlreadyRegisteredError
	assert.ErrorAs(t, err, &already)
}
