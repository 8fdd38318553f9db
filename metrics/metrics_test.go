package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestInit(t *testing.T) {
	// Call Init multiple times to test idempotency.
	Init()
	Init()

	if cacheLookupsTotal == nil || admissionsTotal == nil ||
		httpRequestsTotal == nil || httpRequestDurationSeconds == nil {
		t.Fatal("Init() did not initialize metrics collectors")
	}
}

func TestObservers(t *testing.T) {
	Init()

	before := testutil.ToFloat64(cacheLookupsTotal.WithLabelValues("hit"))
	ObserveCacheLookup("hit")
	if val := testutil.ToFloat64(cacheLookupsTotal.WithLabelValues("hit")); val != before+1 {
		t.Errorf("Expected cache hits to be %f, got %f", before+1, val)
	}

	before = testutil.ToFloat64(admissionsTotal.WithLabelValues("denied"))
	ObserveAdmission("denied")
	if val := testutil.ToFloat64(admissionsTotal.WithLabelValues("denied")); val != before+1 {
		t.Errorf("Expected denied admissions to be %f, got %f", before+1, val)
	}

	before = testutil.ToFloat64(extractionsTotal.WithLabelValues("page", "failed"))
	ObserveExtraction("page", false, 2*time.Second)
	if val := testutil.ToFloat64(extractionsTotal.WithLabelValues("page", "failed")); val != before+1 {
		t.Errorf("Expected failed page extractions to be %f, got %f", before+1, val)
	}
	if val := testutil.CollectAndCount(extractionDurationSeconds); val <= 0 {
		t.Errorf("Expected extractionDurationSeconds to be observed, got %d", val)
	}

	var obs BrowserObserver
	before = testutil.ToFloat64(browserIdleShutdownsTotal)
	obs.IdleShutdown()
	if val := testutil.ToFloat64(browserIdleShutdownsTotal); val != before+1 {
		t.Errorf("Expected idle shutdowns to be %f, got %f", before+1, val)
	}
	obs.Launched(false)
	if val := testutil.ToFloat64(browserLaunchesTotal.WithLabelValues("failure")); val < 1 {
		t.Errorf("Expected a failed launch to be counted, got %f", val)
	}
}
