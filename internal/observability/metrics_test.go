package observability_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/fixzit/fm-service/internal/observability"
)

func TestMetrics_CountsAndReset(t *testing.T) {
	m := observability.NewMetrics()
	m.RecordRequest("/work-orders", "POST", 201, time.Millisecond)
	m.RecordRequest("/work-orders", "POST", 201, time.Millisecond)
	m.RecordConflict("work_order")
	m.RecordReplay("payroll_run")
	m.RecordPosting("posted")

	snap := m.Snapshot()
	assert.Equal(t, int64(2), snap.Requests["/work-orders|POST|201"])
	assert.Equal(t, int64(1), snap.Conflicts["work_order"])
	assert.Equal(t, int64(1), snap.Replays["payroll_run"])
	assert.Equal(t, int64(1), snap.Postings["posted"])

	m.Reset()
	assert.Empty(t, m.Snapshot().Requests)
	assert.Empty(t, m.Snapshot().Conflicts)
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *observability.Metrics
	m.RecordConflict("work_order")
	m.Reset()
	assert.Empty(t, m.Snapshot().Conflicts)
}
