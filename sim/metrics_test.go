package sim

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecorder_Lifecycle(t *testing.T) {
	base := time.Unix(1_700_000_000, 0)
	m := NewRecorder()

	assert.True(t, m.EnsureCustomer("c1", base))
	assert.False(t, m.EnsureCustomer("c1", base.Add(time.Hour)), "duplicate arrival ignored")

	assert.True(t, m.SetServiceStart("c1", base.Add(2*time.Second), "teller-1"))
	assert.False(t, m.SetServiceStart("c1", base.Add(3*time.Second), "teller-2"))
	assert.True(t, m.SetEnd("c1", base.Add(5*time.Second)))
	assert.False(t, m.SetEnd("c1", base.Add(9*time.Second)))

	rec, ok := m.Customer("c1")
	require.True(t, ok)
	assert.Equal(t, base, rec.Arrival)
	assert.Equal(t, TellerID("teller-1"), rec.Teller)
	wait, ok := rec.WaitTime()
	assert.True(t, ok)
	assert.Equal(t, 2*time.Second, wait)
	sys, ok := rec.SystemTime()
	assert.True(t, ok)
	assert.Equal(t, 5*time.Second, sys)
}

func TestRecorder_ClampsOutOfOrderTimestamps(t *testing.T) {
	base := time.Unix(1_700_000_000, 0)
	m := NewRecorder()
	m.EnsureCustomer("c1", base)

	m.SetServiceStart("c1", base.Add(-time.Second), "teller-1")
	m.SetEnd("c1", base.Add(-2*time.Second))

	rec, _ := m.Customer("c1")
	assert.Equal(t, base, rec.ServiceStart)
	assert.Equal(t, base, rec.End)
}

func TestRecorder_UnknownCustomerIgnored(t *testing.T) {
	m := NewRecorder()
	assert.False(t, m.SetServiceStart("ghost", time.Now(), "teller-1"))
	assert.False(t, m.SetEnd("ghost", time.Now()))
	m.MarkForceClosed("ghost")
	assert.Equal(t, 0, m.Total())
}

func TestRecorder_UnfinishedAndUnserved(t *testing.T) {
	base := time.Unix(1_700_000_000, 0)
	m := NewRecorder()
	// c1 fully served, c2 in service, c3 waiting, c4 closed while waiting
	for i, id := range []CustomerID{"c1", "c2", "c3", "c4"} {
		m.EnsureCustomer(id, base.Add(time.Duration(i)*time.Second))
	}
	m.SetServiceStart("c1", base.Add(time.Second), "teller-1")
	m.SetEnd("c1", base.Add(2*time.Second))
	m.SetServiceStart("c2", base.Add(2*time.Second), "teller-2")
	m.SetEnd("c4", base.Add(10*time.Second))
	m.MarkForceClosed("c4")

	assert.Equal(t, []CustomerID{"c2", "c3"}, m.UnfinishedCustomers())
	assert.Equal(t, 3, m.CountUnserved())

	snap := m.Snapshot()
	assert.Equal(t, 4, snap.Total())
	assert.Equal(t, 3, snap.Unserved)
	assert.Equal(t, 1, snap.ForceClosed)
	assert.Equal(t, CustomerID("c1"), snap.Customers[0].ID)

	_, ok := snap.Customers[2].WaitTime()
	assert.False(t, ok)
}

func TestRecorder_QueueSeries_SnapshotIsCopy(t *testing.T) {
	base := time.Unix(1_700_000_000, 0)
	m := NewRecorder()
	m.AddQueueSample(base, 0)
	m.AddQueueSample(base.Add(time.Second), 3)

	snap := m.Snapshot()
	m.AddQueueSample(base.Add(2*time.Second), 1)

	assert.Len(t, snap.QueueSeries, 2)
	assert.Len(t, m.QueueSeries(), 3)
	assert.Equal(t, 3, snap.QueueSeries[1].Length)
}
