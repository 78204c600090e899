package stats

import (
	"sync"
)

// Counters tracks bridge activity since process start. Read by /health.
type Counters struct {
	mu                     sync.RWMutex
	pushesInitiated        int64
	callbacksReceived      int64
	paymentsRecorded       int64
	notificationsDelivered int64
}

type Snapshot struct {
	PushesInitiated        int64 `json:"pushes_initiated"`
	CallbacksReceived      int64 `json:"callbacks_received"`
	PaymentsRecorded       int64 `json:"payments_recorded"`
	NotificationsDelivered int64 `json:"notifications_delivered"`
}

func New() *Counters {
	return &Counters{}
}

func (c *Counters) RecordPush() {
	c.mu.Lock()
	c.pushesInitiated++
	c.mu.Unlock()
}

func (c *Counters) RecordCallback() {
	c.mu.Lock()
	c.callbacksReceived++
	c.mu.Unlock()
}

func (c *Counters) RecordPayment() {
	c.mu.Lock()
	c.paymentsRecorded++
	c.mu.Unlock()
}

func (c *Counters) RecordDelivered(n int) {
	c.mu.Lock()
	c.notificationsDelivered += int64(n)
	c.mu.Unlock()
}

func (c *Counters) Snapshot() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return Snapshot{
		PushesInitiated:        c.pushesInitiated,
		CallbacksReceived:      c.callbacksReceived,
		PaymentsRecorded:       c.paymentsRecorded,
		NotificationsDelivered: c.notificationsDelivered,
	}
}
