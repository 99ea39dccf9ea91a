package core

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/semaphore"
)

// WriterLock enforces the §5 single-writer-per-tenant policy: every mutating
// operation (Allocate, FIFO, Rebuild, Reversal, Summarize) must hold the
// lock for its tenant before touching shared tables. A weighted semaphore of
// weight 1 gives exclusive access per tenant while leaving other tenants
// unaffected.
type WriterLock struct {
	mu     sync.Mutex
	tenants map[string]*semaphore.Weighted
}

func NewWriterLock() *WriterLock {
	return &WriterLock{tenants: make(map[string]*semaphore.Weighted)}
}

func (w *WriterLock) sem(tenant string) *semaphore.Weighted {
	w.mu.Lock()
	defer w.mu.Unlock()
	s, ok := w.tenants[tenant]
	if !ok {
		s = semaphore.NewWeighted(1)
		w.tenants[tenant] = s
	}
	return s
}

// TryAcquire implements the non-blocking BusyWriter behavior: it returns
// immediately with a BusyWriter error if another mutating operation already
// holds the tenant's lock.
func (w *WriterLock) TryAcquire(tenant string) (release func(), err error) {
	s := w.sem(tenant)
	if !s.TryAcquire(1) {
		return nil, newError(KindBusyWriter, "writer lock held for tenant %s", tenant)
	}
	return func() { s.Release(1) }, nil
}

// Acquire blocks until the tenant's writer lock is available, ctx is
// cancelled, or ctx's deadline (the configured rebuild timeout) expires —
// implementing the AbortedByCancel / AbortedByTimeout semantics of §5.
func (w *WriterLock) Acquire(ctx context.Context, tenant string) (release func(), err error) {
	s := w.sem(tenant)
	if err := s.Acquire(ctx, 1); err != nil {
		if ctx.Err() == context.Canceled {
			return nil, wrapError(KindAbortedByCancel, err, "writer lock acquisition cancelled for tenant %s", tenant)
		}
		return nil, wrapError(KindAbortedByTimeout, err, "writer lock acquisition timed out for tenant %s", tenant)
	}
	return func() { s.Release(1) }, nil
}

// DefaultTenant formats a company code into the writer lock's tenant key,
// isolating each tenant's writer lock from every other tenant's.
func DefaultTenant(companyCode string) string {
	if companyCode == "" {
		return "default"
	}
	return fmt.Sprintf("tenant:%s", companyCode)
}
