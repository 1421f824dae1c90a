package ditest

import (
	"context"
	"slices"
	"sync"
	"sync/atomic"
)

// OrderRecorder collects names of disposed services in disposal order.
type OrderRecorder struct {
	mu    sync.Mutex
	order []string
}

func NewOrderRecorder() *OrderRecorder {
	return &OrderRecorder{}
}

func (r *OrderRecorder) Record(name string) {
	if r == nil {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.order = append(r.order, name)
}

func (r *OrderRecorder) Order() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	return slices.Clone(r.order)
}

// DisposeCounter counts calls of Close and CloseAsync.
type DisposeCounter struct {
	closes      atomic.Int32
	asyncCloses atomic.Int32
}

func (c *DisposeCounter) Closes() int {
	return int(c.closes.Load())
}

func (c *DisposeCounter) AsyncCloses() int {
	return int(c.asyncCloses.Load())
}

// Disposals is the total number of Close and CloseAsync calls.
func (c *DisposeCounter) Disposals() int {
	return c.Closes() + c.AsyncCloses()
}

// SyncDisposable supports only Close.
type SyncDisposable struct {
	DisposeCounter

	Name     string
	Recorder *OrderRecorder
}

func (d *SyncDisposable) Close() error {
	d.closes.Add(1)
	d.Recorder.Record(d.Name)

	return nil
}

// AsyncDisposable supports only CloseAsync.
type AsyncDisposable struct {
	DisposeCounter

	Name     string
	Recorder *OrderRecorder
}

func (d *AsyncDisposable) CloseAsync(context.Context) error {
	d.asyncCloses.Add(1)
	d.Recorder.Record(d.Name)

	return nil
}

// DualDisposable supports both Close and CloseAsync.
type DualDisposable struct {
	DisposeCounter

	Name     string
	Recorder *OrderRecorder
}

func (d *DualDisposable) Close() error {
	d.closes.Add(1)
	d.Recorder.Record(d.Name)

	return nil
}

func (d *DualDisposable) CloseAsync(context.Context) error {
	d.asyncCloses.Add(1)
	d.Recorder.Record(d.Name)

	return nil
}
