package config

import "sync/atomic"

// DynamicLong holds a live-reloadable integer setting. Readers call Get on
// every use instead of caching the value, so a reload task updating the
// holder is observed immediately by concurrent validation calls.
type DynamicLong struct {
	value atomic.Int64
}

func NewDynamicLong(initial int64) *DynamicLong {
	d := &DynamicLong{}
	d.value.Store(initial)
	return d
}

func (d *DynamicLong) Get() int64 {
	return d.value.Load()
}

func (d *DynamicLong) Set(v int64) {
	d.value.Store(v)
}
