package store

import "time"

type Option interface {
	config(*BadgerStore)
}

// WithCompressor compresses literals before they are written.
func WithCompressor(cmp Compressor) Option {
	return &withCmp{
		cmp: cmp,
	}
}

type withCmp struct {
	cmp Compressor
}

func (opt withCmp) config(store *BadgerStore) {
	store.cmp = opt.cmp
}

// WithGCInterval sets how often the value log is garbage collected.
func WithGCInterval(interval time.Duration) Option {
	return &withGC{interval: interval}
}

type withGC struct {
	interval time.Duration
}

func (opt withGC) config(store *BadgerStore) {
	store.gcInterval = opt.interval
}
