package service

import (
	"context"
	"sync"
	"time"
)

type AsyncRunner func(task func())

type options struct {
	asyncRunner AsyncRunner
	now         func() time.Time
}

type Option func(*options)

func newOptions(opts []Option) options {
	o := options{
		asyncRunner: func(task func()) {
			go task()
		},
		now: time.Now,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

func WithAsyncRunner(runner AsyncRunner) Option {
	return func(o *options) {
		if runner != nil {
			o.asyncRunner = runner
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}

// Background runs tasks on their own goroutines and lets shutdown wait for them.
type Background struct {
	wg sync.WaitGroup
}

func (b *Background) Run(task func()) {
	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		task()
	}()
}

// Wait blocks until every started task returned or ctx is done.
func (b *Background) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		b.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
