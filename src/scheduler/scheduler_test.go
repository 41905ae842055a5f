package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/username/notefolio/backend/src/pricing"
)

type fakeReloader struct {
	changed bool
	err     error
	calls   int
}

func (f *fakeReloader) ReloadConfigIfChanged() (bool, error) {
	f.calls++
	return f.changed, f.err
}

type fakeHoldings struct {
	reqs []pricing.Request
	err  error
}

func (f *fakeHoldings) HeldSecurities() ([]pricing.Request, error) { return f.reqs, f.err }

type fakeWarmer struct {
	got         []pricing.Request
	hadDeadline bool
	calls       int
}

func (f *fakeWarmer) WarmUp(ctx context.Context, reqs []pricing.Request) int {
	f.calls++
	f.got = reqs
	_, f.hadDeadline = ctx.Deadline()
	return len(reqs) - 1
}

func TestConfigReloadJob(t *testing.T) {
	r := &fakeReloader{changed: true}
	job := NewConfigReloadJob(r)
	assert.Equal(t, "price_config_reload", job.Name())
	require.NoError(t, job.Run())
	assert.Equal(t, 1, r.calls)

	r.err = errors.New("unexpected end of JSON input")
	err := job.Run()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "reloading price config")
}

func TestQuoteWarmUpJob(t *testing.T) {
	holdings := &fakeHoldings{reqs: []pricing.Request{{Ticker: "CMS"}, {ISIN: "INE0DYJ01015"}}}
	warmer := &fakeWarmer{}
	job := NewQuoteWarmUpJob(holdings, warmer, 0)

	assert.Equal(t, DefaultWarmUpTimeout, job.timeout)
	require.NoError(t, job.Run())
	assert.Equal(t, 1, warmer.calls)
	assert.Len(t, warmer.got, 2)
	assert.True(t, warmer.hadDeadline)
}

func TestQuoteWarmUpJobSkipsWithoutHoldings(t *testing.T) {
	warmer := &fakeWarmer{}
	job := NewQuoteWarmUpJob(&fakeHoldings{}, warmer, time.Second)
	require.NoError(t, job.Run())
	assert.Zero(t, warmer.calls)

	job = NewQuoteWarmUpJob(&fakeHoldings{err: errors.New("database is closed")}, warmer, time.Second)
	assert.Error(t, job.Run())
	assert.Zero(t, warmer.calls)
}

func TestSchedulerAddJob(t *testing.T) {
	s := New()
	r := &fakeReloader{}
	require.NoError(t, s.AddJob("@every 1m", NewConfigReloadJob(r)))
	require.NoError(t, s.AddJob("*/15 9-15 * * 1-5", NewQuoteWarmUpJob(&fakeHoldings{}, &fakeWarmer{}, time.Second)))
	assert.Equal(t, 2, s.Entries())

	assert.Error(t, s.AddJob("not a schedule", NewConfigReloadJob(r)))
	assert.Equal(t, 2, s.Entries())

	require.NoError(t, s.RunNow(NewConfigReloadJob(r)))
	assert.Equal(t, 1, r.calls)

	s.Start()
	s.Stop()
}
