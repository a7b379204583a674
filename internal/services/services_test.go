package services

import (
	"context"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"granttrack/internal/amqp"
	"granttrack/internal/cache"
	"granttrack/internal/core"
	"granttrack/internal/storage"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []*amqp.LedgerEvent
}

func (p *recordingPublisher) PublishEvent(_ context.Context, ev *amqp.LedgerEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return nil
}

func (p *recordingPublisher) types() []amqp.EventType {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]amqp.EventType, len(p.events))
	for i, ev := range p.events {
		out[i] = ev.Type
	}
	return out
}

func (p *recordingPublisher) last() *amqp.LedgerEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.events) == 0 {
		return nil
	}
	return p.events[len(p.events)-1]
}

type fixture struct {
	store      *storage.Store
	events     *recordingPublisher
	codeCache  *cache.LRUCache[[]core.Code]
	reconciler *Reconciler
	grants     *GrantService
	chart      *ChartService
	forecast   *ForecastService
	expenses   *ExpenseService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store, err := storage.Open(context.Background(), storage.Config{
		Dialect:    storage.DialectSQLite,
		SQLitePath: filepath.Join(t.TempDir(), "granttrack.db"),
		Normalizer: core.Normalizer{TitleCase: true},
	})
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	events := &recordingPublisher{}
	codeCache := cache.NewLRUCache[[]core.Code](16, time.Minute)
	reconciler := NewReconciler(store)
	return &fixture{
		store:      store,
		events:     events,
		codeCache:  codeCache,
		reconciler: reconciler,
		grants:     NewGrantService(store, reconciler, events),
		chart:      NewChartService(store, codeCache),
		forecast:   NewForecastService(store, events),
		expenses:   NewExpenseService(store, events),
	}
}

func amount(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// grantInput covers Jan-Mar 2024.
func grantInput(name, award string) GrantInput {
	return GrantInput{
		Name:       name,
		FunderName: "Acme Foundation",
		FunderType: "Private",
		StartDate:  core.NewDate(2024, 1, 15),
		EndDate:    core.NewDate(2024, 3, 1),
		TotalAward: amount(award),
		Status:     core.StatusActive,
	}
}

func (f *fixture) addGrant(t *testing.T, name, award string) int64 {
	t.Helper()
	ctx := context.Background()
	inserted, err := f.grants.AddGrant(ctx, grantInput(name, award))
	require.NoError(t, err)
	require.True(t, inserted)
	g, err := f.grants.GrantByName(ctx, name)
	require.NoError(t, err)
	return g.ID
}

func (f *fixture) addLineItem(t *testing.T, grantID int64, name, allocated string) int64 {
	t.Helper()
	ctx := context.Background()
	inserted, err := f.grants.AddLineItem(ctx, core.LineItem{GrantID: grantID, Name: name, AllocatedAmount: amount(allocated)})
	require.NoError(t, err)
	require.True(t, inserted)
	li, err := f.grants.LineItemByName(ctx, grantID, name)
	require.NoError(t, err)
	return li.ID
}

const testChart = `
categories:
  - name: expenses
    description: Operating expenses
    subcategories:
      - name: travel
        codes:
          - code: "6100"
            name: airfare
          - code: "6110"
            name: lodging
  - name: personnel
    subcategories:
      - name: salaries
        codes:
          - code: "5000"
            name: wages
`

func (f *fixture) importChart(t *testing.T) {
	t.Helper()
	_, err := f.chart.ImportChart(context.Background(), strings.NewReader(testChart))
	require.NoError(t, err)
}
