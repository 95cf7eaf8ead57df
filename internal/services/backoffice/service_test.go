package backoffice_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/viniciusnovato/finance-sub000/internal/models"
	"github.com/viniciusnovato/finance-sub000/internal/services/backoffice"
	"github.com/viniciusnovato/finance-sub000/internal/services/ledger"
	"github.com/viniciusnovato/finance-sub000/internal/services/memstore"
	s3service "github.com/viniciusnovato/finance-sub000/internal/services/s3"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func date(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t
}

type clock struct{ t time.Time }

func (c *clock) now() time.Time { return c.t }

type fixture struct {
	svc   *backoffice.Service
	clock *clock
}

func newFixture(t *testing.T, opts ...backoffice.Option) *fixture {
	t.Helper()
	c := &clock{t: date("2024-01-10").Add(9 * time.Hour)}
	store := memstore.New(memstore.WithClock(c.now))
	stores := backoffice.Stores{
		Clients:   store.Clients(),
		Contracts: store.Contracts(),
		Payments:  store.Payments(),
	}
	opts = append([]backoffice.Option{backoffice.WithClock(c.now)}, opts...)
	return &fixture{svc: backoffice.New(stores, opts...), clock: c}
}

func (f *fixture) client(t *testing.T) *models.Client {
	t.Helper()
	client, err := f.svc.CreateClient(context.Background(), &models.ClientCreate{FirstName: "Maria", LastName: "Souza", Email: "maria@example.com"})
	require.NoError(t, err)
	return client
}

func (f *fixture) contract(t *testing.T, total, down string) *models.Contract {
	t.Helper()
	client := f.client(t)
	contract, err := f.svc.CreateContract(context.Background(), &models.ContractCreate{
		ClientID:    client.ID,
		TotalValue:  dec(total),
		DownPayment: dec(down),
	})
	require.NoError(t, err)
	return contract
}

func scheduleRequest(count int, first string) ledger.ScheduleRequest {
	d := date(first)
	return ledger.ScheduleRequest{InstallmentsCount: count, FirstDueDate: &d}
}

func requireKind(t *testing.T, err error, kind models.ErrorKind) {
	t.Helper()
	require.Error(t, err)
	got, ok := models.KindOf(err)
	require.True(t, ok, "expected a ledger error, got %v", err)
	assert.Equal(t, kind, got)
}

func TestCreateContract_NumbersAndDefaults(t *testing.T) {
	f := newFixture(t)

	first := f.contract(t, "1000", "0")
	second := f.contract(t, "500", "0")

	assert.Equal(t, "2024-0001", first.ContractNumber)
	assert.Equal(t, "2024-0002", second.ContractNumber)
	assert.Equal(t, models.ContractStatusPending, first.Status)
}

func TestCreateContract_UnknownClient(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.CreateContract(context.Background(), &models.ContractCreate{
		ClientID:   uuid.New(),
		TotalValue: dec("100"),
	})
	requireKind(t, err, models.KindNotFound)
}

func TestGenerateSchedule(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	contract := f.contract(t, "1200", "200")

	schedule, err := f.svc.GenerateSchedule(ctx, contract.ID, scheduleRequest(5, "2024-01-15"))
	require.NoError(t, err)

	require.Len(t, schedule.Payments, 5)
	assert.True(t, dec("200").Equal(schedule.InstallmentAmount))
	assert.True(t, dec("1000").Equal(schedule.RemainingAmount))
	for i, p := range schedule.Payments {
		assert.NotEqual(t, uuid.Nil, p.ID)
		assert.Equal(t, i+1, p.InstallmentNumber)
		assert.Equal(t, models.PaymentMethodBoleto, p.PaymentMethod)
	}
	assert.Equal(t, date("2024-05-15"), schedule.Payments[4].DueDate)

	_, err = f.svc.GenerateSchedule(ctx, contract.ID, scheduleRequest(5, "2024-01-15"))
	requireKind(t, err, models.KindScheduleAlreadyExists)
}

func TestGenerateSchedule_Errors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.GenerateSchedule(ctx, uuid.New(), scheduleRequest(3, "2024-01-15"))
	requireKind(t, err, models.KindNotFound)

	contract := f.contract(t, "900", "0")
	_, err = f.svc.GenerateSchedule(ctx, contract.ID, scheduleRequest(0, "2024-01-15"))
	requireKind(t, err, models.KindInvalidInstallmentCount)

	_, err = f.svc.ChangeContractStatus(ctx, contract.ID, models.ContractStatusCancelled, nil)
	require.NoError(t, err)
	_, err = f.svc.GenerateSchedule(ctx, contract.ID, scheduleRequest(3, "2024-01-15"))
	requireKind(t, err, models.KindInvalidContractStatus)
}

func TestPaymentLifecycle_CompletesContract(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	contract := f.contract(t, "1000", "0")

	schedule, err := f.svc.GenerateSchedule(ctx, contract.ID, scheduleRequest(5, "2024-01-15"))
	require.NoError(t, err)

	paidOn := date("2024-01-12")
	for _, p := range schedule.Payments[:4] {
		_, err := f.svc.ConfirmPayment(ctx, p.ID, ledger.ConfirmRequest{PaymentDate: &paidOn})
		require.NoError(t, err)
	}

	_, err = f.svc.ChangeContractStatus(ctx, contract.ID, models.ContractStatusCompleted, nil)
	requireKind(t, err, models.KindPendingPayments)

	last, err := f.svc.ConfirmPayment(ctx, schedule.Payments[4].ID, ledger.ConfirmRequest{PaymentDate: &paidOn})
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusPaid, last.Status)
	assert.True(t, dec("200").Equal(last.AmountPaid.Decimal))

	_, err = f.svc.ConfirmPayment(ctx, last.ID, ledger.ConfirmRequest{PaymentDate: &paidOn})
	requireKind(t, err, models.KindAlreadyPaid)

	completed, err := f.svc.ChangeContractStatus(ctx, contract.ID, models.ContractStatusCompleted, nil)
	require.NoError(t, err)
	assert.Equal(t, models.ContractStatusCompleted, completed.Status)
	require.NotNil(t, completed.CompletedAt)

	summary, err := f.svc.ContractSummary(ctx, contract.ID)
	require.NoError(t, err)
	assert.True(t, summary.Metrics.IsFullyPaid)
	assert.Nil(t, summary.NextPayment)

	_, err = f.svc.ChangeContractStatus(ctx, contract.ID, models.ContractStatusActive, nil)
	requireKind(t, err, models.KindInvalidTransition)
}

func TestCancelAndDeletePayment(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	contract := f.contract(t, "300", "0")

	schedule, err := f.svc.GenerateSchedule(ctx, contract.ID, scheduleRequest(3, "2024-02-01"))
	require.NoError(t, err)

	reason := "renegotiated"
	cancelled, err := f.svc.CancelPayment(ctx, schedule.Payments[0].ID, &reason)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusCancelled, cancelled.Status)
	require.NotNil(t, cancelled.CancellationReason)
	assert.Equal(t, "renegotiated", *cancelled.CancellationReason)

	_, err = f.svc.CancelPayment(ctx, schedule.Payments[0].ID, nil)
	requireKind(t, err, models.KindAlreadyCancelled)

	paidOn := date("2024-02-01")
	_, err = f.svc.ConfirmPayment(ctx, schedule.Payments[1].ID, ledger.ConfirmRequest{PaymentDate: &paidOn})
	require.NoError(t, err)

	requireKind(t, f.svc.DeletePayment(ctx, schedule.Payments[1].ID), models.KindAlreadyPaid)
	require.NoError(t, f.svc.DeletePayment(ctx, schedule.Payments[2].ID))

	_, err = f.svc.GetPayment(ctx, schedule.Payments[2].ID)
	requireKind(t, err, models.KindNotFound)

	requireKind(t, f.svc.DeleteContract(ctx, contract.ID), models.KindContractHasPayments)
}

func TestDeleteClient(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	contract := f.contract(t, "100", "0")
	requireKind(t, f.svc.DeleteClient(ctx, contract.ClientID), models.KindClientHasContracts)

	require.NoError(t, f.svc.DeleteContract(ctx, contract.ID))
	require.NoError(t, f.svc.DeleteClient(ctx, contract.ClientID))

	_, err := f.svc.GetClient(ctx, contract.ClientID)
	requireKind(t, err, models.KindNotFound)
}

func TestOverduePayments(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	contract := f.contract(t, "900", "0")

	_, err := f.svc.GenerateSchedule(ctx, contract.ID, scheduleRequest(3, "2024-01-15"))
	require.NoError(t, err)

	// Jan 15 is 60 days late and Feb 15 is 29 days late; Mar 15 is due today.
	f.clock.t = date("2024-03-15").Add(18 * time.Hour)

	payments, page, err := f.svc.ListPayments(ctx, models.PaymentFilter{Status: models.PaymentStatusOverdue}, models.NewPage(1, 20))
	require.NoError(t, err)
	require.Len(t, payments, 2)
	assert.Equal(t, 2, page.Total)
	for _, p := range payments {
		assert.Equal(t, models.PaymentStatusOverdue, p.Status)
	}

	pending, _, err := f.svc.ListPayments(ctx, models.PaymentFilter{Status: models.PaymentStatusPending}, models.NewPage(1, 20))
	require.NoError(t, err)
	require.Len(t, pending, 3, "stored status filter still selects overdue rows")
	assert.Equal(t, models.PaymentStatusPending, pending[2].Status)

	items, err := f.svc.OverdueInstallments(ctx)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, 60, items[0].DaysOverdue)
	assert.True(t, dec("6").Equal(items[0].Interest), "60 days at 1% a month")
	assert.True(t, dec("306").Equal(items[0].AmountDue))
	assert.Equal(t, 29, items[1].DaysOverdue)
	assert.True(t, dec("2.9").Equal(items[1].Interest))

	groups, err := f.svc.OverdueByClient(ctx)
	require.NoError(t, err)
	require.Len(t, groups, 1)
	assert.Equal(t, contract.ClientID, groups[0].Client.ID)
	assert.Len(t, groups[0].Items, 2)
	assert.Equal(t, contract.ContractNumber, groups[0].Contracts[contract.ID].ContractNumber)
}

func TestListContracts_IncludesMetrics(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	contract := f.contract(t, "600", "0")

	schedule, err := f.svc.GenerateSchedule(ctx, contract.ID, scheduleRequest(3, "2024-01-15"))
	require.NoError(t, err)
	paidOn := date("2024-01-15")
	_, err = f.svc.ConfirmPayment(ctx, schedule.Payments[0].ID, ledger.ConfirmRequest{PaymentDate: &paidOn})
	require.NoError(t, err)

	summaries, page, err := f.svc.ListContracts(ctx, models.ContractFilter{}, models.NewPage(1, 10))
	require.NoError(t, err)
	require.Len(t, summaries, 1)
	assert.Equal(t, 1, page.Total)
	assert.Equal(t, 1, page.Pages)

	m := summaries[0].Metrics
	assert.True(t, dec("200").Equal(m.TotalPaid))
	assert.True(t, dec("400").Equal(m.AmountRemaining))
	assert.Equal(t, 1, m.PaymentsMade)
	require.NotNil(t, summaries[0].NextPayment)
	assert.Equal(t, 2, summaries[0].NextPayment.InstallmentNumber)
}

func TestImportClients(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	result, err := f.svc.ImportClients(ctx, "nome,email\nAna,ana@example.com\n,x@example.com\nBia,bia@example.com\n", "upload.csv")
	require.NoError(t, err)
	assert.Equal(t, 2, result.Inserted)
	assert.Equal(t, 1, result.Failed)
	assert.Len(t, result.Errors, 1)
	assert.NotEmpty(t, result.BatchID)

	clients, page, err := f.svc.ListClients(ctx, models.ClientFilter{}, models.NewPage(1, 20))
	require.NoError(t, err)
	assert.Len(t, clients, 2)
	assert.Equal(t, 2, page.Total)
}

// countingCache keys reports by generation the way the Redis cache does, so
// an invalidation leaves older entries in place but unreachable.
type countingCache struct {
	entries     map[string][]byte
	generation  int
	hits        int
	invalidated int
}

func newCountingCache() *countingCache {
	return &countingCache{entries: map[string][]byte{}}
}

func (c *countingCache) Key(_ context.Context, name string) (string, error) {
	return fmt.Sprintf("%d:%s", c.generation, name), nil
}

func (c *countingCache) Get(_ context.Context, key string, dest interface{}) (bool, error) {
	data, ok := c.entries[key]
	if !ok {
		return false, nil
	}
	c.hits++
	return true, json.Unmarshal(data, dest)
}

func (c *countingCache) Set(_ context.Context, key string, value interface{}) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	c.entries[key] = data
	return nil
}

func (c *countingCache) Invalidate(context.Context) error {
	c.invalidated++
	c.generation++
	return nil
}

func TestDashboard_CachesAndInvalidates(t *testing.T) {
	cache := newCountingCache()
	f := newFixture(t, backoffice.WithCache(cache))
	ctx := context.Background()

	f.contract(t, "1000", "0")
	assert.Equal(t, 2, cache.invalidated, "client and contract writes invalidate")

	dashboard, err := f.svc.Dashboard(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, 30, dashboard.PeriodDays)
	assert.Equal(t, 1, dashboard.Clients.Total)
	assert.Equal(t, 1, dashboard.Contracts.Total)
	assert.Contains(t, cache.entries, "2:dashboard:2024-01-10:30")

	_, err = f.svc.Dashboard(ctx, 30)
	require.NoError(t, err)
	assert.Equal(t, 1, cache.hits)

	f.client(t)
	dashboard, err = f.svc.Dashboard(ctx, 30)
	require.NoError(t, err)
	assert.Equal(t, 1, cache.hits)
	assert.Equal(t, 2, dashboard.Clients.Total)
}

func TestDashboard_CacheKeyedByDay(t *testing.T) {
	cache := newCountingCache()
	f := newFixture(t, backoffice.WithCache(cache))
	ctx := context.Background()

	_, err := f.svc.Dashboard(ctx, 30)
	require.NoError(t, err)

	f.clock.t = f.clock.t.AddDate(0, 0, 1)
	dashboard, err := f.svc.Dashboard(ctx, 30)
	require.NoError(t, err)
	assert.Equal(t, 0, cache.hits, "a new day rebuilds the report")
	assert.Equal(t, "2024-01-11", dashboard.GeneratedAt.Format("2006-01-02"))
	assert.Contains(t, cache.entries, "0:dashboard:2024-01-11:30")
}

// racingClients runs interleave once, after the dashboard has read clients.
type racingClients struct {
	backoffice.ClientStore
	interleave func()
}

func (r *racingClients) ListAll(ctx context.Context) ([]models.Client, error) {
	clients, err := r.ClientStore.ListAll(ctx)
	if fn := r.interleave; fn != nil {
		r.interleave = nil
		fn()
	}
	return clients, err
}

func TestDashboard_WriteDuringBuildIsNotCached(t *testing.T) {
	ctx := context.Background()
	now := func() time.Time { return date("2024-01-10").Add(9 * time.Hour) }
	store := memstore.New(memstore.WithClock(now))
	cache := newCountingCache()

	other := backoffice.New(backoffice.Stores{
		Clients: store.Clients(), Contracts: store.Contracts(), Payments: store.Payments(),
	}, backoffice.WithClock(now), backoffice.WithCache(cache))

	clients := &racingClients{ClientStore: store.Clients()}
	svc := backoffice.New(backoffice.Stores{
		Clients: clients, Contracts: store.Contracts(), Payments: store.Payments(),
	}, backoffice.WithClock(now), backoffice.WithCache(cache))

	clients.interleave = func() {
		_, err := other.CreateClient(ctx, &models.ClientCreate{FirstName: "Ana", Email: "ana@example.com"})
		require.NoError(t, err)
	}

	stale, err := svc.Dashboard(ctx, 30)
	require.NoError(t, err)
	assert.Equal(t, 0, stale.Clients.Total)

	fresh, err := svc.Dashboard(ctx, 30)
	require.NoError(t, err)
	assert.Equal(t, 0, cache.hits)
	assert.Equal(t, 1, fresh.Clients.Total)
}

func TestMonthlyRevenue_RejectsOversizedWindow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.MonthlyRevenue(ctx, backoffice.MaxRevenueMonths+1)
	requireKind(t, err, models.KindInvalidInput)

	_, err = f.svc.MonthlyRevenue(ctx, -1)
	requireKind(t, err, models.KindInvalidInput)

	revenue, err := f.svc.MonthlyRevenue(ctx, backoffice.MaxRevenueMonths)
	require.NoError(t, err)
	assert.Len(t, revenue, backoffice.MaxRevenueMonths)
}

type fakeExporter struct {
	uploads map[string][]byte
	failing bool
}

func (e *fakeExporter) UploadFile(_ context.Context, key string, data []byte, contentType string) error {
	if e.failing {
		return errors.New("bucket unavailable")
	}
	e.uploads[key] = data
	return nil
}

func (e *fakeExporter) GeneratePresignedDownloadURL(_ context.Context, key string, expiryMinutes int) (*s3service.PresignedURLResult, error) {
	return &s3service.PresignedURLResult{
		URL:       "https://reports.example.com/" + key,
		Key:       key,
		ExpiresAt: time.Date(2024, 1, 10, 9, expiryMinutes, 0, 0, time.UTC),
	}, nil
}

func TestExportDashboard(t *testing.T) {
	ctx := context.Background()

	_, err := newFixture(t).svc.ExportDashboard(ctx, 7)
	assert.ErrorIs(t, err, backoffice.ErrExportDisabled)

	exporter := &fakeExporter{uploads: map[string][]byte{}}
	f := newFixture(t, backoffice.WithExporter(exporter, 15))

	result, err := f.svc.ExportDashboard(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, "reports/2024/01/10/dashboard_7d_090000.json", result.Key)
	assert.True(t, strings.HasPrefix(result.URL, "https://reports.example.com/reports/"))
	require.Contains(t, exporter.uploads, result.Key)
	assert.Contains(t, string(exporter.uploads[result.Key]), `"period_days": 7`)

	exporter.failing = true
	_, err = f.svc.ExportDashboard(ctx, 7)
	assert.Error(t, err)
}

func TestMonthlyRevenue(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	contract := f.contract(t, "600", "0")

	schedule, err := f.svc.GenerateSchedule(ctx, contract.ID, scheduleRequest(3, "2024-01-15"))
	require.NoError(t, err)
	paidOn := date("2024-01-20")
	_, err = f.svc.ConfirmPayment(ctx, schedule.Payments[0].ID, ledger.ConfirmRequest{PaymentDate: &paidOn})
	require.NoError(t, err)

	revenue, err := f.svc.MonthlyRevenue(ctx, 3)
	require.NoError(t, err)
	require.Len(t, revenue, 3)
	assert.Equal(t, "2024-01", revenue[2].Month)
	assert.True(t, dec("200").Equal(revenue[2].Revenue))
	assert.Equal(t, 1, revenue[2].Payments)
}

// racingPayments runs interleave once, right after the first read, so the
// caller's change is computed from a state that no longer holds.
type racingPayments struct {
	backoffice.PaymentStore
	interleave func()
}

func (r *racingPayments) GetByID(ctx context.Context, id uuid.UUID) (*models.Payment, error) {
	p, err := r.PaymentStore.GetByID(ctx, id)
	if fn := r.interleave; fn != nil {
		r.interleave = nil
		fn()
	}
	return p, err
}

type racingContracts struct {
	backoffice.ContractStore
	interleave func()
}

func (r *racingContracts) GetByID(ctx context.Context, id uuid.UUID) (*models.Contract, error) {
	c, err := r.ContractStore.GetByID(ctx, id)
	if fn := r.interleave; fn != nil {
		r.interleave = nil
		fn()
	}
	return c, err
}

func TestConcurrentTransitions_KeepTerminalStates(t *testing.T) {
	ctx := context.Background()
	now := func() time.Time { return date("2024-01-10").Add(9 * time.Hour) }
	store := memstore.New(memstore.WithClock(now))
	plain := backoffice.Stores{Clients: store.Clients(), Contracts: store.Contracts(), Payments: store.Payments()}
	other := backoffice.New(plain, backoffice.WithClock(now))

	payments := &racingPayments{PaymentStore: store.Payments()}
	contracts := &racingContracts{ContractStore: store.Contracts()}
	svc := backoffice.New(backoffice.Stores{Clients: store.Clients(), Contracts: contracts, Payments: payments}, backoffice.WithClock(now))

	client, err := other.CreateClient(ctx, &models.ClientCreate{FirstName: "Ana", Email: "ana@example.com"})
	require.NoError(t, err)
	contract, err := other.CreateContract(ctx, &models.ContractCreate{ClientID: client.ID, TotalValue: dec("200")})
	require.NoError(t, err)
	schedule, err := other.GenerateSchedule(ctx, contract.ID, scheduleRequest(2, "2024-01-15"))
	require.NoError(t, err)

	paidOn := date("2024-01-09")
	confirm := func(id uuid.UUID) {
		_, err := other.ConfirmPayment(ctx, id, ledger.ConfirmRequest{PaymentDate: &paidOn})
		require.NoError(t, err)
	}

	t.Run("cancel loses to a confirmation", func(t *testing.T) {
		id := schedule.Payments[0].ID
		payments.interleave = func() { confirm(id) }

		_, err := svc.CancelPayment(ctx, id, nil)
		requireKind(t, err, models.KindAlreadyPaid)

		stored, err := other.GetPayment(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, models.PaymentStatusPaid, stored.Status)
		require.NotNil(t, stored.PaidDate)
		assert.Equal(t, "2024-01-09", stored.PaidDate.Format("2006-01-02"))
	})

	t.Run("cancel loses to completion", func(t *testing.T) {
		confirm(schedule.Payments[1].ID)
		contracts.interleave = func() {
			_, err := other.ChangeContractStatus(ctx, contract.ID, models.ContractStatusCompleted, nil)
			require.NoError(t, err)
		}

		_, err := svc.ChangeContractStatus(ctx, contract.ID, models.ContractStatusCancelled, nil)
		requireKind(t, err, models.KindInvalidTransition)

		stored, err := other.GetContract(ctx, contract.ID)
		require.NoError(t, err)
		assert.Equal(t, models.ContractStatusCompleted, stored.Status)
		assert.Nil(t, stored.CancelledAt)
	})
}
