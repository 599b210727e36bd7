package monitoring

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/splax/izzocam/internal/domain"
	"github.com/splax/izzocam/internal/repository"
)

const (
	// DefaultWindow is the trailing window used when none is given.
	DefaultWindow = 24 * time.Hour
	// DegradedErrorThreshold is the 24h error count above which health degrades.
	DegradedErrorThreshold = 50

	defaultDailyThreshold  = 10.0
	defaultHourlyThreshold = 1.0
)

// Options tunes a Monitor.
type Options struct {
	Pricing         Pricing
	DailyThreshold  float64
	HourlyThreshold float64
}

// Monitor records usage and error facts and summarises them on demand.
// Recording never fails the calling operation: storage errors are logged.
type Monitor struct {
	repo    repository.MonitoringRepository
	pricing Pricing
	daily   float64
	hourly  float64
	logger  *slog.Logger
	now     func() time.Time

	metricsOnce sync.Once
	usageTotal  *prometheus.CounterVec
	costTotal   *prometheus.CounterVec
	errorsTotal *prometheus.CounterVec
}

// New constructs a monitor. Zero thresholds select $10/day and $1/hour.
func New(repo repository.MonitoringRepository, opts Options, logger *slog.Logger) *Monitor {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.Pricing.Models == nil {
		opts.Pricing = DefaultPricing()
	}
	if opts.DailyThreshold <= 0 {
		opts.DailyThreshold = defaultDailyThreshold
	}
	if opts.HourlyThreshold <= 0 {
		opts.HourlyThreshold = defaultHourlyThreshold
	}
	m := &Monitor{
		repo:    repo,
		pricing: opts.Pricing,
		daily:   opts.DailyThreshold,
		hourly:  opts.HourlyThreshold,
		logger:  logger.With("component", "monitoring"),
		now:     time.Now,
	}
	m.initMetrics()
	return m
}

// RecordUsage appends a usage record.
func (m *Monitor) RecordUsage(ctx context.Context, record domain.UsageRecord) {
	if record.Timestamp.IsZero() {
		record.Timestamp = m.now().UTC()
	}
	if record.Cost != nil && *record.Cost < 0 {
		m.logger.Warn("dropping negative usage cost", "service", record.Service, "operation", record.Operation, "cost", *record.Cost)
		record.Cost = nil
	}
	attrs := []any{"service", record.Service, "operation", record.Operation, "success", record.Success}
	if record.Cost != nil {
		attrs = append(attrs, "cost_usd", *record.Cost)
	}
	if record.DurationMS != nil {
		attrs = append(attrs, "duration_ms", *record.DurationMS)
	}
	m.logger.Info("usage recorded", attrs...)
	m.observeUsage(record)

	if m.repo == nil {
		return
	}
	if err := m.repo.InsertUsage(ctx, &record); err != nil {
		m.logger.Error("persist usage record failed", "service", record.Service, "operation", record.Operation, "error", err)
	}
}

// RecordError appends an error record.
func (m *Monitor) RecordError(ctx context.Context, record domain.ErrorRecord) {
	if record.Timestamp.IsZero() {
		record.Timestamp = m.now().UTC()
	}
	if record.Severity == "" {
		record.Severity = domain.SeverityMedium
	}
	m.logger.Error("error recorded",
		"service", record.Service,
		"operation", record.Operation,
		"severity", record.Severity,
		"error", record.Error,
	)
	m.observeError(record)

	if m.repo == nil {
		return
	}
	if err := m.repo.InsertError(ctx, &record); err != nil {
		m.logger.Error("persist error record failed", "service", record.Service, "operation", record.Operation, "error", err)
	}
}

// ModelCall describes one completed model invocation.
type ModelCall struct {
	Operation        string
	UserID           string
	Model            string
	PromptTokens     int64
	CompletionTokens int64
	Duration         time.Duration
	Success          bool
}

// RecordModelUsage prices call from its token counts and records it under the
// openai service tag.
func (m *Monitor) RecordModelUsage(ctx context.Context, call ModelCall) float64 {
	cost := m.pricing.ModelCost(call.Model, call.PromptTokens, call.CompletionTokens)
	duration := call.Duration.Milliseconds()
	m.RecordUsage(ctx, domain.UsageRecord{
		Service:    domain.ServiceOpenAI,
		Operation:  call.Operation,
		UserID:     call.UserID,
		Success:    call.Success,
		DurationMS: &duration,
		Cost:       &cost,
		Metadata: &domain.UsageMetadata{
			Model:            call.Model,
			PromptTokens:     call.PromptTokens,
			CompletionTokens: call.CompletionTokens,
			TotalTokens:      call.PromptTokens + call.CompletionTokens,
		},
	})
	return cost
}

// RecordOperation records a fixed-cost call to service (store or media).
func (m *Monitor) RecordOperation(ctx context.Context, service, operation, userID string, success bool, duration time.Duration) {
	cost := m.pricing.OperationCost(service)
	record := domain.UsageRecord{
		Service:   service,
		Operation: operation,
		UserID:    userID,
		Success:   success,
		Cost:      &cost,
	}
	if duration > 0 {
		ms := duration.Milliseconds()
		record.DurationMS = &ms
	}
	m.RecordUsage(ctx, record)
}

// SummarizeUsage aggregates usage over the trailing window.
func (m *Monitor) SummarizeUsage(ctx context.Context, window time.Duration) (domain.UsageSummary, error) {
	if window <= 0 {
		window = DefaultWindow
	}
	since := m.now().UTC().Add(-window)
	summary := domain.UsageSummary{Window: window, Since: since, Services: map[string]domain.ServiceUsage{}}
	if m.repo == nil {
		return summary, errors.New("monitoring repository not configured")
	}
	records, err := m.repo.ListUsageSince(ctx, since)
	if err != nil {
		return summary, fmt.Errorf("list usage: %w", err)
	}

	succeeded := 0
	durations := make(map[string][]float64)
	for _, rec := range records {
		svc := summary.Services[rec.Service]
		svc.Operations++
		summary.TotalOperations++
		if rec.Cost != nil {
			svc.Cost += *rec.Cost
			summary.TotalCost += *rec.Cost
		}
		if rec.Success {
			svc.Success++
			succeeded++
		}
		if rec.DurationMS != nil {
			durations[rec.Service] = append(durations[rec.Service], float64(*rec.DurationMS))
		}
		summary.Services[rec.Service] = svc
	}
	for name, values := range durations {
		svc := summary.Services[name]
		sort.Float64s(values)
		avg := average(values)
		p95 := percentile(values, 0.95)
		svc.AvgDuration = &avg
		svc.P95Duration = &p95
		summary.Services[name] = svc
	}
	if summary.TotalOperations > 0 {
		summary.SuccessRate = float64(succeeded) / float64(summary.TotalOperations) * 100
	}
	return summary, nil
}

// SummarizeErrors aggregates error records over the trailing window.
func (m *Monitor) SummarizeErrors(ctx context.Context, window time.Duration) (domain.ErrorSummary, error) {
	if window <= 0 {
		window = DefaultWindow
	}
	since := m.now().UTC().Add(-window)
	summary := domain.ErrorSummary{
		Window:     window,
		Since:      since,
		BySeverity: make(map[domain.Severity]int, len(domain.Severities)),
		ByService:  map[string]int{},
	}
	for _, sev := range domain.Severities {
		summary.BySeverity[sev] = 0
	}
	if m.repo == nil {
		return summary, errors.New("monitoring repository not configured")
	}
	records, err := m.repo.ListErrorsSince(ctx, since)
	if err != nil {
		return summary, fmt.Errorf("list errors: %w", err)
	}
	for _, rec := range records {
		summary.TotalErrors++
		summary.BySeverity[rec.Severity]++
		summary.ByService[rec.Service]++
	}
	return summary, nil
}

// CostCheck is the outcome of CheckCostAlerts.
type CostCheck struct {
	DailyCost       float64              `json:"dailyCost"`
	HourlyCost      float64              `json:"hourlyCost"`
	DailyThreshold  float64              `json:"dailyThreshold"`
	HourlyThreshold float64              `json:"hourlyThreshold"`
	Alerts          []domain.ErrorRecord `json:"alerts"`
}

// CheckCostAlerts compares trailing 24h and 1h spend against the thresholds
// and records an error for each breach. It never blocks further work.
func (m *Monitor) CheckCostAlerts(ctx context.Context) (CostCheck, error) {
	check := CostCheck{DailyThreshold: m.daily, HourlyThreshold: m.hourly, Alerts: []domain.ErrorRecord{}}
	if m.repo == nil {
		return check, errors.New("monitoring repository not configured")
	}
	now := m.now().UTC()
	records, err := m.repo.ListUsageSince(ctx, now.Add(-DefaultWindow))
	if err != nil {
		return check, fmt.Errorf("list usage: %w", err)
	}
	hourStart := now.Add(-time.Hour)
	for _, rec := range records {
		if rec.Cost == nil {
			continue
		}
		check.DailyCost += *rec.Cost
		if !rec.Timestamp.Before(hourStart) {
			check.HourlyCost += *rec.Cost
		}
	}

	if check.DailyCost > m.daily {
		check.Alerts = append(check.Alerts, domain.ErrorRecord{
			Timestamp: now,
			Service:   domain.ServiceMonitoring,
			Operation: domain.OperationCostAlert,
			Error:     fmt.Sprintf("Daily cost threshold exceeded: $%.4f > $%s", check.DailyCost, formatUSD(m.daily)),
			Severity:  domain.SeverityHigh,
		})
	}
	if check.HourlyCost > m.hourly {
		check.Alerts = append(check.Alerts, domain.ErrorRecord{
			Timestamp: now,
			Service:   domain.ServiceMonitoring,
			Operation: domain.OperationCostAlert,
			Error:     fmt.Sprintf("Hourly cost threshold exceeded: $%.4f > $%s", check.HourlyCost, formatUSD(m.hourly)),
			Severity:  domain.SeverityMedium,
		})
	}
	for _, alert := range check.Alerts {
		m.RecordError(ctx, alert)
	}
	m.logger.Info("cost check complete", "daily_usd", check.DailyCost, "hourly_usd", check.HourlyCost, "alerts", len(check.Alerts))
	return check, nil
}

// Health is the monitoring status report.
type Health struct {
	Status    string              `json:"status"`
	Timestamp time.Time           `json:"timestamp"`
	Usage     domain.UsageSummary `json:"usage"`
	Errors    domain.ErrorSummary `json:"errors"`
}

// Health summarises the last 24h and reports degraded when errors exceed
// DegradedErrorThreshold.
func (m *Monitor) Health(ctx context.Context) (Health, error) {
	usage, err := m.SummarizeUsage(ctx, DefaultWindow)
	if err != nil {
		return Health{}, err
	}
	errs, err := m.SummarizeErrors(ctx, DefaultWindow)
	if err != nil {
		return Health{}, err
	}
	status := "healthy"
	if errs.TotalErrors > DegradedErrorThreshold {
		status = "degraded"
	}
	return Health{Status: status, Timestamp: m.now().UTC(), Usage: usage, Errors: errs}, nil
}

func formatUSD(v float64) string {
	return strings.TrimRight(strings.TrimRight(fmt.Sprintf("%.4f", v), "0"), ".")
}

func average(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var total float64
	for _, v := range values {
		total += v
	}
	return total / float64(len(values))
}

// percentile expects sorted values.
func percentile(values []float64, p float64) float64 {
	if len(values) == 0 {
		return 0
	}
	if p <= 0 {
		return values[0]
	}
	if p >= 1 {
		return values[len(values)-1]
	}
	pos := p * float64(len(values)-1)
	lower := int(math.Floor(pos))
	upper := int(math.Ceil(pos))
	if lower == upper {
		return values[lower]
	}
	weight := pos - float64(lower)
	return values[lower]*(1-weight) + values[upper]*weight
}
