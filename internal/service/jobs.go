package service

import (
	"context"
	"strconv"
	"time"

	"github.com/platformhq/licensing/internal/config"
	"github.com/platformhq/licensing/internal/domain/alertlog"
	"github.com/platformhq/licensing/internal/domain/license"
	"github.com/platformhq/licensing/internal/domain/tenant"
	"github.com/platformhq/licensing/internal/domain/usage"
	"github.com/platformhq/licensing/internal/domain/webhookevent"
	ierr "github.com/platformhq/licensing/internal/errors"
	"github.com/platformhq/licensing/internal/logger"
	"github.com/platformhq/licensing/internal/notification"
	"github.com/platformhq/licensing/internal/types"
	"github.com/sourcegraph/conc/pool"
)

// expiryThresholds are the days-to-expiry marks that trigger one alert
// each per license per threshold.
var expiryThresholds = []int{30, 15, 7, 3, 1}

// usageWarningThreshold is the fraction of a limit past which the daily
// aggregation emits a usage warning.
const usageWarningThreshold = 0.9

// renewalReminderHorizonDays bounds how far out reminders are considered
const renewalReminderHorizonDays = 60

// webhookEventRetentionDays is how long processed webhook records are kept
// before the cleanup job garbage-collects them. Pending and failed records
// are never collected.
const webhookEventRetentionDays = 30

// Alert kinds recorded in the dedup log
const (
	alertKindExpiry          = "expiry_alert"
	alertKindRenewalReminder = "renewal_reminder"
)

// JobService holds the handlers behind the compliance and renewal
// scheduler. Every job is idempotent per logical run: alert dedup rows
// guarantee at-most-one send per (license, kind, cycle) even when a run
// repeats. Tenants are processed with bounded concurrency and one
// tenant's failure never aborts the rest.
type JobService interface {
	RunExpiryCheck(ctx context.Context) error
	RunUsageAggregation(ctx context.Context) error
	RunRenewalReminders(ctx context.Context) error
	RunComplianceCheck(ctx context.Context) error
	RunMonthlyBilling(ctx context.Context) error
	RunWebhookRetention(ctx context.Context) error
}

type jobService struct {
	licenseRepo  license.Repository
	usageRepo    usage.Repository
	snapshotRepo usage.SnapshotRepository
	tenantRepo   tenant.Repository
	alertRepo    alertlog.Repository
	webhookRepo  webhookevent.Repository
	billingSvc   BillingService
	usageSvc     UsageService
	licenseSvc   LicenseService
	notifier     notification.Notifier
	concurrency  int
	logger       *logger.Logger
}

func NewJobService(
	licenseRepo license.Repository,
	usageRepo usage.Repository,
	snapshotRepo usage.SnapshotRepository,
	tenantRepo tenant.Repository,
	alertRepo alertlog.Repository,
	webhookRepo webhookevent.Repository,
	billingSvc BillingService,
	usageSvc UsageService,
	licenseSvc LicenseService,
	notifier notification.Notifier,
	cfg *config.Configuration,
	logger *logger.Logger,
) JobService {
	return &jobService{
		licenseRepo:  licenseRepo,
		usageRepo:    usageRepo,
		snapshotRepo: snapshotRepo,
		tenantRepo:   tenantRepo,
		alertRepo:    alertRepo,
		webhookRepo:  webhookRepo,
		billingSvc:   billingSvc,
		usageSvc:     usageSvc,
		licenseSvc:   licenseSvc,
		notifier:     notifier,
		concurrency:  cfg.Scheduler.Concurrency,
		logger:       logger,
	}
}

// RunExpiryCheck transitions overdue licenses to expired and sends one
// graded alert per (license, threshold).
func (s *jobService) RunExpiryCheck(ctx context.Context) error {
	now := time.Now().UTC()

	active, err := s.licenseRepo.ListActive(ctx)
	if err != nil {
		return err
	}
	for _, lic := range active {
		if now.Before(lic.ValidUntil) {
			continue
		}
		lic.LicenseStatus = types.LicenseStatusExpired
		lic.UpdatedAt = now
		lic.UpdatedBy = types.DefaultUserID
		if err := s.licenseRepo.Update(ctx, lic); err != nil {
			s.logger.Errorw("failed to expire license",
				"error", err, "license_id", lic.ID, "tenant_id", lic.TenantID)
			continue
		}
		s.licenseSvc.InvalidateCache(ctx, lic.TenantID)
		s.logger.Infow("license expired",
			"license_id", lic.ID, "tenant_id", lic.TenantID, "valid_until", lic.ValidUntil)
	}

	for _, threshold := range expiryThresholds {
		expiring, err := s.licenseRepo.ListExpiringWithin(ctx, threshold)
		if err != nil {
			s.logger.Errorw("failed to list expiring licenses",
				"error", err, "threshold_days", threshold)
			continue
		}
		for _, lic := range expiring {
			s.sendExpiryAlert(ctx, lic, threshold)
		}
	}
	return nil
}

// sendExpiryAlert sends at most one alert per (license, threshold). The
// dedup row is written before the notification so a crash between the two
// drops an alert rather than double-sending.
func (s *jobService) sendExpiryAlert(ctx context.Context, lic *license.License, threshold int) {
	cycleKey := strconv.Itoa(threshold)
	sent, err := s.alertRepo.Exists(ctx, lic.ID, alertKindExpiry, cycleKey)
	if err != nil {
		s.logger.Errorw("failed to check expiry alert dedup",
			"error", err, "license_id", lic.ID)
		return
	}
	if sent {
		return
	}
	if err := s.alertRepo.Create(ctx, alertlog.New(lic.TenantID, lic.ID, alertKindExpiry, cycleKey)); err != nil {
		if !ierr.IsAlreadyExists(err) {
			s.logger.Errorw("failed to record expiry alert",
				"error", err, "license_id", lic.ID)
		}
		return
	}

	s.notify(ctx, notification.New(notification.TypeExpiryAlert, lic.TenantID,
		"Your license expires in "+cycleKey+" days", map[string]any{
			"license_id":     lic.ID,
			"days_remaining": threshold,
			"urgency":        types.UrgencyForDays(threshold),
			"valid_until":    lic.ValidUntil,
		}))
}

// RunUsageAggregation writes a daily snapshot per active tenant and warns
// on dimensions at 90% or more of their limit.
func (s *jobService) RunUsageAggregation(ctx context.Context) error {
	active, err := s.licenseRepo.ListActive(ctx)
	if err != nil {
		return err
	}

	p := pool.New().WithMaxGoroutines(s.concurrency)
	for _, lic := range active {
		lic := lic
		p.Go(func() {
			if err := s.aggregateTenantUsage(ctx, lic); err != nil {
				s.logger.Errorw("usage aggregation failed for tenant",
					"error", err, "tenant_id", lic.TenantID)
			}
		})
	}
	p.Wait()
	return nil
}

func (s *jobService) aggregateTenantUsage(ctx context.Context, lic *license.License) error {
	yesterday := time.Now().UTC().AddDate(0, 0, -1).Truncate(24 * time.Hour)

	reading, err := s.resourceReading(ctx, lic.TenantID)
	if err != nil {
		return err
	}

	snap := &usage.DailySnapshot{
		ID:          types.GenerateUUIDWithPrefix(types.UUID_PREFIX_USAGE_SNAPSHOT),
		TenantID:    lic.TenantID,
		Date:        yesterday,
		ActiveUsers: reading.ActiveUsers,
		StorageGB:   reading.StorageGB,
		APICalls:    reading.APICalls,
		CreatedAt:   time.Now().UTC(),
	}
	if err := s.snapshotRepo.Create(ctx, snap); err != nil {
		if ierr.IsAlreadyExists(err) {
			// Re-run for a day already aggregated
			return nil
		}
		return err
	}

	s.warnOnDimension(ctx, lic, "users", float64(reading.ActiveUsers), float64(lic.MaxUsers))
	s.warnOnDimension(ctx, lic, "storage_gb", reading.StorageGB, float64(lic.MaxStorageGB))
	s.warnOnDimension(ctx, lic, "api_calls", float64(reading.APICalls), float64(lic.MaxAPICallsPerMonth))
	return nil
}

func (s *jobService) warnOnDimension(ctx context.Context, lic *license.License, dimension string, current, limit float64) {
	if limit <= 0 || current < limit*usageWarningThreshold {
		return
	}
	s.notify(ctx, notification.New(notification.TypeUsageWarning, lic.TenantID,
		"Approaching your "+dimension+" limit", map[string]any{
			"dimension": dimension,
			"current":   current,
			"limit":     limit,
		}))
}

// RunRenewalReminders sends graded renewal reminders, at most once per
// (license, reminder type) per renewal cycle.
func (s *jobService) RunRenewalReminders(ctx context.Context) error {
	candidates, err := s.licenseRepo.ListRenewalCandidates(ctx, renewalReminderHorizonDays)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	for _, lic := range candidates {
		days := lic.DaysUntilExpiry(now)
		reminderType := types.ReminderTypeForDays(days)
		if reminderType == "" {
			continue
		}
		s.sendRenewalReminder(ctx, lic, reminderType, days)
	}
	return nil
}

func (s *jobService) sendRenewalReminder(ctx context.Context, lic *license.License, reminderType types.ReminderType, days int) {
	// The renewal date keys the cycle: a renewed license re-arms every
	// reminder type because ValidUntil moves.
	kind := alertKindRenewalReminder + ":" + string(reminderType)
	cycleKey := lic.ValidUntil.Format("2006-01-02")

	sent, err := s.alertRepo.Exists(ctx, lic.ID, kind, cycleKey)
	if err != nil {
		s.logger.Errorw("failed to check reminder dedup",
			"error", err, "license_id", lic.ID)
		return
	}
	if sent {
		return
	}
	if err := s.alertRepo.Create(ctx, alertlog.New(lic.TenantID, lic.ID, kind, cycleKey)); err != nil {
		if !ierr.IsAlreadyExists(err) {
			s.logger.Errorw("failed to record reminder",
				"error", err, "license_id", lic.ID)
		}
		return
	}

	data := map[string]any{
		"license_id":      lic.ID,
		"reminder_type":   reminderType,
		"days_to_renewal": days,
		"renewal_date":    lic.ValidUntil,
	}
	// Personalize with recent usage so the reminder can argue for the
	// right plan.
	if limits, err := s.usageSvc.GetUsageLimits(ctx, lic.TenantID); err == nil {
		data["usage"] = limits.Limits
	}

	s.notify(ctx, notification.New(notification.TypeRenewalReminder, lic.TenantID,
		"Your subscription renews on "+lic.ValidUntil.Format("Jan 2, 2006"), data))
}

// RunComplianceCheck runs the four per-license checks and logs every
// outcome, compliant or not.
func (s *jobService) RunComplianceCheck(ctx context.Context) error {
	active, err := s.licenseRepo.ListActive(ctx)
	if err != nil {
		return err
	}

	p := pool.New().WithMaxGoroutines(s.concurrency)
	for _, lic := range active {
		lic := lic
		p.Go(func() {
			violations, err := s.checkCompliance(ctx, lic)
			if err != nil {
				s.logger.Errorw("compliance check failed for tenant",
					"error", err, "tenant_id", lic.TenantID)
				return
			}
			s.logger.Infow("compliance check completed",
				"tenant_id", lic.TenantID,
				"license_id", lic.ID,
				"compliant", len(violations) == 0,
				"violations", violations,
			)
		})
	}
	p.Wait()
	return nil
}

func (s *jobService) checkCompliance(ctx context.Context, lic *license.License) ([]types.ViolationType, error) {
	reading, err := s.resourceReading(ctx, lic.TenantID)
	if err != nil {
		return nil, err
	}

	var violations []types.ViolationType

	if lic.MaxUsers > 0 && reading.ActiveUsers > lic.MaxUsers {
		violations = append(violations, types.ViolationUserLimit)
	}
	if lic.MaxStorageGB > 0 && reading.StorageGB > float64(lic.MaxStorageGB) {
		violations = append(violations, types.ViolationStorageLimit)
	}
	if lic.MaxAPICallsPerMonth > 0 && reading.APICalls > int64(lic.MaxAPICallsPerMonth) {
		violations = append(violations, types.ViolationAPILimit)
	}

	limits, err := s.usageSvc.GetUsageLimits(ctx, lic.TenantID)
	if err != nil {
		return nil, err
	}
	for _, fl := range limits.Limits {
		if fl.IsOverLimit {
			violations = append(violations, types.ViolationFeatureUsage)
			break
		}
	}

	for _, v := range violations {
		s.notify(ctx, notification.New(notification.TypeComplianceViolation, lic.TenantID,
			"License compliance violation: "+string(v), map[string]any{
				"license_id": lic.ID,
				"violation":  v,
			}))
	}
	return violations, nil
}

// RunMonthlyBilling processes every tenant due for the monthly cycle with
// bounded concurrency.
func (s *jobService) RunMonthlyBilling(ctx context.Context) error {
	due, err := s.tenantRepo.ListDueForMonthlyBilling(ctx)
	if err != nil {
		return err
	}

	p := pool.New().WithMaxGoroutines(s.concurrency)
	for _, t := range due {
		t := t
		p.Go(func() {
			if err := s.billingSvc.ProcessMonthlyBilling(ctx, t.ID); err != nil {
				s.logger.Errorw("monthly billing failed for tenant",
					"error", err, "tenant_id", t.ID)
			}
		})
	}
	p.Wait()
	return nil
}

// RunWebhookRetention garbage-collects processed webhook records older
// than the retention window. Failed records are kept for reprocessing.
func (s *jobService) RunWebhookRetention(ctx context.Context) error {
	cutoff := time.Now().UTC().AddDate(0, 0, -webhookEventRetentionDays)
	deleted, err := s.webhookRepo.DeleteProcessedBefore(ctx, cutoff)
	if err != nil {
		return err
	}
	if deleted > 0 {
		s.logger.Infow("webhook retention cleanup finished",
			"deleted", deleted, "cutoff", cutoff)
	}
	return nil
}

// resourceReading is the latest known resource usage for a tenant. API
// calls come from the live counter for the current period; users and
// storage carry forward from the latest snapshot until a fresher reading
// arrives.
func (s *jobService) resourceReading(ctx context.Context, tenantID string) (*usage.ResourceUsage, error) {
	reading := &usage.ResourceUsage{}

	if snap, err := s.snapshotRepo.GetLatest(ctx, tenantID); err == nil {
		reading.ActiveUsers = snap.ActiveUsers
		reading.StorageGB = snap.StorageGB
		reading.APICalls = snap.APICalls
	} else if !ierr.IsNotFound(err) {
		return nil, err
	}

	if counter, err := s.usageRepo.Get(ctx, tenantID, "api_access", types.CurrentPeriodMonth()); err == nil && counter != nil {
		reading.APICalls = counter.CurrentUsage
	} else if err != nil && !ierr.IsNotFound(err) {
		return nil, err
	}

	return reading, nil
}

func (s *jobService) notify(ctx context.Context, n *notification.Notification) {
	if err := s.notifier.Send(ctx, n); err != nil {
		s.logger.Errorw("failed to send notification",
			"error", err,
			"notification_type", n.Type,
			"tenant_id", n.TenantID,
		)
	}
}
