package v1

import (
	"net/http"

	"github.com/gin-gonic/gin"

	ierr "github.com/platformhq/licensing/internal/errors"
	"github.com/platformhq/licensing/internal/logger"
	"github.com/platformhq/licensing/internal/service"
)

type LicenseHandler struct {
	licenseService service.LicenseService
	usageService   service.UsageService
	log            *logger.Logger
}

func NewLicenseHandler(licenseService service.LicenseService, usageService service.UsageService, log *logger.Logger) *LicenseHandler {
	return &LicenseHandler{
		licenseService: licenseService,
		usageService:   usageService,
		log:            log,
	}
}

// @Summary Get license
// @Description Get the license for a tenant
// @Tags Licenses
// @Produce json
// @Param tenant_id path string true "Tenant ID"
// @Success 200 {object} dto.LicenseResponse
// @Failure 404 {object} ierr.ErrorResponse
// @Router /licenses/{tenant_id} [get]
func (h *LicenseHandler) GetLicense(c *gin.Context) {
	resp, err := h.licenseService.GetLicense(c.Request.Context(), c.Param("tenant_id"))
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// @Summary Check feature access
// @Description Check whether a tenant (and optionally a user) may use a feature right now
// @Tags Licenses
// @Produce json
// @Param tenant_id path string true "Tenant ID"
// @Param feature_code query string true "Feature code"
// @Param user_id query string false "User ID for role checks"
// @Success 200 {object} dto.FeatureAccessResponse
// @Failure 400 {object} ierr.ErrorResponse
// @Router /licenses/{tenant_id}/access [get]
func (h *LicenseHandler) CheckFeatureAccess(c *gin.Context) {
	featureCode := c.Query("feature_code")
	if featureCode == "" {
		c.Error(ierr.NewError("feature_code is required").
			WithHint("Pass feature_code as a query parameter").
			Mark(ierr.ErrValidation))
		return
	}

	resp, err := h.licenseService.CheckFeatureAccess(
		c.Request.Context(),
		c.Param("tenant_id"),
		featureCode,
		c.Query("user_id"),
	)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// @Summary Get usage limits
// @Description Get the tenant's per-feature limits with current period usage
// @Tags Licenses
// @Produce json
// @Param tenant_id path string true "Tenant ID"
// @Success 200 {object} dto.UsageLimitsResponse
// @Failure 404 {object} ierr.ErrorResponse
// @Router /licenses/{tenant_id}/limits [get]
func (h *LicenseHandler) GetUsageLimits(c *gin.Context) {
	resp, err := h.usageService.GetUsageLimits(c.Request.Context(), c.Param("tenant_id"))
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// @Summary Get upgrade suggestions
// @Description Get an upgrade recommendation built from current usage pressure
// @Tags Licenses
// @Produce json
// @Param tenant_id path string true "Tenant ID"
// @Success 200 {object} dto.UpgradeSuggestionsResponse
// @Failure 404 {object} ierr.ErrorResponse
// @Router /licenses/{tenant_id}/upgrade-suggestions [get]
func (h *LicenseHandler) GetUpgradeSuggestions(c *gin.Context) {
	resp, err := h.usageService.GetUpgradeSuggestions(c.Request.Context(), c.Param("tenant_id"))
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, resp)
}
