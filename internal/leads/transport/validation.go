package transport

import (
	"leadconsole_backend/internal/leads/domain"
	"leadconsole_backend/platform/validator"
)

// RegisterValidations installs the lead enum tags used by the DTOs.
func RegisterValidations(val *validator.Validator) error {
	sets := map[string]func(string) bool{
		"leadstatus":   domain.IsKnownStatus,
		"leadcategory": domain.IsKnownCategory,
		"leadsegment":  domain.IsKnownSegment,
		"exportstatus": domain.IsKnownExportStatus,
	}
	for tag, allowed := range sets {
		if err := val.RegisterStringSet(tag, allowed); err != nil {
			return err
		}
	}
	return nil
}
