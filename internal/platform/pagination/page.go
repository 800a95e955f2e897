// Package pagination normalizes list query parameters shared by API and
// storage layers.
package pagination

import "fmt"

// PageSizeConfig configures page size normalization.
type PageSizeConfig struct {
	Default int
	Max     int
}

// OrderConfig configures sort order validation.
type OrderConfig struct {
	Default string
	Allowed []string
}

// ClampPageSize applies defaults and limits for page sizes.
func ClampPageSize(value int, cfg PageSizeConfig) int {
	pageSize := value
	if pageSize <= 0 {
		pageSize = cfg.Default
	}
	if cfg.Max > 0 && pageSize > cfg.Max {
		pageSize = cfg.Max
	}
	if pageSize <= 0 {
		pageSize = 1
	}
	return pageSize
}

// NormalizeOrder validates a sort order and applies the default.
func NormalizeOrder(order string, cfg OrderConfig) (string, error) {
	if order == "" {
		return cfg.Default, nil
	}
	for _, allowed := range cfg.Allowed {
		if order == allowed {
			return order, nil
		}
	}
	return "", fmt.Errorf("invalid order: %s", order)
}
