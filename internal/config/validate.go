package config

import "fmt"

// Validate checks settings that have no safe default
func (c Cfg) Validate() error {
	if c.DB.DSN == "" {
		return fmt.Errorf("DB_DSN is required")
	}
	if c.App.EndpointName == "" {
		return fmt.Errorf("OAI_ENDPOINT_NAME must not be empty")
	}
	if c.OAI.PageSize <= 0 {
		return fmt.Errorf("OAI_PAGE_SIZE must be positive, got %d", c.OAI.PageSize)
	}
	if c.OAI.TokenTTL < 0 {
		return fmt.Errorf("OAI_TOKEN_TTL must not be negative")
	}
	switch c.OAI.TokenStore {
	case StorePostgres, StoreMemory:
	case StoreRedis:
		if c.Redis.Addr == "" {
			return fmt.Errorf("REDIS_ADDR is required when OAI_TOKEN_STORE=redis")
		}
	default:
		return fmt.Errorf("unknown OAI_TOKEN_STORE %q", c.OAI.TokenStore)
	}
	return nil
}
