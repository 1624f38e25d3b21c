package config

// DatabaseConfig holds SQL database configuration. MySQL URLs need
// parseTime=true so timestamps scan into time.Time.
type DatabaseConfig struct {
	URL          string
	MaxOpenConns int
	MaxIdleConns int
}

// GetConnectionString returns the driver connection string
func (c *DatabaseConfig) GetConnectionString() string {
	return c.URL
}
