package harvest

import "time"

// Options carries the service-wide settings of the protocol engine
type Options struct {
	PageSize       int
	TokenTTL       time.Duration
	EndpointName   string
	BaseURL        string // overrides the base URL derived from the request host
	RepositoryName string
	AdminEmail     string
	Now            func() time.Time
}

func (o Options) withDefaults() Options {
	if o.PageSize <= 0 {
		o.PageSize = 100
	}
	if o.EndpointName == "" {
		o.EndpointName = "oai"
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	return o
}
