// Package provider binds configured credential instances to concrete API
// clients.
package provider

import (
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/leadgen-cli/internal/config"
	"github.com/sells-group/leadgen-cli/internal/model"
	"github.com/sells-group/leadgen-cli/internal/pipeline"
	"github.com/sells-group/leadgen-cli/pkg/googleplaces"
	"github.com/sells-group/leadgen-cli/pkg/hunter"
	"github.com/sells-group/leadgen-cli/pkg/snov"
	"github.com/sells-group/leadgen-cli/pkg/yelp"
)

// Known service names accepted in the manifest.
const (
	ServiceYelp         = "yelp"
	ServiceGooglePlaces = "google_places"
	ServiceHunter       = "hunter"
	ServiceSnov         = "snov"
)

// BuildSearchers creates one search client per search-provider instance,
// keyed by instance id. Unknown service names fail at startup, not mid-run.
func BuildSearchers(cfg *config.Config, instances []model.ProviderInstance) (map[string]pipeline.SearchClient, error) {
	out := make(map[string]pipeline.SearchClient)
	for _, inst := range instances {
		if inst.Role != model.RoleSearchProvider {
			continue
		}
		switch inst.Service {
		case ServiceYelp:
			out[inst.ID()] = &yelpSearcher{
				instance: inst.ID(),
				limit:    cfg.Yelp.PageLimit,
				client: yelp.NewClient(inst.Credential,
					yelp.WithBaseURL(cfg.Yelp.BaseURL),
					yelp.WithTimeout(time.Duration(cfg.Yelp.TimeoutSecs)*time.Second)),
			}
		case ServiceGooglePlaces:
			out[inst.ID()] = &googleSearcher{
				instance: inst.ID(),
				client: googleplaces.NewClient(inst.Credential,
					googleplaces.WithBaseURL(cfg.Google.BaseURL),
					googleplaces.WithTimeout(time.Duration(cfg.Google.TimeoutSecs)*time.Second)),
			}
		default:
			return nil, eris.Errorf("provider: unknown search provider %q", inst.Service)
		}
	}
	return out, nil
}

// BuildFinders creates one finder client per email-finder instance, keyed by
// instance id.
func BuildFinders(cfg *config.Config, instances []model.ProviderInstance) (map[string]pipeline.FinderClient, error) {
	out := make(map[string]pipeline.FinderClient)
	for _, inst := range instances {
		if inst.Role != model.RoleEmailFinder {
			continue
		}
		switch inst.Service {
		case ServiceHunter:
			out[inst.ID()] = &hunterFinder{
				instance: inst.ID(),
				client: hunter.NewClient(inst.Credential,
					hunter.WithBaseURL(cfg.Hunter.BaseURL),
					hunter.WithTimeout(time.Duration(cfg.Hunter.TimeoutSecs)*time.Second)),
			}
		case ServiceSnov:
			out[inst.ID()] = &snovFinder{
				instance: inst.ID(),
				client: snov.NewClient(inst.Credential,
					snov.WithBaseURL(cfg.Snov.BaseURL),
					snov.WithTimeout(time.Duration(cfg.Snov.TimeoutSecs)*time.Second)),
			}
		default:
			return nil, eris.Errorf("provider: unknown email finder %q", inst.Service)
		}
	}
	return out, nil
}
