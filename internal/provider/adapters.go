package provider

import (
	"context"
	"net/url"

	"github.com/sells-group/leadgen-cli/internal/model"
	"github.com/sells-group/leadgen-cli/pkg/googleplaces"
	"github.com/sells-group/leadgen-cli/pkg/hunter"
	"github.com/sells-group/leadgen-cli/pkg/snov"
	"github.com/sells-group/leadgen-cli/pkg/yelp"
)

// yelpSearcher adapts the Yelp client to the pipeline search interface.
type yelpSearcher struct {
	instance string
	limit    int
	client   yelp.Client
}

func (s *yelpSearcher) Search(ctx context.Context, q model.Query, proxy *url.URL) ([]model.Company, error) {
	businesses, err := s.client.SearchBusinesses(ctx, yelp.SearchRequest{
		Term:     q.Term,
		Location: q.Location,
		Limit:    s.limit,
		Proxy:    proxy,
	})
	if err != nil {
		return nil, err
	}

	out := make([]model.Company, 0, len(businesses))
	for _, b := range businesses {
		out = append(out, model.Company{
			ListingID: "yelp-" + b.ID,
			Name:      b.Name,
			URL:       b.Website(),
			Address:   b.Address(),
			Phone:     b.Phone,
			QueryID:   q.ID(),
			Instance:  s.instance,
		})
	}
	return out, nil
}

// googleSearcher adapts the Places client to the pipeline search interface.
type googleSearcher struct {
	instance string
	client   googleplaces.Client
}

func (s *googleSearcher) Search(ctx context.Context, q model.Query, proxy *url.URL) ([]model.Company, error) {
	places, err := s.client.SearchText(ctx, googleplaces.SearchRequest{
		Query: q.Term + " in " + q.Location,
		Proxy: proxy,
	})
	if err != nil {
		return nil, err
	}

	out := make([]model.Company, 0, len(places))
	for _, p := range places {
		out = append(out, model.Company{
			ListingID: "places-" + p.ID,
			Name:      p.DisplayName.Text,
			URL:       p.WebsiteURI,
			Address:   p.Address,
			Phone:     p.Phone,
			QueryID:   q.ID(),
			Instance:  s.instance,
		})
	}
	return out, nil
}

// hunterFinder adapts the Hunter client to the pipeline finder interface.
type hunterFinder struct {
	instance string
	client   hunter.Client
}

func (f *hunterFinder) FindEmails(ctx context.Context, domain string, proxy *url.URL) ([]model.EmailRecord, error) {
	result, err := f.client.DomainSearch(ctx, hunter.SearchRequest{Domain: domain, Proxy: proxy})
	if err != nil {
		return nil, err
	}

	out := make([]model.EmailRecord, 0, len(result.Emails))
	for _, e := range result.Emails {
		out = append(out, model.EmailRecord{
			Domain:     domain,
			Address:    e.Value,
			FirstName:  e.FirstName,
			LastName:   e.LastName,
			Position:   e.Position,
			Confidence: e.Confidence,
			Sources:    len(e.Sources),
			Instance:   f.instance,
		})
	}
	return out, nil
}

// snovFinder adapts the Snov client to the pipeline finder interface.
type snovFinder struct {
	instance string
	client   snov.Client
}

func (f *snovFinder) FindEmails(ctx context.Context, domain string, proxy *url.URL) ([]model.EmailRecord, error) {
	emails, err := f.client.DomainEmails(ctx, snov.SearchRequest{Domain: domain, Proxy: proxy})
	if err != nil {
		return nil, err
	}

	out := make([]model.EmailRecord, 0, len(emails))
	for _, e := range emails {
		out = append(out, model.EmailRecord{
			Domain:    domain,
			Address:   e.Email,
			FirstName: e.FirstName,
			LastName:  e.LastName,
			Position:  e.Position,
			Instance:  f.instance,
		})
	}
	return out, nil
}
