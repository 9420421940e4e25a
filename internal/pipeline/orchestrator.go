package pipeline

import (
	"context"
	"errors"
	"net/url"
	"sort"
	"sync"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/sells-group/leadgen-cli/internal/domainres"
	"github.com/sells-group/leadgen-cli/internal/model"
	"github.com/sells-group/leadgen-cli/internal/proxy"
	"github.com/sells-group/leadgen-cli/internal/resilience"
	"github.com/sells-group/leadgen-cli/internal/sink"
	"github.com/sells-group/leadgen-cli/internal/state"
)

// Orchestrator drives a run: queries through search providers, URLs through
// the domain resolver, domains through email finders. One failing unit never
// stops the run; only corrupt state or context cancellation does.
type Orchestrator struct {
	store    state.Store
	out      sink.Sink
	pool     *resilience.InstancePool
	health   *resilience.HealthTracker
	proxies  *proxy.Rotator
	resolver *domainres.Resolver

	searchers map[string]SearchClient // keyed by instance id
	finders   map[string]FinderClient

	opts    Options
	limiter *rate.Limiter
	log     *zap.Logger
}

// New creates an orchestrator. The searchers and finders maps must have an
// entry for every instance the pool can return.
func New(
	store state.Store,
	out sink.Sink,
	pool *resilience.InstancePool,
	health *resilience.HealthTracker,
	proxies *proxy.Rotator,
	resolver *domainres.Resolver,
	searchers map[string]SearchClient,
	finders map[string]FinderClient,
	opts Options,
) *Orchestrator {
	opts = opts.withDefaults()
	return &Orchestrator{
		store:     store,
		out:       out,
		pool:      pool,
		health:    health,
		proxies:   proxies,
		resolver:  resolver,
		searchers: searchers,
		finders:   finders,
		opts:      opts,
		limiter:   rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), opts.Workers),
		log:       zap.L().Named("pipeline"),
	}
}

// Run executes both stages over the query list and returns the run report.
func (o *Orchestrator) Run(ctx context.Context, queries []model.Query) (*Report, error) {
	runID, err := o.store.StartRun(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: start run")
	}
	o.log.Info("run started",
		zap.String("run_id", runID),
		zap.Int("queries", len(queries)),
		zap.Int("search_instances", o.pool.Size(model.RoleSearchProvider)),
		zap.Int("finder_instances", o.pool.Size(model.RoleEmailFinder)))

	report := &Report{RunID: runID}

	domains, err := o.runSearchStage(ctx, queries, report)
	if err != nil {
		return report, err
	}

	if err := o.runEmailStage(ctx, domains, report); err != nil {
		return report, err
	}

	counts := state.RunCounts{
		QueriesDone:    report.Queries.Done,
		QueriesSkipped: report.Queries.Skipped,
		QueriesFailed:  report.Queries.Failed,
		DomainsDone:    report.Domains.Done,
		DomainsSkipped: report.Domains.Skipped,
		DomainsFailed:  report.Domains.Failed,
	}
	if err := o.store.FinishRun(ctx, runID, counts); err != nil {
		return report, eris.Wrap(err, "pipeline: finish run")
	}

	o.log.Info("run finished",
		zap.String("run_id", runID),
		zap.Int("companies", report.Companies),
		zap.Int("new_domains", report.NewDomains),
		zap.Int("emails", report.Emails))
	return report, nil
}

// runSearchStage processes every query and returns the domains discovered in
// this run, sorted for a stable processing order.
func (o *Orchestrator) runSearchStage(ctx context.Context, queries []model.Query, report *Report) ([]string, error) {
	var mu sync.Mutex
	domainSet := make(map[string]struct{})

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.opts.Workers)

	for _, q := range queries {
		q := q
		g.Go(func() error {
			return o.processQuery(gctx, q, report, &mu, domainSet)
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	domains := make([]string, 0, len(domainSet))
	for d := range domainSet {
		domains = append(domains, d)
	}
	sort.Strings(domains)
	return domains, nil
}

func (o *Orchestrator) processQuery(ctx context.Context, q model.Query, report *Report, mu *sync.Mutex, domainSet map[string]struct{}) error {
	id := q.ID()
	log := o.log.With(zap.String("query", id))

	isNew, err := o.store.IsNewQuery(ctx, id)
	if err != nil {
		return eris.Wrapf(err, "pipeline: check query %s", id)
	}
	if !isNew {
		log.Debug("query already done, skipping")
		mu.Lock()
		report.Queries.Skipped++
		mu.Unlock()
		return nil
	}

	var companies []model.Company
	attempts, lastErr := o.attempt(ctx, model.RoleSearchProvider, func(inst model.ProviderInstance, p *url.URL) error {
		client, ok := o.searchers[inst.ID()]
		if !ok {
			return resilience.NewFatalCredentialError(eris.Errorf("pipeline: no client for %s", inst.ID()), 0)
		}
		result, err := client.Search(ctx, q, p)
		if err != nil {
			return err
		}
		companies = result
		return nil
	})
	if lastErr != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		log.Warn("query failed",
			zap.Int("attempts", attempts),
			zap.String("outcome", failureOutcome(lastErr)),
			zap.Error(lastErr))
		mu.Lock()
		report.Queries.Failed++
		report.Queries.Failures = append(report.Queries.Failures, UnitFailure{
			Unit:     id,
			Attempts: attempts,
			Outcome:  failureOutcome(lastErr),
			Err:      lastErr.Error(),
		})
		mu.Unlock()
		return nil
	}

	accepted, resolved, err := o.acceptCompanies(ctx, companies, mu, domainSet, report)
	if err != nil {
		return err
	}
	if err := o.store.MarkQueryDone(ctx, id); err != nil {
		return eris.Wrapf(err, "pipeline: mark query %s", id)
	}

	log.Info("query done",
		zap.Int("attempts", attempts),
		zap.Int("listings", len(companies)),
		zap.Int("accepted", accepted),
		zap.Int("domains", resolved))
	mu.Lock()
	report.Queries.Done++
	mu.Unlock()
	return nil
}

// acceptCompanies dedups raw listings, resolves their domains, and writes the
// new ones to the sink. Rejected URLs are a filtering decision, not an error.
func (o *Orchestrator) acceptCompanies(ctx context.Context, companies []model.Company, mu *sync.Mutex, domainSet map[string]struct{}, report *Report) (accepted, resolved int, err error) {
	for _, c := range companies {
		key := c.Key()
		isNew, err := o.store.IsNewCompany(ctx, key)
		if err != nil {
			return accepted, resolved, eris.Wrap(err, "pipeline: check company")
		}
		if !isNew {
			continue
		}

		domain, derr := o.resolver.Resolve(c.URL)
		if derr == nil {
			c.Domain = domain
		} else if !errors.Is(derr, domainres.ErrRejected) {
			return accepted, resolved, derr
		}

		if err := o.store.MarkCompanySeen(ctx, key); err != nil {
			return accepted, resolved, eris.Wrap(err, "pipeline: mark company")
		}
		if err := o.out.WriteCompany(c); err != nil {
			return accepted, resolved, err
		}
		accepted++
		mu.Lock()
		report.Companies++
		mu.Unlock()

		if c.Domain == "" {
			continue
		}
		isNewDomain, err := o.store.IsNewDomain(ctx, c.Domain)
		if err != nil {
			return accepted, resolved, eris.Wrap(err, "pipeline: check domain")
		}
		if isNewDomain {
			if err := o.store.MarkDomainSeen(ctx, c.Domain); err != nil {
				return accepted, resolved, eris.Wrap(err, "pipeline: mark domain")
			}
			if err := o.out.WriteDomain(model.Domain{Name: c.Domain, Companies: []string{c.ListingID}}); err != nil {
				return accepted, resolved, err
			}
			resolved++
			mu.Lock()
			report.NewDomains++
			mu.Unlock()
		}
		mu.Lock()
		domainSet[c.Domain] = struct{}{}
		mu.Unlock()
	}
	return accepted, resolved, nil
}

func (o *Orchestrator) runEmailStage(ctx context.Context, domains []string, report *Report) error {
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.opts.Workers)

	for _, domain := range domains {
		domain := domain
		g.Go(func() error {
			return o.processDomain(gctx, domain, report, &mu)
		})
	}
	return g.Wait()
}

func (o *Orchestrator) processDomain(ctx context.Context, domain string, report *Report, mu *sync.Mutex) error {
	log := o.log.With(zap.String("domain", domain))

	// One successful harvest per domain. Attempts are recorded per finder
	// instance, so a domain harvested by any instance in an earlier run is
	// skipped here.
	for _, inst := range o.pool.Instances(model.RoleEmailFinder) {
		attempted, err := o.store.WasAttempted(ctx, domain, inst.ID())
		if err != nil {
			return eris.Wrapf(err, "pipeline: check attempt %s", domain)
		}
		if attempted {
			log.Debug("domain already harvested, skipping", zap.String("instance", inst.ID()))
			mu.Lock()
			report.Domains.Skipped++
			mu.Unlock()
			return nil
		}
	}

	var (
		emails    []model.EmailRecord
		harvester string
	)
	attempts, lastErr := o.attempt(ctx, model.RoleEmailFinder, func(inst model.ProviderInstance, p *url.URL) error {
		client, ok := o.finders[inst.ID()]
		if !ok {
			return resilience.NewFatalCredentialError(eris.Errorf("pipeline: no client for %s", inst.ID()), 0)
		}
		result, err := client.FindEmails(ctx, domain, p)
		if err != nil {
			return err
		}
		emails = result
		harvester = inst.ID()
		return nil
	})
	if lastErr != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		log.Warn("domain failed",
			zap.Int("attempts", attempts),
			zap.String("outcome", failureOutcome(lastErr)),
			zap.Error(lastErr))
		mu.Lock()
		report.Domains.Failed++
		report.Domains.Failures = append(report.Domains.Failures, UnitFailure{
			Unit:     domain,
			Attempts: attempts,
			Outcome:  failureOutcome(lastErr),
			Err:      lastErr.Error(),
		})
		mu.Unlock()
		return nil
	}

	var written int
	for _, e := range emails {
		isNew, err := o.store.IsNewEmail(ctx, e.Address)
		if err != nil {
			return eris.Wrap(err, "pipeline: check email")
		}
		if !isNew {
			continue
		}
		if err := o.store.MarkEmailSeen(ctx, e.Address); err != nil {
			return eris.Wrap(err, "pipeline: mark email")
		}
		if err := o.out.WriteEmail(e); err != nil {
			return err
		}
		written++
	}
	if err := o.store.MarkAttempted(ctx, domain, harvester); err != nil {
		return eris.Wrapf(err, "pipeline: mark attempt %s", domain)
	}

	log.Info("domain done",
		zap.Int("attempts", attempts),
		zap.String("instance", harvester),
		zap.Int("emails", written))
	mu.Lock()
	report.Domains.Done++
	report.Emails += written
	mu.Unlock()
	return nil
}

// attempt runs the failover loop for one unit: pick the first eligible
// instance, pace, rotate the proxy, call, and report the outcome. Rate limits
// and transient errors consume the attempt budget; fatal credential errors do
// not, since they remove the instance rather than burn a retry.
func (o *Orchestrator) attempt(ctx context.Context, role model.Role, call func(inst model.ProviderInstance, proxy *url.URL) error) (int, error) {
	var (
		attempts int
		lastErr  error
	)
	for attempts < o.opts.MaxAttemptsPerUnit {
		inst, ok := o.pool.Next(role)
		if !ok {
			if lastErr == nil {
				return attempts, resilience.ErrNoInstanceAvailable
			}
			return attempts, eris.Wrapf(resilience.ErrNoInstanceAvailable, "last error: %v", lastErr)
		}

		if err := o.limiter.Wait(ctx); err != nil {
			return attempts, err
		}

		err := call(inst, o.proxies.Next())
		if err != nil && ctx.Err() != nil {
			// The call failed because the run is shutting down, not because
			// the instance misbehaved.
			return attempts, ctx.Err()
		}
		o.health.Report(inst.ID(), err)
		if err == nil {
			return attempts + 1, nil
		}
		lastErr = err

		outcome := resilience.Classify(err)
		o.log.Debug("attempt failed",
			zap.String("instance", inst.ID()),
			zap.String("outcome", outcome.String()),
			zap.Error(err))
		if outcome != resilience.OutcomeFatal {
			attempts++
		}
	}
	return attempts, lastErr
}

func failureOutcome(err error) string {
	if errors.Is(err, resilience.ErrNoInstanceAvailable) {
		return "no_instance_available"
	}
	return resilience.Classify(err).String()
}
