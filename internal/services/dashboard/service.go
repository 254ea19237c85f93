// Package dashboard composes the local store reads with the exposure
// pipeline into the dashboard view and the next-step decision.
package dashboard

import (
	"context"
	"errors"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/rs/zerolog"

	"exposurewatch/internal/domain"
	"exposurewatch/internal/exposure"
	"exposurewatch/internal/ports"
	"exposurewatch/internal/remediation"
	"exposurewatch/internal/services/reconcile"
)

// Syncer refreshes a subscriber's mirrored scan state.
type Syncer interface {
	SyncSubscriber(ctx context.Context, subscriberID int64) ([]reconcile.Result, error)
}

type Options struct {
	Subscribers ports.SubscriberRepository
	Scans       ports.ScanStore
	Breaches    ports.BreachSource
	Brokers     ports.BrokerStore
	// Syncer may be nil, in which case the dashboard only reads.
	Syncer Syncer
	Logger zerolog.Logger

	Policy                    remediation.Policy
	PremiumEnabled            bool
	AdditionalRemovalStatuses bool
	// BrokerCacheSize bounds the broker catalog lookup cache.
	BrokerCacheSize int
}

type brokerKey struct {
	provider domain.Provider
	id       string
}

type Service struct {
	subscribers ports.SubscriberRepository
	scans       ports.ScanStore
	breaches    ports.BreachSource
	brokers     ports.BrokerStore
	syncer      Syncer
	log         zerolog.Logger

	policy             remediation.Policy
	premiumEnabled     bool
	additionalStatuses bool
	brokerCache        *lru.Cache[brokerKey, domain.Broker]
}

func New(opts Options) (*Service, error) {
	size := opts.BrokerCacheSize
	if size <= 0 {
		size = 1024
	}
	cache, err := lru.New[brokerKey, domain.Broker](size)
	if err != nil {
		return nil, err
	}
	policy := opts.Policy
	if policy == (remediation.Policy{}) {
		policy = remediation.DefaultPolicy
	}
	return &Service{
		subscribers:        opts.Subscribers,
		scans:              opts.Scans,
		breaches:           opts.Breaches,
		brokers:            opts.Brokers,
		syncer:             opts.Syncer,
		log:                opts.Logger.With().Str("component", "dashboard").Logger(),
		policy:             policy,
		premiumEnabled:     opts.PremiumEnabled,
		additionalStatuses: opts.AdditionalRemovalStatuses,
		brokerCache:        cache,
	}, nil
}

// Request selects whose dashboard to build and how.
type Request struct {
	SubscriberID int64
	Country      string
	// Tab is a tab slug; empty or unknown falls back to the subscriber's
	// default tab.
	Tab string
	// Sync refreshes provider state before reading.
	Sync bool
}

// View is one rendered dashboard.
type View struct {
	SubscriberID  int64
	Tab           exposure.Tab
	Summary       exposure.Summary
	TopCategories []exposure.Category
	// Exposures holds the selected tab's items in merged order.
	Exposures         []exposure.Classified
	ActionNeededCount int
	FixedCount        int
	NextStep          remediation.Step
	// Stale is set when a requested sync could not complete and the view
	// shows the last mirrored state.
	Stale bool
}

// topCategories is how many data point categories the summary names
// before folding the rest into "other".
const topCategories = 5

func (s *Service) Dashboard(ctx context.Context, req Request) (View, error) {
	sub, err := s.subscribers.Subscriber(ctx, req.SubscriberID)
	if err != nil {
		return View{}, err
	}

	view := View{SubscriberID: sub.ID}
	if req.Sync && s.syncer != nil {
		view.Stale = s.syncBeforeRead(ctx, sub.ID)
	}

	snap, err := s.load(ctx, sub)
	if err != nil {
		return View{}, err
	}
	items := exposure.ClassifyAll(exposure.Merge(snap.breaches, snap.records), s.options(sub))
	summary := exposure.Summarize(items)
	actionNeeded, fixed := exposure.Partition(items)

	view.Tab = exposure.ParseTab(req.Tab, exposure.DefaultTab(sub.IsPremium()))
	view.Summary = summary
	view.TopCategories = summary.Total.DataPoints.TopCategories(topCategories)
	view.ActionNeededCount = len(actionNeeded)
	view.FixedCount = len(fixed)
	if view.Tab == exposure.TabFixed {
		view.Exposures = fixed
	} else {
		view.Exposures = actionNeeded
	}
	view.NextStep = remediation.Next(s.input(sub, req.Country, snap, summary, len(items)), s.policy)
	return view, nil
}

// NextStep decides the subscriber's next step from the mirrored state.
func (s *Service) NextStep(ctx context.Context, subscriberID int64, country string) (remediation.Step, error) {
	sub, err := s.subscribers.Subscriber(ctx, subscriberID)
	if err != nil {
		return remediation.Step{}, err
	}
	snap, err := s.load(ctx, sub)
	if err != nil {
		return remediation.Step{}, err
	}
	items := exposure.ClassifyAll(exposure.Merge(snap.breaches, snap.records), s.options(sub))
	return remediation.Next(s.input(sub, country, snap, exposure.Summarize(items), len(items)), s.policy), nil
}

// syncBeforeRead reports whether the view will be stale. Failures are
// logged rather than returned so the last mirrored state is still served.
func (s *Service) syncBeforeRead(ctx context.Context, subscriberID int64) bool {
	results, err := s.syncer.SyncSubscriber(ctx, subscriberID)
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			s.log.Error().Err(err).Int64("subscriber_id", subscriberID).Msg("sync before dashboard read failed")
		}
		return true
	}
	for _, r := range results {
		if r.Stale() {
			return true
		}
	}
	return false
}

func (s *Service) options(sub domain.Subscriber) exposure.Options {
	return exposure.Options{Premium: sub.IsPremium(), AdditionalRemovalStatuses: s.additionalStatuses}
}

func (s *Service) input(sub domain.Subscriber, country string, snap snapshot, summary exposure.Summary, exposures int) remediation.Input {
	return remediation.Input{
		CountryCode:              country,
		Tier:                     sub.Tier,
		PremiumEligible:          s.premiumEnabled && strings.EqualFold(country, remediation.FreeScanCountry),
		Scan:                     remediation.ScanStateOf(snap.latest),
		UnresolvedBrokerListings: summary.BrokerActionNeeded.Records,
		Breaches:                 snap.breaches,
		HasExposures:             exposures > 0,
		TotalScans:               snap.totalScans,
	}
}
