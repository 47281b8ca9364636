// Package landing composes one page session: the attribution snapshot, the
// section registry and navigator, the notification hub, and the three signup
// forms. Every form writes with the same attribution snapshot.
package landing

import (
	"log/slog"

	"github.com/hazyhaar/buildboard/analytics"
	"github.com/hazyhaar/buildboard/attribution"
	"github.com/hazyhaar/buildboard/form"
	"github.com/hazyhaar/buildboard/gateway"
	"github.com/hazyhaar/buildboard/navigator"
	"github.com/hazyhaar/buildboard/notify"
	"github.com/hazyhaar/buildboard/schedule"
	"github.com/hazyhaar/buildboard/sections"
	"github.com/hazyhaar/buildboard/signup"
)

// Success modals.
var (
	WaitlistModal = notify.Modal{
		Title:   "You're on the list",
		Body:    "We'll email you as soon as Buildboard opens up.",
		Actions: []string{"close", "refer"},
	}
	ReferralModal = notify.Modal{
		Title:   "Thanks for the referral",
		Body:    "We'll reach out to them and keep you posted.",
		Actions: []string{"close"},
	}
	FooterModal = notify.Modal{
		Title:   "Thanks, you're subscribed",
		Body:    "Build updates and launch news will land in your inbox.",
		Actions: []string{"close"},
	}
)

type config struct {
	sched    schedule.Scheduler
	tracker  analytics.Tracker
	elements navigator.ElementScroller
	logger   *slog.Logger
}

// Option configures a Page.
type Option func(*config)

// WithScheduler drives toast expiry and navigation retries.
func WithScheduler(s schedule.Scheduler) Option { return func(c *config) { c.sched = s } }

// WithTracker sets the analytics sink.
func WithTracker(t analytics.Tracker) Option { return func(c *config) { c.tracker = t } }

// WithElementScroller enables direct element navigation.
func WithElementScroller(es navigator.ElementScroller) Option {
	return func(c *config) { c.elements = es }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option { return func(c *config) { c.logger = l } }

// Page is one mounted landing page.
type Page struct {
	Attribution attribution.Context
	Sections    *sections.Registry
	Nav         *navigator.Navigator
	Notify      *notify.Hub

	Waitlist *form.Controller
	Referral *form.Controller
	Footer   *form.Controller

	tracker analytics.Tracker
	stop    func()
}

// New mounts a page for location. Attribution is resolved here and never
// again for the lifetime of the page.
func New(location string, gw gateway.Submitter, scroller navigator.Scroller, opts ...Option) *Page {
	cfg := config{logger: slog.Default()}
	for _, o := range opts {
		o(&cfg)
	}
	var stop func()
	if cfg.sched == nil {
		t := schedule.New()
		cfg.sched, stop = t, t.Stop
	}
	if cfg.tracker == nil {
		cfg.tracker = analytics.LogTracker{Logger: cfg.logger}
	}
	tracker := analytics.Safe(cfg.tracker)

	p := &Page{
		Attribution: attribution.Resolve(location),
		Sections:    sections.NewRegistry(),
		Notify:      notify.NewHub(cfg.sched),
		tracker:     tracker,
		stop:        stop,
	}

	navOpts := []navigator.Option{navigator.WithScheduler(cfg.sched), navigator.WithLogger(cfg.logger)}
	if cfg.elements != nil {
		navOpts = append(navOpts, navigator.WithElementScroller(cfg.elements))
	}
	p.Nav = navigator.New(p.Sections, scroller, navOpts...)

	common := []form.Option{
		form.WithAttribution(p.Attribution),
		form.WithNotifier(p.Notify),
		form.WithTracker(tracker),
		form.WithLogger(cfg.logger),
	}

	waitlist := form.Waitlist()
	if role := p.Attribution.Role(); signup.IsRole(role) {
		waitlist = waitlist.WithDefault(form.FieldRole, role)
	}
	p.Waitlist = form.NewController(waitlist, gw, append(common,
		form.WithOnSuccess(func(gateway.Outcome) { p.Notify.ShowSuccessModal(WaitlistModal) }))...)
	p.Referral = form.NewController(form.Referral(), gw, append(common,
		form.WithOnSuccess(func(gateway.Outcome) { p.Notify.ShowSuccessModal(ReferralModal) }))...)
	p.Footer = form.NewController(form.FooterEmail(), gw, append(common,
		form.WithOnSuccess(func(gateway.Outcome) { p.Notify.ShowSuccessModal(FooterModal) }))...)
	return p
}

// GoTo records a nav_click and navigates to id.
func (p *Page) GoTo(id sections.ID) {
	p.tracker.Track(analytics.EventNavClick, map[string]string{"section": id.String()})
	p.Nav.GoTo(id)
}

// GoToTop scrolls to the top of the page.
func (p *Page) GoToTop() {
	p.tracker.Track(analytics.EventNavClick, map[string]string{"section": "top"})
	p.Nav.GoToTop()
}

// NavEnabled reports whether navigation affordances should be enabled.
func (p *Page) NavEnabled() bool { return p.Nav.Enabled() }

// Resize handles a layout-invalidating viewport change.
func (p *Page) Resize() { p.Sections.ResetAll() }

// Close unmounts every form and cancels pending timers.
func (p *Page) Close() {
	p.Waitlist.Unmount()
	p.Referral.Unmount()
	p.Footer.Unmount()
	p.Nav.Close()
	if p.stop != nil {
		p.stop()
	}
}
