// Package daemon implements the poll loop that turns matching events into
// trouble tickets.
//
// Every cycle lists the open events oldest first and handles each new one:
//
//	NEW -> first matching rule section -> ticket command
//	         success: acknowledge, owner "Ticket <id>"
//	         failure: owner "Ticket FAILED"
//	NEW -> no rule matched -> AUTOCLEAR section matches -> summary annotated, event deleted
//	NEW -> nothing matched -> left alone until the next cycle
//
// A cycle always runs to completion; shutdown is observed between cycles.
// Transient and not-found store errors are logged and skipped, anything else
// ends the loop.
package daemon

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/solatis/ticketkeeper/internal/core/config"
	"github.com/solatis/ticketkeeper/internal/core/metrics"
	"github.com/solatis/ticketkeeper/internal/core/store"
	"github.com/solatis/ticketkeeper/internal/expand"
	"github.com/solatis/ticketkeeper/internal/rules"
	"github.com/solatis/ticketkeeper/internal/ticket"
	"github.com/solatis/ticketkeeper/internal/types"
)

// Audit texts written to the event store.
const (
	ReasonTicketCreated = "Trouble Ticket created: "
	ReasonTicketFailed  = "Ticket creation failed"
	ReasonAutoClear     = "Event matches AUTOCLEAR criteria"

	OwnerTicketPrefix = "Ticket "
	OwnerTicketFailed = "Ticket FAILED"

	AutoClearSuffix = " auto-cleared by ticketkeeper"
)

// Outcome is what happened to one event in one cycle.
type Outcome int

const (
	OutcomeSkipped Outcome = iota // not a new event
	OutcomeNoMatch
	OutcomeTicketCreated
	OutcomeTicketFailed
	OutcomeCleared
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSkipped:
		return "skipped"
	case OutcomeNoMatch:
		return "no_match"
	case OutcomeTicketCreated:
		return "ticket_created"
	case OutcomeTicketFailed:
		return "ticket_failed"
	case OutcomeCleared:
		return "cleared"
	default:
		return "unknown"
	}
}

// CycleStats summarises one poll cycle.
type CycleStats struct {
	Events   int
	Tickets  int
	Failures int
	Cleared  int
}

// HealthReporter receives the loop's serving state.
type HealthReporter interface {
	SetServing(bool)
}

// Options wires the daemon's collaborators.
type Options struct {
	Rules   *config.RuleFile
	Store   store.EventStore
	Runner  ticket.Runner
	Metrics *metrics.Metrics
	Health  HealthReporter
	Log     logrus.FieldLogger
}

// Daemon is the ticket poll loop.
type Daemon struct {
	rules   *config.RuleFile
	engine  *rules.Engine
	store   store.EventStore
	runner  ticket.Runner
	metrics *metrics.Metrics
	health  HealthReporter
	log     logrus.FieldLogger

	after func(time.Duration) <-chan time.Time
}

// New validates opts and builds a Daemon.
func New(opts Options) (*Daemon, error) {
	if opts.Rules == nil {
		return nil, fmt.Errorf("rules cannot be nil")
	}
	if opts.Store == nil {
		return nil, fmt.Errorf("store cannot be nil")
	}
	if opts.Runner == nil {
		return nil, fmt.Errorf("runner cannot be nil")
	}
	if opts.Log == nil {
		opts.Log = logrus.StandardLogger()
	}
	if opts.Metrics == nil {
		opts.Metrics = metrics.New()
	}

	return &Daemon{
		rules:   opts.Rules,
		engine:  rules.NewEngine(opts.Rules.Rules, opts.Log),
		store:   opts.Store,
		runner:  opts.Runner,
		metrics: opts.Metrics,
		health:  opts.Health,
		log:     opts.Log,
		after:   time.After,
	}, nil
}

// Run polls until ctx is cancelled (returns nil) or a cycle fails (returns the error).
func (d *Daemon) Run(ctx context.Context) error {
	d.setServing(true)
	defer d.setServing(false)

	d.log.WithFields(logrus.Fields{
		"cycletime": d.rules.CycleTime,
		"sections":  len(d.rules.Rules),
		"autoclear": d.rules.AutoClear != nil,
	}).Info("starting poll loop")

	for {
		if _, err := d.RunCycle(context.WithoutCancel(ctx)); err != nil {
			d.log.WithError(err).Error("poll cycle failed, stopping")
			return err
		}

		select {
		case <-ctx.Done():
			d.log.Info("stopping poll loop")
			return nil
		case <-d.after(d.rules.CycleTime):
		}
	}
}

// RunCycle handles every open event once.
func (d *Daemon) RunCycle(ctx context.Context) (CycleStats, error) {
	var stats CycleStats
	start := time.Now()
	defer func() {
		d.metrics.Cycles.Inc()
		d.metrics.CycleDuration.Observe(time.Since(start).Seconds())
		d.metrics.LastCycle.SetToCurrentTime()
	}()

	refs, err := d.store.ListEvents(ctx)
	if err != nil {
		return stats, d.tolerate(err, "", "list events")
	}

	for _, ref := range refs {
		if ref.EventState != types.EventStateNew {
			continue
		}

		evt, err := d.store.GetEvent(ctx, ref.EvID)
		if err != nil {
			if err := d.tolerate(err, ref.EvID, "get event"); err != nil {
				return stats, err
			}
			continue
		}

		stats.Events++
		outcome, err := d.AnalyseEvent(ctx, evt)
		switch outcome {
		case OutcomeTicketCreated:
			stats.Tickets++
		case OutcomeTicketFailed:
			stats.Failures++
		case OutcomeCleared:
			stats.Cleared++
		}
		if err != nil {
			return stats, err
		}
	}

	if stats.Tickets > 0 {
		d.log.Infof("Tickets created: %d", stats.Tickets)
	}
	d.log.WithFields(logrus.Fields{
		"events":   stats.Events,
		"tickets":  stats.Tickets,
		"failures": stats.Failures,
		"cleared":  stats.Cleared,
		"duration": time.Since(start),
	}).Debug("poll cycle complete")

	return stats, nil
}

// AnalyseEvent applies the rule sections, and failing those AUTOCLEAR, to one event.
// The error is non-nil only for fatal store failures.
func (d *Daemon) AnalyseEvent(ctx context.Context, evt *types.Event) (Outcome, error) {
	if evt.EventState != types.EventStateNew {
		return OutcomeSkipped, nil
	}
	d.metrics.EventsEvaluated.Inc()

	if strings.ReplaceAll(evt.DeviceGroups, "|", "") == "" {
		d.log.WithField("evid", evt.EvID).Warnf("Device %s is not in a device group", evt.Device)
	}

	if sec := d.engine.FirstMatch(evt); sec != nil {
		return d.createTicket(ctx, sec, evt)
	}

	if d.rules.AutoClear == nil {
		return OutcomeNoMatch, nil
	}
	ok, err := d.engine.Selector().Selects(d.rules.AutoClear, evt)
	if err != nil {
		d.log.WithField("evid", evt.EvID).WithError(err).Error("AUTOCLEAR evaluation failed")
		return OutcomeNoMatch, nil
	}
	if !ok {
		return OutcomeNoMatch, nil
	}
	return d.autoClear(ctx, evt)
}

func (d *Daemon) createTicket(ctx context.Context, sec *rules.Section, evt *types.Event) (Outcome, error) {
	log := d.log.WithFields(logrus.Fields{
		"section": sec.Name,
		"evid":    evt.EvID,
	})

	args, err := expand.Command(d.rules.TTCommand, d.rules.Daemon, sec.Params(), evt)
	var id string
	if err == nil {
		id, err = d.runner.CreateTicket(ctx, args)
	}
	if err != nil {
		d.metrics.TicketFailures.Inc()
		log.WithError(err).Error("ticket creation failed")
		return OutcomeTicketFailed, d.markFailed(ctx, evt)
	}

	d.metrics.TicketsCreated.Inc()
	log.WithField("ticket", id).Info("ticket created")

	if err := d.store.SetEventState(ctx, types.EventStateAcknowledged, evt.EvID); err != nil {
		return OutcomeTicketCreated, d.tolerate(err, evt.EvID, "acknowledge event")
	}
	owner := OwnerTicketPrefix + id
	if err := d.store.UpdateEvent(ctx, evt.EvID, types.EventUpdate{OwnerID: &owner}, ReasonTicketCreated+id); err != nil {
		return OutcomeTicketCreated, d.tolerate(err, evt.EvID, "record ticket")
	}
	return OutcomeTicketCreated, nil
}

// markFailed tags the owner once; repeated failures leave it unchanged.
func (d *Daemon) markFailed(ctx context.Context, evt *types.Event) error {
	if strings.Contains(evt.OwnerID, "FAILED") {
		return nil
	}
	owner := OwnerTicketFailed
	if err := d.store.UpdateEvent(ctx, evt.EvID, types.EventUpdate{OwnerID: &owner}, ReasonTicketFailed); err != nil {
		return d.tolerate(err, evt.EvID, "mark ticket failure")
	}
	return nil
}

func (d *Daemon) autoClear(ctx context.Context, evt *types.Event) (Outcome, error) {
	summary := evt.Summary + AutoClearSuffix
	if err := d.store.UpdateEvent(ctx, evt.EvID, types.EventUpdate{Summary: &summary}, ReasonAutoClear); err != nil {
		return OutcomeNoMatch, d.tolerate(err, evt.EvID, "annotate auto-cleared event")
	}
	if err := d.store.DeleteEvent(ctx, evt.EvID); err != nil {
		return OutcomeNoMatch, d.tolerate(err, evt.EvID, "delete auto-cleared event")
	}

	d.metrics.EventsCleared.Inc()
	d.log.WithField("evid", evt.EvID).Info("event auto-cleared")
	return OutcomeCleared, nil
}

// tolerate logs transient and not-found store errors and returns nil for
// them. Fatal errors are returned wrapped with op.
func (d *Daemon) tolerate(err error, id types.EventID, op string) error {
	class := store.ClassOf(err)
	d.metrics.StoreErrors.WithLabelValues(class.String()).Inc()

	log := d.log.WithError(err)
	if id != "" {
		log = log.WithField("evid", id)
	}

	switch {
	case store.IsTransient(err):
		log.Warnf("%s: transient store error, retrying next cycle", op)
		return nil
	case store.IsNotFound(err):
		if id == "" {
			log.Warnf("%s: not found", op)
		} else {
			log.Warnf("Event %s not found", id)
		}
		return nil
	default:
		return fmt.Errorf("failed to %s: %w", op, err)
	}
}

func (d *Daemon) setServing(serving bool) {
	if d.health != nil {
		d.health.SetServing(serving)
	}
}
