package services

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/openmuni/cashsync/pkg/bus"
	"github.com/openmuni/cashsync/pkg/models"
)

// Dispatcher turns local change events into remote calls: deletions
// propagate immediately, creates and updates upload the row if it is
// flagged for sync. Events from other setups are ignored.
type Dispatcher struct {
	session *Session
	bus     *bus.Bus
}

// NewDispatcher wires a dispatcher to a session and its change bus.
func NewDispatcher(session *Session, b *bus.Bus) *Dispatcher {
	return &Dispatcher{session: session, bus: b}
}

// Run consumes change events until ctx is done or the bus closes.
// Handling failures are logged and recorded on the row; the loop keeps
// going so one bad row cannot stall the stream.
func (d *Dispatcher) Run(ctx context.Context) error {
	messages, err := d.bus.Subscribe(ctx)
	if err != nil {
		return err
	}
	for msg := range messages {
		ev, err := bus.DecodeChange(msg)
		if err != nil {
			log.Error().Err(err).Str("message", msg.UUID).Msg("Dropping undecodable change event")
			msg.Ack()
			continue
		}
		if err := d.Handle(ctx, ev); err != nil {
			log.Error().Err(err).Str("entity", ev.Entity).Int64("instance", ev.InstanceID).
				Msg("Failed to dispatch change")
		}
		msg.Ack()
	}
	return nil
}

// Handle propagates a single change event.
func (d *Dispatcher) Handle(ctx context.Context, ev models.ChangeEvent) error {
	if ev.SetupID != d.session.Setup().ID {
		return nil
	}

	if ev.Kind == models.ChangeDeleted {
		return d.session.DeleteRemote(ctx, ev.Entity, ev.CID)
	}

	inst, err := d.session.Store().GetInstance(ev.InstanceID)
	if err != nil {
		return err
	}
	if inst == nil {
		// Row vanished between the event and now.
		return nil
	}
	if !inst.IsEnabledSync || !inst.SyncToAccounting {
		return nil
	}

	if err := d.session.Upload(ctx, inst); err != nil {
		d.session.recordFailure(inst, err)
		return err
	}
	return nil
}
