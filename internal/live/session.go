// Package live drives the realtime view of the pump: one broker
// subscription feeding the sliding windows and the daily counter trackers.
//
// A Session is single-owner. Messages and rollover ticks are both handled
// on the goroutine that calls Run, so the feed and trackers need no locks.
package live

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/arec-energy/pumpstream/internal/counter"
	"github.com/arec-energy/pumpstream/internal/decoder"
	"github.com/arec-energy/pumpstream/internal/models"
	"github.com/arec-energy/pumpstream/internal/realtime"
	"github.com/arec-energy/pumpstream/internal/scheduler"
	"github.com/arec-energy/pumpstream/internal/transport"
)

const DefaultRolloverSpec = "@every 1m"

// Options configures a Session.
type Options struct {
	WindowSize int
	// Location decides where a counter day ends. Defaults to UTC.
	Location     *time.Location
	RolloverSpec string
	Logger       logrus.FieldLogger
	// Now is the session clock. Defaults to time.Now.
	Now func() time.Time
}

// Snapshot is the state of the realtime view after a reading or a day
// rollover.
type Snapshot struct {
	Reading      *models.SensorReading        `json:"reading,omitempty"`
	Windows      map[realtime.Metric][]float64 `json:"windows"`
	EnergyWh     float64                       `json:"energy_wh"`
	WaterVolume  float64                       `json:"water_volume"`
	EnergyResets int                           `json:"energy_resets"`
	WaterResets  int                           `json:"water_resets"`
	At           time.Time                     `json:"at"`
}

// Session owns a subscription, the feed, the energy and water trackers and
// the rollover schedule.
type Session struct {
	sub    transport.Subscription
	feed   *realtime.Feed
	energy *counter.Tracker
	water  *counter.Tracker
	sched  *scheduler.Scheduler
	ticks  chan struct{}
	now    func() time.Time
	logger logrus.FieldLogger

	closeOnce sync.Once
	closeErr  error
}

// Open subscribes to topic and starts the rollover schedule. The caller
// must Close the session, or let Run do it.
func Open(ctx context.Context, subscriber transport.Subscriber, topic string, opts Options) (*Session, error) {
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.RolloverSpec == "" {
		opts.RolloverSpec = DefaultRolloverSpec
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = logrus.StandardLogger()
	}
	logger := opts.Logger.WithField("component", "live")

	s := &Session{
		feed:   realtime.NewFeed(opts.WindowSize),
		energy: counter.NewTracker(opts.Location),
		water:  counter.NewTracker(opts.Location),
		sched:  scheduler.New(logger),
		ticks:  make(chan struct{}, 1),
		now:    opts.Now,
		logger: logger,
	}
	if err := s.sched.Every(opts.RolloverSpec, "counter rollover", s.tick); err != nil {
		return nil, err
	}

	sub, err := subscriber.Subscribe(ctx, topic)
	if err != nil {
		return nil, err
	}
	s.sub = sub
	s.sched.Start()

	logger.WithField("topic", topic).Info("Live session opened")
	return s, nil
}

// tick asks the Run goroutine to check for a day rollover. Ticks coalesce.
func (s *Session) tick() {
	select {
	case s.ticks <- struct{}{}:
	default:
	}
}

// Run processes messages until ctx is done, the connection is lost or
// emit fails. Messages buffered before a lost connection are still
// processed. The session is closed when Run returns. A session closed by
// the caller ends Run with a nil error.
func (s *Session) Run(ctx context.Context, emit func(Snapshot) error) error {
	defer s.Close()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case <-s.sub.Done():
			err := s.sub.Err()
			if err == nil || errors.Is(err, transport.ErrClosed) {
				return nil
			}
			if drainErr := s.drain(emit); drainErr != nil {
				return drainErr
			}
			return err

		case <-s.ticks:
			now := s.now()
			energyRolled := s.energy.CheckRollover(now)
			waterRolled := s.water.CheckRollover(now)
			if !energyRolled && !waterRolled {
				continue
			}
			s.logger.WithField("at", now).Info("Counter day rolled over")
			if err := emit(s.snapshot(now)); err != nil {
				return err
			}

		case msg := <-s.sub.Messages():
			if err := s.process(msg, emit); err != nil {
				return err
			}
		}
	}
}

// drain processes messages buffered before a lost connection.
func (s *Session) drain(emit func(Snapshot) error) error {
	for {
		select {
		case msg := <-s.sub.Messages():
			if err := s.process(msg, emit); err != nil {
				return err
			}
		default:
			return nil
		}
	}
}

// process folds one message into the view and emits the result.
// Undecodable payloads are logged and skipped.
func (s *Session) process(msg transport.Message, emit func(Snapshot) error) error {
	reading, err := decoder.Decode(msg.Payload)
	if err != nil {
		s.logger.WithError(err).Warn("Discarding undecodable message")
		return nil
	}
	now := s.now()
	s.feed.Push(reading)
	if v := reading.AccumulatedEnergyWh; v != nil {
		s.energy.Observe(*v, now)
	}
	if v := reading.TotalWaterVolume; v != nil {
		s.water.Observe(*v, now)
	}
	return emit(s.snapshot(now))
}

func (s *Session) snapshot(at time.Time) Snapshot {
	snap := Snapshot{
		Windows:      s.feed.Windows(),
		EnergyWh:     s.energy.Delta(),
		WaterVolume:  s.water.Delta(),
		EnergyResets: s.energy.Resets(),
		WaterResets:  s.water.Resets(),
		At:           at,
	}
	if r, ok := s.feed.Latest(); ok {
		snap.Reading = &r
	}
	return snap
}

// Close stops the rollover schedule and releases the subscription. It is
// safe to call more than once.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.sched.Stop(ctx)
		s.closeErr = s.sub.Close()
		s.logger.Info("Live session closed")
	})
	return s.closeErr
}
