package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/srmsweets/hrportal/internal/events"
	"github.com/srmsweets/hrportal/internal/models"
)

// defaultWatchTypes are the events a headless watcher cares about.
var defaultWatchTypes = []models.EventType{
	models.EventTypeAlertShown,
	models.EventTypeBadgeUpdated,
	models.EventTypeActionFailed,
}

// EventSource is the subscription side of the engine.
type EventSource interface {
	Subscribe(id string, filter events.Filter, handler events.EventHandler) error
	Unsubscribe(id string) error
}

// EventStreamer writes engine events to an output writer in JSONL format.
type EventStreamer struct {
	out   io.Writer
	types []models.EventType

	mu  sync.Mutex
	err error
}

// NewEventStreamer creates a streamer for the given event types; nil
// streams every type.
func NewEventStreamer(out io.Writer, types []models.EventType) *EventStreamer {
	return &EventStreamer{out: out, types: types}
}

// Attach subscribes the streamer to source and returns the detach func.
func (s *EventStreamer) Attach(source EventSource) (func(), error) {
	id := "watch-" + uuid.NewString()
	err := source.Subscribe(id, events.Filter{EventTypes: s.types}, func(event *models.Event) {
		if err := s.writeEvent(event); err != nil {
			s.mu.Lock()
			if s.err == nil {
				s.err = err
			}
			s.mu.Unlock()
		}
	})
	if err != nil {
		return nil, fmt.Errorf("subscribe: %w", err)
	}
	return func() { _ = source.Unsubscribe(id) }, nil
}

// Err returns the first write failure.
func (s *EventStreamer) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// writeEvent writes a single event as a JSON line.
func (s *EventStreamer) writeEvent(event *models.Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := fmt.Fprintln(s.out, string(data)); err != nil {
		return fmt.Errorf("failed to write event: %w", err)
	}
	return nil
}

func newWatchCmd(a *app) *cobra.Command {
	var all bool
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Poll in the background and print alerts and badge counts as JSON lines",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			engine, err := a.engine()
			if err != nil {
				return err
			}
			defer engine.Close()

			types := defaultWatchTypes
			if all {
				types = nil
			}
			streamer := NewEventStreamer(cmd.OutOrStdout(), types)
			detach, err := streamer.Attach(engine)
			if err != nil {
				return err
			}
			defer detach()

			return runWatch(cmd.Context(), engine, streamer)
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "print every engine event, not only alerts, badges and failures")
	return cmd
}

type starter interface {
	Start(ctx context.Context) error
}

// runWatch polls until ctx ends. Ctrl+C is a clean exit.
func runWatch(ctx context.Context, engine starter, streamer *EventStreamer) error {
	if err := engine.Start(ctx); err != nil {
		return fmt.Errorf("start engine: %w", err)
	}
	log := logCLI()
	log.Info().Msg("watching for activity; press Ctrl+C to stop")
	<-ctx.Done()
	return streamer.Err()
}
