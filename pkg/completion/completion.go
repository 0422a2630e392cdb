package completion

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/absmach/fedtree/job"
	"github.com/absmach/fedtree/pkg/channel"
	"github.com/absmach/fedtree/pkg/supervisor"
)

const FinishedVar = "client_finished"

type Protocol struct {
	channel channel.Channel
	// timeout bounds Await. Zero waits until the context is done.
	timeout time.Duration
}

func NewProtocol(ch channel.Channel, timeout time.Duration) *Protocol {
	return &Protocol{channel: ch, timeout: timeout}
}

// Signal reports the first client's exit code to the server.
func (p *Protocol) Signal(ctx context.Context, server job.Participant, code int) error {
	value, err := channel.EncodeInt(code)
	if err != nil {
		return err
	}

	return p.channel.Publish(ctx, FinishedVar, value, []job.Participant{server})
}

// Await blocks until the first client reports its exit code.
func (p *Protocol) Await(ctx context.Context, firstClient job.Participant) (int, error) {
	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	value, err := p.channel.Receive(ctx, FinishedVar, firstClient)
	if err != nil {
		return 0, err
	}

	return channel.DecodeInt(value)
}

// Process is the part of a supervised process the server terminates.
type Process interface {
	Kill() error
	Wait(ctx context.Context) (supervisor.Result, error)
}

// Session drives the server side: once its process is running and the
// address published, it waits for the first client, kills the process and reaps it.
type Session struct {
	protocol *Protocol
	sm       *StateMachine
	logger   *slog.Logger
}

func NewSession(protocol *Protocol, logger *slog.Logger) *Session {
	return &Session{
		protocol: protocol,
		sm:       NewStateMachine(),
		logger:   logger,
	}
}

func (s *Session) State() State {
	return s.sm.State()
}

// Finish returns the code signalled by firstClient, which is the job's return
// code, together with the reaped result of proc.
func (s *Session) Finish(ctx context.Context, firstClient job.Participant, proc Process) (int, supervisor.Result, error) {
	if err := s.sm.Transition(AwaitingFirstClientSignal); err != nil {
		return 0, supervisor.Result{}, fmt.Errorf("await first client from %s: %w", s.sm.State(), err)
	}

	code, err := s.protocol.Await(ctx, firstClient)
	if err != nil {
		s.abort(proc)

		return 0, supervisor.Result{}, fmt.Errorf("failed to receive completion signal: %w", err)
	}
	s.logger.Info("Received completion signal",
		slog.String("client", firstClient.UserID),
		slog.Int("return_code", code))

	if err := s.sm.Transition(Terminating); err != nil {
		return 0, supervisor.Result{}, err
	}
	if err := proc.Kill(); err != nil {
		return 0, supervisor.Result{}, err
	}
	res, err := proc.Wait(context.WithoutCancel(ctx))
	if err != nil {
		return 0, supervisor.Result{}, err
	}

	if err := s.sm.Transition(Done); err != nil {
		return 0, supervisor.Result{}, err
	}

	return code, res, nil
}

// abort kills and reaps the process when no signal can arrive.
func (s *Session) abort(proc Process) {
	if err := proc.Kill(); err != nil {
		s.logger.Error("failed to kill training process", slog.Any("error", err))
	}
	if _, err := proc.Wait(context.Background()); err != nil {
		s.logger.Error("failed to reap training process", slog.Any("error", err))
	}
	if err := s.sm.Transition(Done); err != nil {
		s.logger.Error("failed to finish session", slog.Any("error", err))
	}
}
