// Package coordinator implements the server and client entry points of a
// FedTree training job.
package coordinator

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/absmach/fedtree/job"
	"github.com/absmach/fedtree/pkg/channel"
	"github.com/absmach/fedtree/pkg/completion"
	"github.com/absmach/fedtree/pkg/dispatch"
	pkgerrors "github.com/absmach/fedtree/pkg/errors"
	"github.com/absmach/fedtree/pkg/metrics"
	"github.com/absmach/fedtree/pkg/output"
	"github.com/absmach/fedtree/pkg/participant"
	"github.com/absmach/fedtree/pkg/rendezvous"
	"github.com/absmach/fedtree/pkg/roleconf"
	"github.com/absmach/fedtree/pkg/store"
	"github.com/absmach/fedtree/pkg/supervisor"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/absmach/fedtree/coordinator"

// Environment of the launched binaries.
const (
	EnvJobID       = "FEDTREE_JOB_ID"
	EnvRole        = "FEDTREE_ROLE"
	EnvClientIndex = "FEDTREE_CLIENT_INDEX"
)

type Config struct {
	ServerBinary string
	ClientBinary string
	// Zero timeouts wait until the context is done.
	RendezvousTimeout time.Duration
	CompletionTimeout time.Duration
	// AdvertiseAddress replaces the discovered server address when set.
	AdvertiseAddress string
}

type Service struct {
	cfg        Config
	catalog    roleconf.Catalog
	channels   channel.Factory
	supervisor *supervisor.Supervisor
	store      store.Store
	logger     *slog.Logger
	tracer     trace.Tracer
}

func NewService(cfg Config, catalog roleconf.Catalog, channels channel.Factory, sup *supervisor.Supervisor, st store.Store, logger *slog.Logger) *Service {
	return &Service{
		cfg:        cfg,
		catalog:    catalog,
		channels:   channels,
		supervisor: sup,
		store:      st,
		logger:     logger,
		tracer:     otel.Tracer(tracerName),
	}
}

// Register adds both entry points to r. Every run stores exactly one task entry.
func (s *Service) Register(r *dispatch.Registry) error {
	entries := []struct {
		op   string
		role job.Role
		run  func(context.Context, job.Invocation) (output.Outcome, error)
	}{
		{dispatch.OpServer, job.RoleServer, s.RunServer},
		{dispatch.OpClient, job.RoleClient, s.RunClient},
	}

	for _, e := range entries {
		if err := r.Register(e.op, s.handler(e.role, e.run)); err != nil {
			return err
		}
	}

	return nil
}

func (s *Service) handler(role job.Role, run func(context.Context, job.Invocation) (output.Outcome, error)) dispatch.Handler {
	return func(ctx context.Context, inv job.Invocation) ([]byte, error) {
		metrics.RunActive.WithLabelValues(string(role)).Inc()
		defer metrics.RunActive.WithLabelValues(string(role)).Dec()

		key := store.Key{JobID: inv.JobID, Role: role}
		out, err := dispatch.Capture(ctx, s.store, key, func(ctx context.Context) (output.Outcome, error) {
			return run(ctx, inv)
		})
		if err != nil {
			metrics.RunTotal.WithLabelValues(string(role), "failed").Inc()
			s.logger.Error("Run failed",
				slog.String("job_id", inv.JobID),
				slog.String("role", string(role)),
				slog.String("kind", pkgerrors.Kind(err)),
				slog.Any("error", err))

			return nil, err
		}
		metrics.RunTotal.WithLabelValues(string(role), "succeeded").Inc()

		return json.Marshal(out)
	}
}

// RunServer launches the server binary, publishes its address to every client
// and terminates it once the first client reports its exit code, which becomes
// the job's return code.
func (s *Service) RunServer(ctx context.Context, inv job.Invocation) (out output.Outcome, err error) {
	ctx, span := s.startSpan(ctx, job.RoleServer, inv)
	defer func() { endSpan(span, err) }()

	desc, err := job.Parse(inv.Param)
	if err != nil {
		return output.Outcome{}, err
	}

	participants := participantsOf(inv, desc)
	view, err := participant.Resolve(participants, inv.Self)
	if err != nil {
		return output.Outcome{}, err
	}
	if view.Role != job.RoleServer {
		return output.Outcome{}, fmt.Errorf("%q is not the server: %w", inv.Self, pkgerrors.ErrTopology)
	}
	firstClient, err := participant.FirstClient(participants)
	if err != nil {
		return output.Outcome{}, err
	}

	conf, err := roleconf.Translate(desc, job.RoleServer, participant.NoIndex, s.catalog)
	if err != nil {
		return output.Outcome{}, err
	}

	ch, err := s.channels(ctx, inv.JobID, inv.Self)
	if err != nil {
		return output.Outcome{}, err
	}

	proc, err := s.supervisor.Launch(ctx, supervisor.Spec{
		ID:         inv.JobID + "/server",
		Executable: s.cfg.ServerBinary,
		Config:     conf,
		Env: map[string]string{
			EnvJobID: inv.JobID,
			EnvRole:  string(job.RoleServer),
		},
	})
	if err != nil {
		return output.Outcome{}, err
	}

	addr := s.address()
	if err := rendezvous.NewExchange(ch, s.cfg.RendezvousTimeout).Publish(ctx, addr, participant.Clients(participants)); err != nil {
		s.stop(ctx, proc)

		return output.Outcome{}, fmt.Errorf("failed to publish server address: %w", err)
	}
	s.logger.Info("Published server address",
		slog.String("job_id", inv.JobID),
		slog.String("server_ip", addr))

	start := time.Now()
	session := completion.NewSession(completion.NewProtocol(ch, s.cfg.CompletionTimeout), s.logger)
	code, res, err := session.Finish(ctx, firstClient, proc)
	metrics.SignalWaitDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		return output.Outcome{}, err
	}
	observeProcess(job.RoleServer, res)

	if err := s.saveLog(ctx, inv.JobID, job.RoleServer, res.Log); err != nil {
		return output.Outcome{}, err
	}

	return output.NewOutcome(addr, res.Stdout, res.Stderr, code), nil
}

// RunClient waits for the server address, runs the party binary to completion
// and, on the first client, reports the exit code to the server.
func (s *Service) RunClient(ctx context.Context, inv job.Invocation) (out output.Outcome, err error) {
	ctx, span := s.startSpan(ctx, job.RoleClient, inv)
	defer func() { endSpan(span, err) }()

	desc, err := job.Parse(inv.Param)
	if err != nil {
		return output.Outcome{}, err
	}

	participants := participantsOf(inv, desc)
	view, err := participant.Resolve(participants, inv.Self)
	if err != nil {
		return output.Outcome{}, err
	}
	if view.Role != job.RoleClient {
		return output.Outcome{}, fmt.Errorf("%q is not a client: %w", inv.Self, pkgerrors.ErrTopology)
	}
	server, err := participant.Server(participants)
	if err != nil {
		return output.Outcome{}, err
	}
	span.SetAttributes(attribute.Int("fedtree.client_index", view.Index))

	conf, err := roleconf.Translate(desc, job.RoleClient, view.Index, s.catalog)
	if err != nil {
		return output.Outcome{}, err
	}

	ch, err := s.channels(ctx, inv.JobID, inv.Self)
	if err != nil {
		return output.Outcome{}, err
	}

	start := time.Now()
	addr, err := rendezvous.NewExchange(ch, s.cfg.RendezvousTimeout).Await(ctx, server)
	metrics.RendezvousDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		return output.Outcome{}, fmt.Errorf("failed to receive server address: %w", err)
	}
	conf.Set(roleconf.KeyIPAddress, addr)
	s.logger.Info("Received server address",
		slog.String("job_id", inv.JobID),
		slog.Int("client_index", view.Index),
		slog.String("server_ip", addr))

	proc, err := s.supervisor.Launch(ctx, supervisor.Spec{
		ID:         fmt.Sprintf("%s/client-%d", inv.JobID, view.Index),
		Executable: s.cfg.ClientBinary,
		Config:     conf,
		Args:       []string{strconv.Itoa(view.Index)},
		Env: map[string]string{
			EnvJobID:       inv.JobID,
			EnvRole:        string(job.RoleClient),
			EnvClientIndex: strconv.Itoa(view.Index),
		},
	})
	if err != nil {
		return output.Outcome{}, err
	}

	res, err := proc.Wait(context.WithoutCancel(ctx))
	if err != nil {
		return output.Outcome{}, err
	}
	observeProcess(job.RoleClient, res)

	if view.IsFirstClient() {
		// The server waits on this signal even when the run was cancelled.
		signalCtx := context.WithoutCancel(ctx)
		if err := completion.NewProtocol(ch, 0).Signal(signalCtx, server, res.ExitCode); err != nil {
			return output.Outcome{}, fmt.Errorf("failed to signal completion: %w", err)
		}
	}

	if err := s.saveLog(ctx, inv.JobID, job.RoleClient, res.Log); err != nil {
		return output.Outcome{}, err
	}

	return output.NewOutcome(addr, res.Stdout, res.Stderr, res.ExitCode), nil
}

func (s *Service) address() string {
	if s.cfg.AdvertiseAddress != "" {
		return s.cfg.AdvertiseAddress
	}

	return rendezvous.LocalAddress()
}

func (s *Service) stop(ctx context.Context, proc *supervisor.Process) {
	if err := proc.Kill(); err != nil {
		s.logger.Error("failed to kill training process", slog.Any("error", err))
	}
	if _, err := proc.Wait(context.WithoutCancel(ctx)); err != nil {
		s.logger.Error("failed to reap training process", slog.Any("error", err))
	}
}

// saveLog writes the log even when the run has been cancelled.
func (s *Service) saveLog(ctx context.Context, jobID string, role job.Role, log string) error {
	if err := s.store.SaveLog(context.WithoutCancel(ctx), store.Key{JobID: jobID, Role: role}, log); err != nil {
		metrics.StoreWriteTotal.WithLabelValues("log", "failed").Inc()

		return err
	}
	metrics.StoreWriteTotal.WithLabelValues("log", "succeeded").Inc()

	return nil
}

func (s *Service) startSpan(ctx context.Context, role job.Role, inv job.Invocation) (context.Context, trace.Span) {
	return s.tracer.Start(ctx, "fedtree."+string(role),
		trace.WithAttributes(
			attribute.String("fedtree.job_id", inv.JobID),
			attribute.String("fedtree.participant", inv.Self),
			attribute.String("fedtree.role", string(role)),
		))
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, pkgerrors.Kind(err))
	}
	span.End()
}

// participantsOf prefers the participant list supplied with the invocation.
func participantsOf(inv job.Invocation, desc job.Description) []job.Participant {
	if len(inv.Participants) > 0 {
		return inv.Participants
	}

	return desc.Participants()
}

func observeProcess(role job.Role, res supervisor.Result) {
	metrics.ProcessDuration.WithLabelValues(string(role)).Observe(res.Duration.Seconds())
	metrics.ProcessExitTotal.WithLabelValues(string(role), strconv.Itoa(res.ExitCode)).Inc()
}
