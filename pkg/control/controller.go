// Package control glues the pieces of an experiment together: manifest in,
// entities expanded, run directories staged, steps launched, jobs registered
// with the job manager.
//
// The controller stays thin. Everything with depth lives in jobmanager,
// strategy, and launcher; batch script construction for workload managers is
// outside simrun entirely, so WLM jobs enter through AttachStep rather than
// Launch.
package control

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/hpcforge/simrun/pkg/entity"
	"github.com/hpcforge/simrun/pkg/events"
	"github.com/hpcforge/simrun/pkg/jobmanager"
	"github.com/hpcforge/simrun/pkg/launcher"
	"github.com/hpcforge/simrun/pkg/manifest"
	"github.com/hpcforge/simrun/pkg/stage"
	"github.com/hpcforge/simrun/pkg/strategy"
)

// Starter is the submission side of a launcher. Only the local launcher
// implements it; workload-manager submission happens outside simrun.
type Starter interface {
	Start(step launcher.Step) (string, error)
}

// Config carries controller construction options.
type Config struct {
	// Launcher selects the backend: "local", "slurm", or "pbs".
	Launcher string

	// LocalInterval and WLMInterval are the job manager poll cadences.
	LocalInterval time.Duration
	WLMInterval   time.Duration

	// WLMQueryInterval rate-limits scheduler queries for slurm/pbs.
	WLMQueryInterval time.Duration

	// Logger receives controller and job manager logs. Nil disables
	// logging.
	Logger *zap.Logger

	// Events receives lifecycle records (launches, restarts, completions,
	// the final summary). Nil disables event output.
	Events events.Writer
}

// Controller launches entities and tracks them through the job manager.
type Controller struct {
	launcher launcher.Launcher
	starter  Starter
	manager  *jobmanager.Manager
	registry *strategy.Registry
	log      *zap.Logger
	events   events.Writer
	started  time.Time

	// registerStep is set for WLM launchers that need name -> job id
	// registration before polling.
	registerStep func(name, jobID string)
}

// New builds a controller for the selected launcher.
func New(cfg Config) (*Controller, error) {
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}

	ev := cfg.Events
	if ev == nil {
		ev = events.NopWriter{}
	}

	c := &Controller{
		registry: strategy.NewRegistry(),
		log:      log,
		events:   ev,
	}

	switch cfg.Launcher {
	case "", "local":
		local := launcher.NewLocal()
		c.launcher = local
		c.starter = local
	case "slurm":
		slurm := launcher.NewSlurm(cfg.WLMQueryInterval)
		c.launcher = slurm
		c.registerStep = slurm.RegisterStep
	case "pbs":
		pbs := launcher.NewPBS(cfg.WLMQueryInterval)
		c.launcher = pbs
		c.registerStep = pbs.RegisterStep
	default:
		return nil, &strategy.ConfigurationError{
			Op:  "create controller",
			Msg: fmt.Sprintf("launcher type not supported: %q", cfg.Launcher),
		}
	}

	c.manager = jobmanager.New(c.launcher, jobmanager.Config{
		LocalInterval: cfg.LocalInterval,
		WLMInterval:   cfg.WLMInterval,
		Logger:        log.Named("jobmanager"),
	})
	return c, nil
}

// Manager exposes the job manager for status queries and the admin server.
func (c *Controller) Manager() *jobmanager.Manager {
	return c.manager
}

// Registry exposes the strategy registry so callers can register custom
// permutation strategies before Launch.
func (c *Controller) Registry() *strategy.Registry {
	return c.registry
}

// Launch expands and starts every entity in the manifest, registers the
// resulting jobs, and starts monitoring.
//
// Launch requires a launcher that supports local submission; for slurm/pbs
// use AttachStep with externally submitted job ids.
func (c *Controller) Launch(m *manifest.Manifest) error {
	if c.starter == nil {
		return &strategy.ConfigurationError{
			Op:  "launch",
			Msg: "this launcher does not submit steps; submit externally and register with AttachStep",
		}
	}

	apps, err := c.expand(m)
	if err != nil {
		return err
	}

	c.started = time.Now()
	stager := stage.New(m.Experiment.Path)
	for i, app := range apps {
		files := appFiles(m, app)
		run, err := stager.Stage(app.Name(), files)
		if err != nil {
			return err
		}
		app.Path = run.Path
		app.SetRunSetting("out_file", run.OutFile)
		app.SetRunSetting("err_file", run.ErrFile)

		jid, err := c.starter.Start(launcher.Step{
			Name:    app.Name(),
			Exe:     app.Exe,
			Args:    app.ExeArgs,
			Cwd:     run.Path,
			OutFile: run.OutFile,
			ErrFile: run.ErrFile,
		})
		if err != nil {
			return fmt.Errorf("launch %s: %w", app.Name(), err)
		}
		c.register(app.Name(), jid, app, entity.KindApplication)
		if err := c.events.WriteLaunch(&events.LaunchRecord{
			Entity:   app.Name(),
			StepName: app.Name(),
			JID:      jid,
			Kind:     string(entity.KindApplication),
			RunDir:   run.Path,
		}); err != nil {
			c.log.Warn("event write failed", zap.Error(err))
		}
		c.log.Info("launched application",
			zap.String("entity", app.Name()),
			zap.String("job_id", jid),
			zap.Int("index", i))
	}

	if fs := m.FeatureStore; fs != nil {
		if err := c.launchFeatureStore(stager, fs); err != nil {
			return err
		}
	}

	c.manager.Start()
	return nil
}

// AttachStep registers an externally submitted step (e.g. an sbatch job)
// with the launcher and job manager, then ensures monitoring is running.
func (c *Controller) AttachStep(stepName, jobID string, ent entity.Entity, kind entity.Kind) {
	if c.registerStep != nil {
		c.registerStep(stepName, jobID)
	}
	c.register(ent.Name(), jobID, ent, kind)
	c.manager.Start()
}

// register adds or restarts the entity's job depending on whether a prior
// completed run exists.
func (c *Controller) register(stepName, jid string, ent entity.Entity, kind entity.Kind) {
	if c.manager.QueryRestart(ent.Name()) {
		priorRuns := 0
		if summary, err := c.manager.Summary(ent.Name()); err == nil {
			priorRuns = summary.Runs + 1
		}
		if err := c.manager.RestartJob(stepName, jid, ent.Name()); err != nil {
			c.log.Warn("restart failed, registering fresh job",
				zap.String("entity", ent.Name()),
				zap.Error(err))
			c.manager.AddJob(stepName, jid, ent, kind)
			return
		}
		_ = c.events.WriteRestart(&events.RestartRecord{
			Entity:    ent.Name(),
			StepName:  stepName,
			JID:       jid,
			PriorRuns: priorRuns,
		})
		return
	}
	c.manager.AddJob(stepName, jid, ent, kind)
}

// Poll blocks until no active jobs remain, emitting completion events as
// jobs retire and a summary once the active set drains. With verbose set,
// still-active jobs are logged each interval.
func (c *Controller) Poll(interval time.Duration, verbose bool) {
	reported := make(map[string]bool)
	lastStatus := make(map[string]launcher.JobStatus)
	for c.manager.Len() > 0 {
		time.Sleep(interval)
		for _, summary := range c.manager.Snapshot() {
			if summary.Completed {
				if !reported[summary.EntityName] {
					reported[summary.EntityName] = true
					_ = c.events.WriteCompleted(&events.CompletedRecord{
						Entity:     summary.EntityName,
						Status:     string(summary.Status),
						ReturnCode: summary.ReturnCode,
						Runs:       summary.Runs,
					})
				}
				continue
			}
			if last, ok := lastStatus[summary.EntityName]; !ok || last != summary.Status {
				lastStatus[summary.EntityName] = summary.Status
				_ = c.events.WriteStatus(&events.StatusRecord{
					Entity: summary.EntityName,
					Status: string(summary.Status),
				})
			}
			if verbose {
				c.log.Info("job status",
					zap.String("entity", summary.EntityName),
					zap.String("status", string(summary.Status)))
			}
		}
	}

	completed, failed := 0, 0
	for _, summary := range c.manager.Snapshot() {
		if !reported[summary.EntityName] {
			_ = c.events.WriteCompleted(&events.CompletedRecord{
				Entity:     summary.EntityName,
				Status:     string(summary.Status),
				ReturnCode: summary.ReturnCode,
				Runs:       summary.Runs,
			})
		}
		if summary.Status == launcher.StatusCompleted {
			completed++
		} else {
			failed++
		}
	}

	elapsed := time.Since(c.started).Round(time.Millisecond)
	_ = c.events.WriteSummary(&events.SummaryRecord{
		JobsCompleted: completed,
		JobsFailed:    failed,
		Duration:      elapsed,
		DurationHuman: elapsed.String(),
	})
}

// Stop cancels a running entity's step (local launcher only) and marks its
// job cancelled.
func (c *Controller) Stop(entityName string) error {
	summary, err := c.manager.Summary(entityName)
	if err != nil {
		return err
	}
	if summary.Status.Terminal() {
		return nil
	}

	local, ok := c.launcher.(*launcher.Local)
	if !ok {
		return &strategy.ConfigurationError{
			Op:  "stop",
			Msg: "stopping workload-manager jobs is done through the scheduler (scancel/qdel)",
		}
	}
	if err := local.Stop(summary.StepName); err != nil {
		return err
	}
	return c.manager.CancelJob(entityName, 0)
}

// expand turns manifest application configs into concrete applications,
// expanding ensembles through the strategy registry.
func (c *Controller) expand(m *manifest.Manifest) ([]*entity.Application, error) {
	var apps []*entity.Application
	for _, cfg := range m.Applications {
		if cfg.Ensemble == nil {
			app, err := entity.NewApplication(cfg.Name, cfg.Exe, cfg.ExeArgs, nil, cloneSettings(cfg.RunSettings))
			if err != nil {
				return nil, err
			}
			apps = append(apps, app)
			continue
		}

		e := entity.NewEnsemble(cfg.Name, cfg.Exe, cfg.Ensemble.Params, cfg.Ensemble.ExeArgs, cloneSettings(cfg.RunSettings))
		e.Strategy = cfg.Ensemble.Strategy
		e.NPermutations = cfg.Ensemble.NPermutations
		e.Replicas = cfg.Ensemble.Replicas
		if err := e.Expand(c.registry); err != nil {
			return nil, err
		}
		apps = append(apps, e.Members()...)
	}
	return apps, nil
}

func (c *Controller) launchFeatureStore(stager *stage.Stager, cfg *manifest.FeatureStoreConfig) error {
	fs := entity.NewFeatureStore(cfg.Name, cfg.Nodes, cfg.Ports, cfg.Batch)
	for _, node := range fs.Nodes() {
		run, err := stager.Stage(node.Name(), stage.Files{})
		if err != nil {
			return err
		}
		node.SetRunSetting("out_file", run.OutFile)
		node.SetRunSetting("err_file", run.ErrFile)

		// Feature-store binaries are site-provided; simrun only knows how
		// to supervise them locally via the configured server executable.
		jid, err := c.starter.Start(launcher.Step{
			Name:    node.Name(),
			Exe:     "redis-server",
			Args:    []string{"--port", fmt.Sprintf("%d", cfg.Ports[0]), "--protected-mode", "no"},
			Cwd:     run.Path,
			OutFile: run.OutFile,
			ErrFile: run.ErrFile,
		})
		if err != nil {
			return fmt.Errorf("launch feature store node %s: %w", node.Name(), err)
		}
		node.Host = "localhost"
		c.register(node.Name(), jid, node, entity.KindFeatureStore)
		_ = c.events.WriteLaunch(&events.LaunchRecord{
			Entity:   node.Name(),
			StepName: node.Name(),
			JID:      jid,
			Kind:     string(entity.KindFeatureStore),
			RunDir:   run.Path,
		})
	}
	return c.manager.SetFeatureStoreHosts(fs)
}

func appFiles(m *manifest.Manifest, app *entity.Application) stage.Files {
	// Ensemble members inherit their parent config's files; match on the
	// configured name prefix.
	for _, cfg := range m.Applications {
		if cfg.Name == app.Name() || isMemberOf(app.Name(), cfg.Name) {
			return stage.Files{Copy: cfg.Files.Copy, Symlink: cfg.Files.Symlink}
		}
	}
	return stage.Files{}
}

func isMemberOf(memberName, ensembleName string) bool {
	if len(memberName) <= len(ensembleName)+1 {
		return false
	}
	return memberName[:len(ensembleName)+1] == ensembleName+"_"
}

func cloneSettings(in map[string]string) map[string]string {
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
