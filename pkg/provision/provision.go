// Package provision turns generated infrastructure code into a three-phase
// validate, plan, apply sequence with file-level rollback on pre-apply
// failure.
package provision

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/zen-systems/infragate/pkg/adapter"
	"github.com/zen-systems/infragate/pkg/dispatch"
)

// DynamicFileName is the shared configuration file generated fragments are
// staged into.
const DynamicFileName = "dynamic_resources.tf"

// defaultParallelism bounds concurrent resource operations within one
// terraform plan or apply.
const defaultParallelism = 20

// CodeGenerator produces an infrastructure code fragment for a change
// request.
type CodeGenerator interface {
	GenerateFragment(ctx context.Context, action, resourceType string, params map[string]any) (string, error)
}

// DispatchGenerator generates fragments through the model dispatcher.
type DispatchGenerator struct {
	Dispatcher *dispatch.Dispatcher
}

// GenerateFragment asks the terraform-codegen task for a resource block
// and strips surrounding code-fence markup.
func (g *DispatchGenerator) GenerateFragment(ctx context.Context, action, resourceType string, params map[string]any) (string, error) {
	temperature := 0.0
	result, err := g.Dispatcher.Dispatch(ctx, dispatch.TaskTerraformCodegen,
		buildFragmentPrompt(action, resourceType, params),
		adapter.Options{Temperature: &temperature})
	if err != nil {
		return "", err
	}
	return dispatch.StripFences(result.Text), nil
}

// Config locates the provisioner's trees.
type Config struct {
	// SourceRoot is the template tree mirrored into the working root.
	SourceRoot string

	// WorkRoot is the isolated execution root the source tree is
	// mirrored into.
	WorkRoot string

	// ActiveDir is the subdirectory of WorkRoot commands run in.
	ActiveDir string

	// Parallelism bounds plan/apply concurrency. Zero means the default.
	Parallelism int
}

// Result is a successful pipeline run.
type Result struct {
	Phase  Phase
	Output string
}

// Provisioner owns one working directory. Concurrent Execute calls against
// the same working directory serialize on an internal mutex; interleaved
// staging and rollback would corrupt the shared file.
type Provisioner struct {
	cfg  Config
	gen  CodeGenerator
	tool ToolRunner
	log  zerolog.Logger

	mu          sync.Mutex
	initialized bool
}

// Option configures a Provisioner.
type Option func(*Provisioner)

// WithLogger sets the provisioner's logger.
func WithLogger(log zerolog.Logger) Option {
	return func(p *Provisioner) { p.log = log }
}

// New creates a Provisioner.
func New(cfg Config, gen CodeGenerator, tool ToolRunner, opts ...Option) *Provisioner {
	if cfg.Parallelism <= 0 {
		cfg.Parallelism = defaultParallelism
	}
	p := &Provisioner{
		cfg:  cfg,
		gen:  gen,
		tool: tool,
		log:  zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// workdir returns the directory tool commands run in.
func (p *Provisioner) workdir() string {
	return filepath.Join(p.cfg.WorkRoot, p.cfg.ActiveDir)
}

// Init mirrors the source template tree into the working root and
// initializes the tool once. Re-initialization is skipped when the working
// directory is already initialized.
func (p *Provisioner) Init(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.initialized {
		return nil
	}

	if err := Mirror(p.cfg.SourceRoot, p.cfg.WorkRoot); err != nil {
		return fmt.Errorf("mirror template tree: %w", err)
	}

	if _, err := os.Stat(filepath.Join(p.workdir(), ".terraform")); os.IsNotExist(err) {
		p.log.Info().Str("workdir", p.workdir()).Msg("initializing working directory")
		result, err := p.tool.Run(ctx, p.workdir(), []string{"init"}, nil)
		if err != nil {
			return fmt.Errorf("init working directory: %w", err)
		}
		if result.ExitCode != 0 {
			return fmt.Errorf("init working directory: %s", result.Stderr)
		}
	}

	p.initialized = true
	return nil
}

// Execute runs one change request through generate, stage, validate, plan
// and apply. Validate or plan failures restore the staged file to its
// exact pre-request byte content. Apply failures intentionally leave the
// staged content in place: remote side effects may already exist, and
// discarding the definition would desynchronize declared versus actual
// state. Cancellation is honored between phases only; once apply starts
// the tool runs to completion on a detached context, since killing it
// partway through would strand partially created remote resources.
func (p *Provisioner) Execute(ctx context.Context, changeAction, resourceType string, params map[string]any, env map[string]string) (*Result, error) {
	switch changeAction {
	case "create", "update", "delete":
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedAction, changeAction)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	fragment, err := p.gen.GenerateFragment(ctx, changeAction, resourceType, params)
	if err != nil {
		return nil, &PhaseError{Phase: PhaseGenerate, Err: err}
	}
	if strings.TrimSpace(fragment) == "" {
		return nil, &PhaseError{Phase: PhaseGenerate, Err: fmt.Errorf("generated fragment is empty")}
	}

	// Callers may cancel before staging begins; once staged, the request
	// runs to a terminal phase.
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	dynamicFile := filepath.Join(p.workdir(), DynamicFileName)
	backup, existed, err := readCurrent(dynamicFile)
	if err != nil {
		return nil, &PhaseError{Phase: PhaseStage, Err: err}
	}

	restore := func() {
		if restoreErr := restoreContent(dynamicFile, backup, existed); restoreErr != nil {
			p.log.Error().Err(restoreErr).Str("file", dynamicFile).Msg("rollback failed")
		}
	}

	if err := stageFragment(dynamicFile, backup, resourceType, fragment); err != nil {
		restore()
		return nil, &PhaseError{Phase: PhaseStage, Err: err}
	}
	p.log.Debug().Str("resource_type", resourceType).Msg("fragment staged")

	if err := ctx.Err(); err != nil {
		restore()
		return nil, err
	}
	if phaseErr := p.runPhase(ctx, PhaseValidate, []string{"validate"}, env); phaseErr != nil {
		restore()
		return nil, phaseErr
	}

	if err := ctx.Err(); err != nil {
		restore()
		return nil, err
	}
	planArgs := []string{"plan", fmt.Sprintf("-parallelism=%d", p.cfg.Parallelism)}
	if phaseErr := p.runPhase(ctx, PhasePlan, planArgs, env); phaseErr != nil {
		restore()
		return nil, phaseErr
	}

	if err := ctx.Err(); err != nil {
		restore()
		return nil, err
	}
	applyArgs := []string{"apply", "-auto-approve", fmt.Sprintf("-parallelism=%d", p.cfg.Parallelism)}
	result, err := p.tool.Run(context.WithoutCancel(ctx), p.workdir(), applyArgs, env)
	if err != nil {
		return nil, &PhaseError{Phase: PhaseApply, Err: err}
	}
	if result.ExitCode != 0 {
		return nil, &PhaseError{Phase: PhaseApply, Diagnostics: result.Stderr,
			Err: fmt.Errorf("exit status %d", result.ExitCode)}
	}

	p.log.Info().Str("action", changeAction).Str("resource_type", resourceType).Msg("apply complete")
	return &Result{Phase: PhaseDone, Output: result.Stdout}, nil
}

func (p *Provisioner) runPhase(ctx context.Context, phase Phase, args []string, env map[string]string) *PhaseError {
	result, err := p.tool.Run(ctx, p.workdir(), args, env)
	if err != nil {
		return &PhaseError{Phase: phase, Err: err}
	}
	if result.ExitCode != 0 {
		return &PhaseError{Phase: phase, Diagnostics: result.Stderr,
			Err: fmt.Errorf("exit status %d", result.ExitCode)}
	}
	return nil
}

// readCurrent retains the current contents of the shared dynamic file, or
// the empty string when it does not yet exist.
func readCurrent(path string) (string, bool, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return string(data), true, nil
}

// stageFragment appends the fragment to the retained content, annotated
// with a marker comment identifying the target resource type.
func stageFragment(path, current, resourceType, fragment string) error {
	var sb strings.Builder
	sb.WriteString(current)
	sb.WriteString(fmt.Sprintf("\n# Auto-generated for %s\n", resourceType))
	sb.WriteString(fragment)
	sb.WriteString("\n")
	return os.WriteFile(path, []byte(sb.String()), 0644)
}

// restoreContent reverts the dynamic file to its pre-staging state,
// removing it entirely when it did not exist before.
func restoreContent(path, backup string, existed bool) error {
	if !existed {
		err := os.Remove(path)
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	return os.WriteFile(path, []byte(backup), 0644)
}
