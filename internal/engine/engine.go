// Package engine defines the pluggable text-to-speech engine contract and
// a name-keyed registry of engine factories (§4.4).
package engine

import (
	"context"
	"fmt"
	"sync"
)

// Capabilities describes what an engine implementation supports, checked
// statically by the generation orchestrator before a chapter is scheduled.
type Capabilities struct {
	SupportsCloning bool
	SupportsSSML    bool
	RequiresGPU     bool
}

// GenerateRequest carries one chunk's synthesis inputs.
type GenerateRequest struct {
	Text           string
	VoiceID        string
	Language       string
	ReferenceAudio string // path to cloning reference, if the engine supports cloning
	SSML           bool
}

// GenerationResult is the engine contract's explicit result type: engines
// never propagate host-language exceptions across the boundary, they
// report success/failure and a classified error kind instead.
type GenerationResult struct {
	Success  bool
	AudioPCM []byte // WAV-encoded 16-bit PCM; a positive SampleRate overrides the header's rate
	SampleRate int
	ErrorKind  string
	Message    string
}

// Voice is one selectable voice identity an engine offers.
type Voice struct {
	ID        string
	Name      string
	Languages []string
}

// TTSEngine is the single trait every synthesis backend implements.
type TTSEngine interface {
	Name() string
	Capabilities() Capabilities
	Generate(ctx context.Context, req GenerateRequest) (*GenerationResult, error)
	ListVoices(ctx context.Context) ([]Voice, error)
	TestConnection(ctx context.Context) error
	Close() error
}

// VRAMManager is an optional narrower capability: GPU-resident engines may
// implement it so the orchestrator can apply the project's VRAM policy
// (empty_cache_per_chapter, reload_periodic, conservative) without the
// orchestrator knowing the engine's internals.
type VRAMManager interface {
	ReleaseVRAM(ctx context.Context) error
	UnloadModel(ctx context.Context) error
}

// Factory constructs a TTSEngine from per-instance options.
type Factory func(name string, options map[string]string) (TTSEngine, error)

// Registry maps engine kind names to factories, and lazily instantiates and
// caches named engine instances. A failed instantiation stays recorded so
// the engine keeps showing up in listings with a failing TestConnection,
// matching the teacher's registry semantics.
type Registry struct {
	mu         sync.RWMutex
	factories  map[string]Factory
	instances  map[string]TTSEngine
	initErrors map[string]error
}

// NewRegistry creates an empty engine registry.
func NewRegistry() *Registry {
	return &Registry{
		factories:  make(map[string]Factory),
		instances:  make(map[string]TTSEngine),
		initErrors: make(map[string]error),
	}
}

// RegisterFactory registers a named engine kind (e.g. "edgehttp", "stub").
func (r *Registry) RegisterFactory(kind string, factory Factory) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.factories[kind]; exists {
		return fmt.Errorf("engine factory already registered: %s", kind)
	}
	r.factories[kind] = factory
	return nil
}

// Instantiate creates (or returns the cached) engine instance for name,
// constructed via factory kind with options. A failed construction is
// cached as an error so repeated lookups do not retry indefinitely.
func (r *Registry) Instantiate(name, kind string, options map[string]string) (TTSEngine, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if inst, ok := r.instances[name]; ok {
		return inst, nil
	}
	if err, ok := r.initErrors[name]; ok {
		return nil, err
	}

	factory, ok := r.factories[kind]
	if !ok {
		err := fmt.Errorf("unknown engine kind: %s", kind)
		r.initErrors[name] = err
		return nil, err
	}

	inst, err := factory(name, options)
	if err != nil {
		wrapped := fmt.Errorf("failed to initialize engine %s (%s): %w", name, kind, err)
		r.initErrors[name] = wrapped
		return nil, wrapped
	}

	r.instances[name] = inst
	return inst, nil
}

// Get retrieves a previously instantiated engine by name.
func (r *Registry) Get(name string) (TTSEngine, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	inst, ok := r.instances[name]
	if !ok {
		return nil, fmt.Errorf("engine not found: %s", name)
	}
	return inst, nil
}

// List returns every engine name that has been instantiated, successfully
// or not.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	seen := map[string]bool{}
	var names []string
	for name := range r.instances {
		if !seen[name] {
			seen[name] = true
			names = append(names, name)
		}
	}
	for name := range r.initErrors {
		if !seen[name] {
			seen[name] = true
			names = append(names, name)
		}
	}
	return names
}

// Close closes every instantiated engine, collecting (not discarding) any
// individual close errors.
func (r *Registry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var errs []error
	for name, inst := range r.instances {
		if err := inst.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close engine %s: %w", name, err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("errors closing engines: %v", errs)
	}
	return nil
}
