package backend

// PermissionMode controls how eagerly the backend may act without asking.
type PermissionMode string

const (
	// PermissionModeDefault defers to the backend's own prompting.
	PermissionModeDefault PermissionMode = "default"
	// PermissionModePlan reviews a plan before execution.
	PermissionModePlan PermissionMode = "plan"
	// PermissionModeBypass auto-approves all tools.
	PermissionModeBypass PermissionMode = "bypass"
)

// Options are the merged thread defaults. Adapter defaults are applied
// first, call-time options override.
type Options struct {
	ExtraEnv       map[string]string
	Model          string
	WorkDir        string
	CLIPath        string
	SystemPrompt   string
	PermissionMode PermissionMode
	AllowedTools   []string
}

// ThreadOption overrides one thread default.
type ThreadOption func(*Options)

// WithModel sets the model.
func WithModel(model string) ThreadOption {
	return func(o *Options) { o.Model = model }
}

// WithWorkDir sets the working directory for the backend.
func WithWorkDir(dir string) ThreadOption {
	return func(o *Options) { o.WorkDir = dir }
}

// WithPermissionMode sets the permission mode.
func WithPermissionMode(mode PermissionMode) ThreadOption {
	return func(o *Options) { o.PermissionMode = mode }
}

// WithAllowedTools sets the tool allow-list.
func WithAllowedTools(tools ...string) ThreadOption {
	return func(o *Options) { o.AllowedTools = tools }
}

// WithCLIPath overrides the backend binary path.
func WithCLIPath(path string) ThreadOption {
	return func(o *Options) { o.CLIPath = path }
}

// WithSystemPrompt sets the system prompt.
func WithSystemPrompt(prompt string) ThreadOption {
	return func(o *Options) { o.SystemPrompt = prompt }
}

// WithExtraEnv adds environment variables for the backend process.
func WithExtraEnv(env map[string]string) ThreadOption {
	return func(o *Options) {
		if o.ExtraEnv == nil {
			o.ExtraEnv = make(map[string]string, len(env))
		}
		for k, v := range env {
			o.ExtraEnv[k] = v
		}
	}
}

func (o Options) merged(opts []ThreadOption) Options {
	out := o
	if o.ExtraEnv != nil {
		out.ExtraEnv = make(map[string]string, len(o.ExtraEnv))
		for k, v := range o.ExtraEnv {
			out.ExtraEnv[k] = v
		}
	}
	if o.AllowedTools != nil {
		out.AllowedTools = append([]string(nil), o.AllowedTools...)
	}
	for _, opt := range opts {
		opt(&out)
	}
	return out
}
