package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/lakshaymaurya-felt/winreclaim/internal/match"
	"github.com/lakshaymaurya-felt/winreclaim/internal/protect"
)

// Environment variables read by ApplyEnv.
const (
	EnvPreset   = "RECLAIM_PRESET"
	EnvTimeout  = "RECLAIM_TIMEOUT"
	EnvMaxDepth = "RECLAIM_MAX_DEPTH"
	EnvWorkers  = "RECLAIM_WORKERS"
	EnvLogFile  = "RECLAIM_LOG_FILE"
)

// DefaultPreset is used when neither a flag, the environment nor a policy
// file names one.
const DefaultPreset = "standard"

// ErrInvalidPolicy is returned for unusable configuration.
var ErrInvalidPolicy = errors.New("invalid policy")

// Policy holds every tunable of one run.
type Policy struct {
	Preset          string        `yaml:"preset"`
	Timeout         time.Duration `yaml:"timeout"`
	MaxDepth        int           `yaml:"max_depth"`
	Workers         int           `yaml:"workers"`
	MinTermLength   int           `yaml:"min_term_length"`
	UseWMI          bool          `yaml:"use_wmi"`
	RunUninstallers bool          `yaml:"run_uninstallers"`
	AllDrives       bool          `yaml:"all_drives"`
	DriveDepth      int           `yaml:"drive_depth"`
	WindowPass      bool          `yaml:"window_pass"`
	ExtraRoots      []string      `yaml:"extra_roots"`
	LogFile         string        `yaml:"log_file"`
	Protect         protect.Rules `yaml:"protect"`
}

// ─── Presets ─────────────────────────────────────────────────────────────────

var presets = map[string]Policy{
	"fast": {
		Timeout:  60 * time.Second,
		MaxDepth: 6,
		Workers:  4,
	},
	"standard": {
		Timeout:    120 * time.Second,
		MaxDepth:   8,
		Workers:    4,
		WindowPass: true,
	},
	"thorough": {
		Timeout:    300 * time.Second,
		MaxDepth:   20,
		Workers:    8,
		WindowPass: true,
		AllDrives:  true,
		UseWMI:     true,
	},
}

// PresetNames lists the presets in increasing order of cost.
func PresetNames() []string {
	return []string{"fast", "standard", "thorough"}
}

// Preset returns the named preset with the built-in protection rules.
func Preset(name string) (Policy, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	p, ok := presets[key]
	if !ok {
		return Policy{}, fmt.Errorf("%w: unknown preset %q (want one of %s)",
			ErrInvalidPolicy, name, strings.Join(PresetNames(), ", "))
	}
	p.Preset = key
	p.MinTermLength = 3
	p.DriveDepth = 2
	p.Protect = protect.DefaultRules()
	return p, nil
}

// ─── Loading ─────────────────────────────────────────────────────────────────

// LoadOptions names the configuration sources of one run.
type LoadOptions struct {
	// Preset from the command line; wins over every other source.
	Preset string
	// PolicyFile is an optional YAML overlay.
	PolicyFile string
	// EnvFile is an optional dotenv file loaded into the environment.
	EnvFile string
}

// Load layers preset, policy file and environment. Command-line overrides
// are applied by the caller afterwards.
func Load(opts LoadOptions) (Policy, error) {
	if opts.EnvFile != "" {
		if err := godotenv.Load(opts.EnvFile); err != nil {
			return Policy{}, fmt.Errorf("%w: loading env file %s: %v", ErrInvalidPolicy, opts.EnvFile, err)
		}
	}

	var file *os.File
	filePreset := ""
	if opts.PolicyFile != "" {
		f, err := os.Open(opts.PolicyFile)
		if err != nil {
			return Policy{}, fmt.Errorf("%w: %v", ErrInvalidPolicy, err)
		}
		defer f.Close()
		file = f
		filePreset, err = peekPreset(f)
		if err != nil {
			return Policy{}, fmt.Errorf("%w: %s: %v", ErrInvalidPolicy, opts.PolicyFile, err)
		}
	}

	name := firstNonEmpty(opts.Preset, os.Getenv(EnvPreset), filePreset, DefaultPreset)
	p, err := Preset(name)
	if err != nil {
		return Policy{}, err
	}

	if file != nil {
		if _, err := file.Seek(0, io.SeekStart); err != nil {
			return Policy{}, fmt.Errorf("%w: %v", ErrInvalidPolicy, err)
		}
		if p, err = decodePolicy(file, p); err != nil {
			return Policy{}, fmt.Errorf("%w: %s: %v", ErrInvalidPolicy, opts.PolicyFile, err)
		}
		p.Preset = strings.ToLower(name)
	}

	if p, err = ApplyEnv(p, os.LookupEnv); err != nil {
		return Policy{}, err
	}
	return p, nil
}

// LoadPolicy overlays the YAML file at path onto base.
func LoadPolicy(path string, base Policy) (Policy, error) {
	f, err := os.Open(path)
	if err != nil {
		return Policy{}, fmt.Errorf("%w: %v", ErrInvalidPolicy, err)
	}
	defer f.Close()
	p, err := decodePolicy(f, base)
	if err != nil {
		return Policy{}, fmt.Errorf("%w: %s: %v", ErrInvalidPolicy, path, err)
	}
	return p, nil
}

// decodePolicy decodes r over base. Unknown keys are errors so that typos
// in a protection list do not silently weaken it. Protection lists are
// appended to base's, never replace them.
func decodePolicy(r io.Reader, base Policy) (Policy, error) {
	builtin := base.Protect
	base.Protect = protect.Rules{}

	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&base); err != nil && !errors.Is(err, io.EOF) {
		return Policy{}, err
	}
	base.Protect = builtin.Merge(base.Protect)
	return base, nil
}

func peekPreset(r io.Reader) (string, error) {
	var head struct {
		Preset string `yaml:"preset"`
	}
	if err := yaml.NewDecoder(r).Decode(&head); err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}
	return head.Preset, nil
}

// ApplyEnv applies RECLAIM_* overrides read through lookup.
func ApplyEnv(p Policy, lookup func(string) (string, bool)) (Policy, error) {
	if v, ok := lookup(EnvTimeout); ok && strings.TrimSpace(v) != "" {
		d, err := time.ParseDuration(strings.TrimSpace(v))
		if err != nil {
			return Policy{}, fmt.Errorf("%w: %s: %v", ErrInvalidPolicy, EnvTimeout, err)
		}
		p.Timeout = d
	}
	if v, ok := lookup(EnvMaxDepth); ok && strings.TrimSpace(v) != "" {
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return Policy{}, fmt.Errorf("%w: %s: %v", ErrInvalidPolicy, EnvMaxDepth, err)
		}
		p.MaxDepth = n
	}
	if v, ok := lookup(EnvWorkers); ok && strings.TrimSpace(v) != "" {
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return Policy{}, fmt.Errorf("%w: %s: %v", ErrInvalidPolicy, EnvWorkers, err)
		}
		p.Workers = n
	}
	if v, ok := lookup(EnvLogFile); ok && strings.TrimSpace(v) != "" {
		p.LogFile = strings.TrimSpace(v)
	}
	return p, nil
}

// Validate rejects policies the engine cannot run with.
func (p Policy) Validate() error {
	switch {
	case p.Timeout <= 0:
		return fmt.Errorf("%w: timeout must be positive, got %s", ErrInvalidPolicy, p.Timeout)
	case p.MaxDepth < 0:
		return fmt.Errorf("%w: max_depth must not be negative, got %d", ErrInvalidPolicy, p.MaxDepth)
	case p.Workers < 1:
		return fmt.Errorf("%w: workers must be at least 1, got %d", ErrInvalidPolicy, p.Workers)
	case p.MinTermLength < 1:
		return fmt.Errorf("%w: min_term_length must be at least 1, got %d", ErrInvalidPolicy, p.MinTermLength)
	case p.DriveDepth < 0:
		return fmt.Errorf("%w: drive_depth must not be negative, got %d", ErrInvalidPolicy, p.DriveDepth)
	}
	return nil
}

// Terms normalises raw and enforces the minimum term length. Short terms
// would match half the disk.
func (p Policy) Terms(raw []string) (match.Terms, error) {
	terms := match.NewTerms(raw...)
	if terms.Len() == 0 {
		return match.Terms{}, fmt.Errorf("%w: at least one target term is required", ErrInvalidPolicy)
	}
	if n := terms.Shortest(); n < p.MinTermLength {
		return match.Terms{}, fmt.Errorf("%w: terms must be at least %d characters, shortest is %d",
			ErrInvalidPolicy, p.MinTermLength, n)
	}
	return terms, nil
}

// ProtectionRules returns the policy's rules plus the environment-derived
// never-delete roots.
func (p Policy) ProtectionRules() protect.Rules {
	return p.Protect.Merge(protect.Rules{Roots: GetNeverDeletePaths()})
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
