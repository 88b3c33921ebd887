// Package config resolves the generator's configuration in priority order:
// built-in defaults, then an optional YAML file. The built-in event
// vocabulary is deliberately not configurable; it is fixed by the host
// runtime the generated code binds to.
package config

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config is the resolved generator configuration.
type Config struct {
	// Container is the designated container class name the syntactic
	// filter accepts.
	Container string

	// Marker is the attribute designating a delegate as an event handler.
	Marker string

	// HandlerSuffix is the required handler-name suffix; the derived event
	// name is the handler name with this suffix stripped.
	HandlerSuffix string

	// RootArtifact is the base name of the designated root artifact. Only
	// the root fragment carries connect/disconnect and the lookup tables.
	RootArtifact string

	// Dispatch is the fixed dispatch entry point generated closures call.
	Dispatch string

	// Include holds the glob patterns, relative to the work dir, that
	// enumerate candidate source artifacts.
	Include []string

	// OutputDir receives generated fragments, relative to the work dir
	// unless absolute.
	OutputDir string

	// OutputSuffix replaces the artifact's ".cs" extension on output.
	OutputSuffix string

	// CacheDir holds the extraction cache, relative to the work dir unless
	// absolute.
	CacheDir string

	// Concurrency bounds the extraction worker pool.
	Concurrency int
}

// configFile mirrors the YAML schema. It is separate from Config so the
// file format can stay stable while resolved fields evolve.
type configFile struct {
	Generator struct {
		Container     string `yaml:"container"`
		Marker        string `yaml:"marker"`
		HandlerSuffix string `yaml:"handler_suffix"`
		RootArtifact  string `yaml:"root_artifact"`
		Dispatch      string `yaml:"dispatch"`
	} `yaml:"generator"`
	Source struct {
		Include []string `yaml:"include"`
	} `yaml:"source"`
	Output struct {
		Dir    string `yaml:"dir"`
		Suffix string `yaml:"suffix"`
	} `yaml:"output"`
	Cache struct {
		Dir string `yaml:"dir"`
	} `yaml:"cache"`
	Concurrency int `yaml:"concurrency"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Container:     "Behavior",
		Marker:        "Signal",
		HandlerSuffix: "EventHandler",
		RootArtifact:  "Behavior.cs",
		Dispatch:      "OnSignal",
		Include:       []string{"**/*.cs"},
		OutputDir:     "generated",
		OutputSuffix:  ".g.cs",
		CacheDir:      ".behaviorgen",
		Concurrency:   4,
	}
}

// Load resolves configuration from defaults overlaid with the YAML file at
// path. A missing file is not an error when path is empty; a named file
// that cannot be read or parsed is.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("reading config file: %w", err)
	}

	var f configFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return Config{}, fmt.Errorf("parsing config file: %w", err)
	}

	if f.Generator.Container != "" {
		cfg.Container = f.Generator.Container
	}
	if f.Generator.Marker != "" {
		cfg.Marker = f.Generator.Marker
	}
	if f.Generator.HandlerSuffix != "" {
		cfg.HandlerSuffix = f.Generator.HandlerSuffix
	}
	if f.Generator.RootArtifact != "" {
		cfg.RootArtifact = f.Generator.RootArtifact
	}
	if f.Generator.Dispatch != "" {
		cfg.Dispatch = f.Generator.Dispatch
	}
	if len(f.Source.Include) > 0 {
		cfg.Include = f.Source.Include
	}
	if f.Output.Dir != "" {
		cfg.OutputDir = f.Output.Dir
	}
	if f.Output.Suffix != "" {
		cfg.OutputSuffix = f.Output.Suffix
	}
	if f.Cache.Dir != "" {
		cfg.CacheDir = f.Cache.Dir
	}
	if f.Concurrency > 0 {
		cfg.Concurrency = f.Concurrency
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects configurations that cannot drive a coherent generation.
func (c Config) Validate() error {
	if c.Container == "" {
		return fmt.Errorf("config: container name is required")
	}
	if c.Marker == "" {
		return fmt.Errorf("config: marker attribute is required")
	}
	if c.HandlerSuffix == "" {
		return fmt.Errorf("config: handler suffix is required")
	}
	if c.RootArtifact == "" {
		return fmt.Errorf("config: root artifact is required")
	}
	if c.Dispatch == "" {
		return fmt.Errorf("config: dispatch entry point is required")
	}
	if len(c.Include) == 0 {
		return fmt.Errorf("config: at least one include pattern is required")
	}
	for _, p := range c.Include {
		if strings.Count(p, "**") > 1 {
			return fmt.Errorf("config: include pattern %q has more than one \"**\" segment", p)
		}
		// A malformed glob would otherwise match nothing, silently.
		if _, err := path.Match(p, "x"); err != nil {
			return fmt.Errorf("config: invalid include pattern %q: %w", p, err)
		}
	}
	if c.Concurrency <= 0 {
		return fmt.Errorf("config: concurrency must be > 0")
	}
	return nil
}

// Fingerprint returns a deterministic hash of every field that affects
// extraction or emission semantics. It is mixed into artifact hashes so a
// config change invalidates cached extractions.
func (c Config) Fingerprint() string {
	h := sha256.New()

	writeField := func(data string) {
		length := uint64(len(data))
		h.Write([]byte{
			byte(length >> 56),
			byte(length >> 48),
			byte(length >> 40),
			byte(length >> 32),
			byte(length >> 24),
			byte(length >> 16),
			byte(length >> 8),
			byte(length),
		})
		h.Write([]byte(data))
	}

	writeField(c.Container)
	writeField(c.Marker)
	writeField(c.HandlerSuffix)
	writeField(c.RootArtifact)
	writeField(c.Dispatch)
	writeField(c.OutputSuffix)

	include := make([]string, len(c.Include))
	copy(include, c.Include)
	sort.Strings(include)
	writeField(fmt.Sprintf("%d", len(include)))
	for _, p := range include {
		writeField(p)
	}

	return hex.EncodeToString(h.Sum(nil))
}
