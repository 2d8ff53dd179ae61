// Package config loads the description of a simulated system from YAML files
// and the environment.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/Shihao-Song/Pin-Tools/mem/hierarchy"
	"github.com/Shihao-Song/Pin-Tools/mem/mem"
	"github.com/Shihao-Song/Pin-Tools/mem/vm/mmu"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// EnvPrefix is the prefix of the environment variables that override the
// configuration.
const EnvPrefix = "DATATRACE_"

// Associativity is the number of ways of a cache, or FullyAssociative,
// written as "full" in files. Zero means that it is not set.
type Associativity int

// FullyAssociative is the associativity of a fully associative cache.
const FullyAssociative Associativity = -1

// UnmarshalYAML accepts an integer or "full".
func (a *Associativity) UnmarshalYAML(value *yaml.Node) error {
	v, err := parseAssociativity(value.Value)
	if err != nil {
		return fmt.Errorf("line %d: %w", value.Line, err)
	}

	*a = v

	return nil
}

// MarshalYAML writes "full" for a fully associative cache.
func (a Associativity) MarshalYAML() (any, error) {
	if a == FullyAssociative {
		return "full", nil
	}

	return int(a), nil
}

func (a Associativity) String() string {
	if a == FullyAssociative {
		return "full"
	}

	return strconv.Itoa(int(a))
}

func parseAssociativity(s string) (Associativity, error) {
	if strings.EqualFold(s, "full") {
		return FullyAssociative, nil
	}

	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid associativity %q", s)
	}

	return Associativity(n), nil
}

// Cache describes one cache level.
type Cache struct {
	Name    string        `yaml:"name"`
	Enabled bool          `yaml:"enabled"`
	SizeKB  uint64        `yaml:"size_kb"`
	Assoc   Associativity `yaml:"assoc"`
	Shared  bool          `yaml:"shared"`
}

// UnmarshalYAML decodes a cache. A cache is enabled unless the file says
// otherwise.
func (c *Cache) UnmarshalYAML(value *yaml.Node) error {
	type plain Cache

	p := plain{Enabled: true}
	if err := value.Decode(&p); err != nil {
		return err
	}

	*c = Cache(p)

	return nil
}

// Config describes a simulated system.
type Config struct {
	NumCores         int        `yaml:"num_cores"`
	BlockSize        uint64     `yaml:"block_size"`
	Translation      mmu.Policy `yaml:"translation"`
	PhysicalMemoryGB uint64     `yaml:"physical_memory_gb"`
	Seed             uint64     `yaml:"seed"`
	DataAware        bool       `yaml:"data_aware"`
	PhaseLength      uint64     `yaml:"phase_length"`
	Caches           []Cache    `yaml:"caches"`
}

// Default returns the configuration of a single core with a private L1D and
// L2 and a shared L3.
func Default() Config {
	return Config{
		NumCores:         1,
		BlockSize:        64,
		Translation:      mmu.PolicyRandom,
		PhysicalMemoryGB: 128,
		Caches: []Cache{
			{Name: "L1D", Enabled: true, SizeKB: 32, Assoc: 8},
			{Name: "L2", Enabled: true, SizeKB: 256, Assoc: 8},
			{Name: "L3", Enabled: true, SizeKB: 8192, Assoc: 16, Shared: true},
		},
	}
}

// Load reads a configuration file. Fields missing from the file keep their
// default values.
func Load(path string) (Config, error) {
	c := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return c, fmt.Errorf("reading config: %w", err)
	}

	if err := Parse(data, &c); err != nil {
		return c, fmt.Errorf("parsing %s: %w", path, err)
	}

	return c, nil
}

// Parse decodes YAML into c. Unknown fields are errors.
func Parse(data []byte, c *Config) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	err := dec.Decode(c)
	if err != nil && !errors.Is(err, io.EOF) {
		return err
	}

	return nil
}

// Marshal encodes the configuration as YAML.
func (c Config) Marshal() ([]byte, error) {
	return yaml.Marshal(c)
}

// LoadEnvFile loads a .env file into the environment. A missing file is not
// an error.
func LoadEnvFile(path string) error {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil
	}

	return godotenv.Load(path)
}

// ApplyEnv overrides fields with DATATRACE_* environment variables.
func (c *Config) ApplyEnv() error {
	var errs []error

	if v, ok := lookup("NUM_CORES"); ok {
		n, err := strconv.Atoi(v)
		errs = append(errs, envErr("NUM_CORES", err))
		c.NumCores = n
	}

	parseUint := func(name string, dst *uint64) {
		v, ok := lookup(name)
		if !ok {
			return
		}

		n, err := strconv.ParseUint(v, 0, 64)
		errs = append(errs, envErr(name, err))
		*dst = n
	}

	parseUint("BLOCK_SIZE", &c.BlockSize)
	parseUint("PHYSICAL_MEMORY_GB", &c.PhysicalMemoryGB)
	parseUint("SEED", &c.Seed)
	parseUint("PHASE_LENGTH", &c.PhaseLength)

	if v, ok := lookup("TRANSLATION"); ok {
		c.Translation = mmu.Policy(v)
	}

	if v, ok := lookup("DATA_AWARE"); ok {
		b, err := strconv.ParseBool(v)
		errs = append(errs, envErr("DATA_AWARE", err))
		c.DataAware = b
	}

	return errors.Join(errs...)
}

func lookup(name string) (string, bool) {
	return os.LookupEnv(EnvPrefix + name)
}

func envErr(name string, err error) error {
	if err == nil {
		return nil
	}

	return fmt.Errorf("%s%s: %w", EnvPrefix, name, err)
}

// EnabledCaches returns the enabled levels from the top to the bottom.
func (c Config) EnabledCaches() []Cache {
	var caches []Cache

	for _, cache := range c.Caches {
		if cache.Enabled {
			caches = append(caches, cache)
		}
	}

	return caches
}

// Validate reports every problem of the configuration.
func (c Config) Validate() error {
	var errs []error

	if c.NumCores <= 0 {
		errs = append(errs, fmt.Errorf("num_cores must be positive, got %d",
			c.NumCores))
	}

	if !mem.IsPowerOfTwo(c.BlockSize) || c.BlockSize > 4096 {
		errs = append(errs, fmt.Errorf(
			"block_size must be a power of two no larger than 4096, got %d",
			c.BlockSize))
	}

	if c.Translation != mmu.PolicyRandom && c.Translation != mmu.PolicyDemand {
		errs = append(errs, fmt.Errorf(
			"translation must be %q or %q, got %q",
			mmu.PolicyRandom, mmu.PolicyDemand, c.Translation))
	}

	if c.Translation == mmu.PolicyDemand && c.PhysicalMemoryGB == 0 {
		errs = append(errs, errors.New("physical_memory_gb must be positive"))
	}

	errs = append(errs, c.validateCaches()...)

	return errors.Join(errs...)
}

func (c Config) validateCaches() []error {
	var errs []error

	caches := c.EnabledCaches()
	if len(caches) == 0 {
		return []error{errors.New("at least one cache must be enabled")}
	}

	names := make(map[string]bool)
	seenShared := false

	for _, cache := range caches {
		if cache.Name == "" {
			errs = append(errs, errors.New("cache without a name"))
		} else if names[cache.Name] {
			errs = append(errs, fmt.Errorf("duplicated cache %s", cache.Name))
		}

		names[cache.Name] = true

		errs = append(errs, c.validateGeometry(cache))

		if cache.Shared {
			seenShared = true
		} else if seenShared {
			errs = append(errs, fmt.Errorf(
				"private cache %s is below a shared cache", cache.Name))
		}
	}

	lowest := caches[len(caches)-1]
	if c.DataAware && c.NumCores > 1 && !lowest.Shared {
		errs = append(errs, errors.New(
			"data_aware with several cores requires a shared last level"))
	}

	return errs
}

func (c Config) validateGeometry(cache Cache) error {
	size := cache.SizeKB * mem.KB
	if size == 0 || c.BlockSize == 0 {
		return fmt.Errorf("cache %s: size_kb must be positive", cache.Name)
	}

	if size%c.BlockSize != 0 {
		return fmt.Errorf("cache %s: size is not a multiple of the block size",
			cache.Name)
	}

	switch {
	case cache.Assoc == FullyAssociative:
		return nil
	case cache.Assoc <= 0:
		return fmt.Errorf("cache %s: assoc is missing", cache.Name)
	}

	numBlocks := size / c.BlockSize
	ways := uint64(cache.Assoc)

	if numBlocks%ways != 0 || !mem.IsPowerOfTwo(numBlocks/ways) {
		return fmt.Errorf("cache %s: %d blocks cannot form %d-way sets "+
			"of a power-of-two count", cache.Name, numBlocks, ways)
	}

	return nil
}

// HierarchyBuilder turns the configuration into a system builder.
func (c Config) HierarchyBuilder() hierarchy.Builder {
	m := mmu.MakeBuilder().
		WithNumCores(c.NumCores).
		WithPolicy(c.Translation).
		WithPhysicalMemorySize(c.PhysicalMemoryGB * mem.GB).
		WithSeed(c.Seed).
		Build()

	b := hierarchy.MakeBuilder().
		WithNumCores(c.NumCores).
		WithBlockSize(c.BlockSize).
		WithMMU(m).
		WithDataAware(c.DataAware).
		WithPhaseLength(c.PhaseLength)

	for _, cache := range c.EnabledCaches() {
		b = b.WithLevel(hierarchy.LevelSpec{
			Name:             cache.Name,
			ByteSize:         cache.SizeKB * mem.KB,
			WayAssociativity: int(cache.Assoc),
			FullyAssociative: cache.Assoc == FullyAssociative,
			Shared:           cache.Shared,
		})
	}

	return b
}
