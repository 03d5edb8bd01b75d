// Package idgen assigns message identifiers at the moment the gateway accepts
// a frame. The id travels with the relay record and is the store's dedup key.
package idgen

import (
	"crypto/rand"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/nrednav/cuid2"
	"github.com/oklog/ulid/v2"
	"github.com/segmentio/ksuid"
)

// Strategy names.
const (
	StrategyUUID      = "uuid"
	StrategyULID      = "ulid"
	StrategyKSUID     = "ksuid"
	StrategyNanoID    = "nanoid"
	StrategyCUID2     = "cuid2"
	StrategySnowflake = "snowflake"
)

const (
	DefaultNanoIDSize     = 21
	DefaultNanoIDAlphabet = "_-0123456789abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ"
	DefaultCUID2Length    = 24
	DefaultSnowflakeEpoch = 1704067200000 // 2024-01-01T00:00:00Z
)

// Generator produces unique string identifiers.
type Generator interface {
	Generate() (string, error)
}

// Config selects and tunes a strategy.
type Config struct {
	Strategy       string `mapstructure:"strategy"`
	MachineID      int64  `mapstructure:"machine_id"`
	Epoch          int64  `mapstructure:"epoch"`
	NanoIDSize     int    `mapstructure:"nanoid_size"`
	NanoIDAlphabet string `mapstructure:"nanoid_alphabet"`
	CUID2Length    int    `mapstructure:"cuid2_length"`
}

// New builds the generator named by cfg.Strategy. ULID is the default: ids
// sort by acceptance time, which keeps history scans cheap.
func New(cfg Config) (Generator, error) {
	switch strings.ToLower(cfg.Strategy) {
	case "", StrategyULID:
		return newULIDGenerator(), nil
	case StrategyUUID:
		return uuidGenerator{}, nil
	case StrategyKSUID:
		return ksuidGenerator{}, nil
	case StrategyNanoID:
		size, alphabet := cfg.NanoIDSize, cfg.NanoIDAlphabet
		if size <= 0 {
			size = DefaultNanoIDSize
		}
		if alphabet == "" {
			alphabet = DefaultNanoIDAlphabet
		}
		return nanoidGenerator{size: size, alphabet: alphabet}, nil
	case StrategyCUID2:
		length := cfg.CUID2Length
		if length == 0 {
			length = DefaultCUID2Length
		}
		if length < 2 || length > 32 {
			return nil, fmt.Errorf("cuid2 length must be between 2 and 32, got %d", length)
		}
		gen, err := cuid2.Init(cuid2.WithLength(length))
		if err != nil {
			return nil, fmt.Errorf("failed to init CUID2 generator: %w", err)
		}
		return cuid2Generator(gen), nil
	case StrategySnowflake:
		epoch := cfg.Epoch
		if epoch == 0 {
			epoch = DefaultSnowflakeEpoch
		}
		return NewSnowflake(cfg.MachineID, epoch)
	default:
		return nil, fmt.Errorf("unknown id strategy: %s", cfg.Strategy)
	}
}

type uuidGenerator struct{}

func (uuidGenerator) Generate() (string, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return "", fmt.Errorf("failed to generate UUID: %w", err)
	}
	return id.String(), nil
}

// ulidGenerator draws from monotonic entropy, so ids minted in the same
// millisecond still sort in generation order.
type ulidGenerator struct {
	mu      sync.Mutex
	entropy *ulid.MonotonicEntropy
}

func newULIDGenerator() *ulidGenerator {
	return &ulidGenerator{entropy: ulid.Monotonic(rand.Reader, 0)}
}

func (g *ulidGenerator) Generate() (string, error) {
	g.mu.Lock()
	id, err := ulid.New(ulid.Timestamp(time.Now()), g.entropy)
	g.mu.Unlock()
	if err != nil {
		return "", fmt.Errorf("failed to generate ULID: %w", err)
	}
	return id.String(), nil
}

type ksuidGenerator struct{}

func (ksuidGenerator) Generate() (string, error) {
	id, err := ksuid.NewRandom()
	if err != nil {
		return "", fmt.Errorf("failed to generate KSUID: %w", err)
	}
	return id.String(), nil
}

type nanoidGenerator struct {
	size     int
	alphabet string
}

func (g nanoidGenerator) Generate() (string, error) {
	id, err := gonanoid.Generate(g.alphabet, g.size)
	if err != nil {
		return "", fmt.Errorf("failed to generate NanoID: %w", err)
	}
	return id, nil
}

type cuid2Generator func() string

func (g cuid2Generator) Generate() (string, error) {
	return g(), nil
}
