package dragonkeep

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/pelletier/go-toml"

	"github.com/dragonkeep/server/core/wal"
)

// UserConfig is the TOML-serializable surface cmd/dragonkeepd loads from
// disk: a plain nested struct with no tags (go-toml matches by field
// name), converted to a Config via a single Config method.
type UserConfig struct {
	Server struct {
		TickRate int
	}
	World struct {
		Seed             int64
		Folder           string
		SaveData         bool
		LoadRadius       int32
		UnloadRadius     int32
		GenBudgetPerTick int
	}
	WAL struct {
		Folder        string
		RingBufferSize int
		MaxBatchSize   int
	}
	Reactor struct {
		StalkThreshold   float64
		InfernoThreshold float64
	}
	Combat struct {
		MoveSpeed        float64
		JumpVelocity     float64
		AttackRange      float64
		AttackConeCosine float64
		BreakRange       float64
	}
}

// DefaultUserConfig returns the values a freshly created dragonkeepd.toml
// should contain.
func DefaultUserConfig() UserConfig {
	var uc UserConfig
	uc.Server.TickRate = 60
	uc.World.Folder = "world"
	uc.World.SaveData = true
	uc.World.LoadRadius = 8
	uc.World.UnloadRadius = 12
	uc.World.GenBudgetPerTick = 4
	uc.WAL.Folder = "wal"
	uc.Reactor.StalkThreshold = 10
	uc.Reactor.InfernoThreshold = 50
	uc.Combat.MoveSpeed = 4.3
	uc.Combat.JumpVelocity = 8.4
	uc.Combat.AttackRange = 3.5
	uc.Combat.AttackConeCosine = 0.85
	uc.Combat.BreakRange = 5.5
	return uc
}

// LoadUserConfig reads and decodes the TOML file at path, creating it with
// DefaultUserConfig's values if it does not yet exist.
func LoadUserConfig(path string) (UserConfig, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		uc := DefaultUserConfig()
		encoded, merr := toml.Marshal(uc)
		if merr != nil {
			return UserConfig{}, fmt.Errorf("marshal default config: %w", merr)
		}
		if werr := os.WriteFile(path, encoded, 0644); werr != nil {
			return UserConfig{}, fmt.Errorf("write default config: %w", werr)
		}
		return uc, nil
	}
	if err != nil {
		return UserConfig{}, fmt.Errorf("read config: %w", err)
	}
	uc := DefaultUserConfig()
	if err := toml.Unmarshal(data, &uc); err != nil {
		return UserConfig{}, fmt.Errorf("decode config: %w", err)
	}
	return uc, nil
}

// Config converts uc into a Config ready for New.
func (uc UserConfig) Config(log *slog.Logger) Config {
	conf := Config{
		Log:                 log,
		TickRate:            uc.Server.TickRate,
		EconomyTickInterval: int64(uc.Server.TickRate),
	}
	conf.WAL = wal.Config{
		Log:            log,
		Path:           uc.WAL.Folder + "/dragonkeep.wal",
		RingBufferSize: uc.WAL.RingBufferSize,
		MaxBatchSize:   uc.WAL.MaxBatchSize,
	}
	conf.Reactor.StalkThreshold = uc.Reactor.StalkThreshold
	conf.Reactor.InfernoThreshold = uc.Reactor.InfernoThreshold
	conf.MoveSpeed = uc.Combat.MoveSpeed
	conf.JumpVelocity = uc.Combat.JumpVelocity
	conf.AttackRange = uc.Combat.AttackRange
	conf.AttackConeCosine = uc.Combat.AttackConeCosine
	conf.BreakRange = uc.Combat.BreakRange
	conf.World.LoadRadius = uc.World.LoadRadius
	conf.World.UnloadRadius = uc.World.UnloadRadius
	conf.World.GenBudgetPerTick = uc.World.GenBudgetPerTick
	return conf
}
