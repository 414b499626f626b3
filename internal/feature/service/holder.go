package service

import (
	"context"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/denhac/memberbridge/internal/config"
	"github.com/denhac/memberbridge/internal/feature/domain"
	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const (
	configName = "flags"
	envPrefix  = "MEMBERBRIDGE"
	keyPrefix  = "flags."
)

type Params struct {
	fx.In

	Config config.Config
	Log    *zap.Logger
}

// Holder serves flags from flags.yml with MEMBERBRIDGE_FLAGS_* env overrides.
// The file is watched and a valid edit replaces the snapshot. Values set
// through Set survive reloads until the process exits.
type Holder struct {
	v   *viper.Viper
	log *zap.Logger

	current atomic.Value // holds map[domain.Flag]bool

	mu        sync.Mutex
	overrides map[domain.Flag]bool
}

func NewHolder(p Params) (*Holder, error) {
	log := p.Log.Named("feature.flags")

	v := viper.New()
	if path := strings.TrimSpace(p.Config.FlagsFile); path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName(configName)
		v.SetConfigType("yml")
		v.AddConfigPath("/etc/memberbridge")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for _, flag := range domain.Flags() {
		v.SetDefault(keyPrefix+string(flag), false)
	}

	watch := true
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
		watch = false
		log.Info("no flags file found, using defaults and environment")
	}

	h := &Holder{
		v:         v,
		log:       log,
		overrides: map[domain.Flag]bool{},
	}
	h.reload()

	if watch {
		v.OnConfigChange(func(e fsnotify.Event) {
			h.reload()
			h.log.Info("flags reloaded", zap.String("file", filepath.Base(e.Name)))
		})
		v.WatchConfig()
	}

	return h, nil
}

func (h *Holder) IsEnabled(flag domain.Flag) bool {
	return h.load()[flag]
}

func (h *Holder) Snapshot() map[domain.Flag]bool {
	return snapshotOf(h.load())
}

// Set overrides a flag in memory. The file is left untouched.
func (h *Holder) Set(_ context.Context, flag domain.Flag, enabled bool) error {
	if !flag.Known() {
		return domain.ErrUnknownFlag
	}

	h.mu.Lock()
	h.overrides[flag] = enabled
	h.mu.Unlock()

	h.reload()
	h.log.Info("flag set",
		zap.String("flag", string(flag)),
		zap.Bool("enabled", enabled),
	)
	return nil
}

func (h *Holder) load() map[domain.Flag]bool {
	flags, _ := h.current.Load().(map[domain.Flag]bool)
	return flags
}

func (h *Holder) reload() {
	h.mu.Lock()
	defer h.mu.Unlock()

	next := make(map[domain.Flag]bool, len(domain.Flags()))
	for _, flag := range domain.Flags() {
		next[flag] = h.v.GetBool(keyPrefix + string(flag))
	}
	for flag, enabled := range h.overrides {
		next[flag] = enabled
	}
	h.current.Store(next)
}
