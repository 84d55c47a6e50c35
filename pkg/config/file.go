package config

import (
	"encoding/json"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	pkgerrors "github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/chargemon/chargemon/pkg/cycle"
	"github.com/chargemon/chargemon/pkg/ingest"
	"github.com/chargemon/chargemon/pkg/types"
	"github.com/chargemon/chargemon/pkg/utils/ptr"
)

var defaultFileConfig = &RawFileConfig{
	TargetVoltageV:        ptr.To(4.20),
	BatteryCapacityMah:    ptr.To(2000),
	Vref:                  ptr.To(4.20),
	Iref:                  ptr.To(1.0),
	SOCMinVoltageV:        ptr.To(cycle.DefaultMinVoltage),
	SampleIntervalSeconds: ptr.To(1),
	MQTTBroker:            ptr.To("tcp://127.0.0.1:1883"),
	ChargerTopic:          ptr.To(ingest.DefaultChargerTopic),
	TemperatureTopic:      ptr.To(ingest.DefaultTemperatureTopic),
	HistoryDBPath:         ptr.To("/var/lib/chargemon/history.db"),
	AllowNonRootAccess:    ptr.To(false),
}

var _ Config = &File{}

// File is a JSON-file-backed Config. Unset fields fall back to defaults,
// so a partially written (or empty) config file is always usable.
type File struct {
	c        *RawFileConfig
	mu       *sync.RWMutex
	filepath string
}

func NewFile(configPath string) (*File, error) {
	f := &File{
		filepath: configPath,
		mu:       &sync.RWMutex{},
	}
	if err := f.Load(); err != nil {
		return nil, err
	}

	return f, nil
}

func NewFileFromConfig(c *RawFileConfig, configPath string) *File {
	if c == nil {
		c = defaultFileConfig
	}

	return &File{
		c:        c,
		mu:       &sync.RWMutex{},
		filepath: configPath,
	}
}

type RawFileConfig struct {
	TargetVoltageV        *float64 `json:"targetVoltageV,omitempty"`
	BatteryCapacityMah    *int     `json:"batteryCapacityMah,omitempty"`
	Vref                  *float64 `json:"vref,omitempty"`
	Iref                  *float64 `json:"iref,omitempty"`
	SOCMinVoltageV        *float64 `json:"socMinVoltageV,omitempty"`
	SampleIntervalSeconds *int     `json:"sampleIntervalSeconds,omitempty"`
	MQTTBroker            *string  `json:"mqttBroker,omitempty"`
	ChargerTopic          *string  `json:"chargerTopic,omitempty"`
	TemperatureTopic      *string  `json:"temperatureTopic,omitempty"`
	HistoryDBPath         *string  `json:"historyDbPath,omitempty"`
	AllowNonRootAccess    *bool    `json:"allowNonRootAccess,omitempty"`
}

// value reads a field, falling back to the packaged default when unset.
func value[T any](field *T, def *T) T {
	if field != nil {
		return *field
	}
	return *def
}

func (f *File) TargetVoltageV() float64 {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return value(f.c.TargetVoltageV, defaultFileConfig.TargetVoltageV)
}

func (f *File) BatteryCapacityMah() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return value(f.c.BatteryCapacityMah, defaultFileConfig.BatteryCapacityMah)
}

func (f *File) Vref() float64 {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return value(f.c.Vref, defaultFileConfig.Vref)
}

func (f *File) Iref() float64 {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return value(f.c.Iref, defaultFileConfig.Iref)
}

func (f *File) SOCMinVoltageV() float64 {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return value(f.c.SOCMinVoltageV, defaultFileConfig.SOCMinVoltageV)
}

func (f *File) SampleInterval() time.Duration {
	f.mu.RLock()
	defer f.mu.RUnlock()
	secs := value(f.c.SampleIntervalSeconds, defaultFileConfig.SampleIntervalSeconds)
	if secs <= 0 {
		secs = 1
	}
	return time.Duration(secs) * time.Second
}

func (f *File) MQTTBroker() string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return value(f.c.MQTTBroker, defaultFileConfig.MQTTBroker)
}

func (f *File) ChargerTopic() string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return value(f.c.ChargerTopic, defaultFileConfig.ChargerTopic)
}

func (f *File) TemperatureTopic() string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return value(f.c.TemperatureTopic, defaultFileConfig.TemperatureTopic)
}

func (f *File) HistoryDBPath() string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return value(f.c.HistoryDBPath, defaultFileConfig.HistoryDBPath)
}

func (f *File) AllowNonRootAccess() bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return value(f.c.AllowNonRootAccess, defaultFileConfig.AllowNonRootAccess)
}

func (f *File) SetAllowNonRootAccess(allow bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.c.AllowNonRootAccess = &allow
}

func (f *File) CycleConfig() types.CycleConfig {
	return types.CycleConfig{
		TargetVoltageV:     f.TargetVoltageV(),
		BatteryCapacityMah: f.BatteryCapacityMah(),
		Vref:               f.Vref(),
		Iref:               f.Iref(),
	}
}

// SetCycleConfig stores new cycle parameters. Zero Vref/Iref are
// auto-derived from the capacity, the way the configuration screen
// pre-fills them.
func (f *File) SetCycleConfig(c types.CycleConfig) {
	if c.Vref == 0 || c.Iref == 0 {
		vref, iref := cycle.DeriveSetpoints(c.BatteryCapacityMah)
		if c.Vref == 0 {
			c.Vref = vref
		}
		if c.Iref == 0 {
			c.Iref = iref
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.c.TargetVoltageV = &c.TargetVoltageV
	f.c.BatteryCapacityMah = &c.BatteryCapacityMah
	f.c.Vref = &c.Vref
	f.c.Iref = &c.Iref
}

func (f *File) Load() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	fp, err := os.Open(f.filepath)
	if err != nil {
		if os.IsNotExist(err) {
			// If the file does not exist, return the empty config.
			// Do not make f.c a nil.
			f.c = &RawFileConfig{}
			return nil
		}
		return pkgerrors.Wrapf(err, "failed to open file %s", f.filepath)
	}
	defer func(fp *os.File) {
		if err := fp.Close(); err != nil {
			logrus.Warnf("failed to close file %s", f.filepath)
		}
	}(fp)

	b, err := io.ReadAll(fp)
	if err != nil {
		return pkgerrors.Wrapf(err, "failed to read file %s", f.filepath)
	}

	if strings.TrimSpace(string(b)) == "" {
		// An empty file also means the empty config.
		f.c = &RawFileConfig{}
		return nil
	}

	conf := RawFileConfig{}
	if err := json.Unmarshal(b, &conf); err != nil {
		return pkgerrors.Wrapf(err, "failed to unmarshal config from file %s", f.filepath)
	}
	f.c = &conf

	return nil
}

func (f *File) Save() error {
	f.mu.RLock()
	defer f.mu.RUnlock()

	if f.c == nil {
		return pkgerrors.New("config is nil")
	}

	fp, err := os.OpenFile(f.filepath, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return pkgerrors.Wrapf(err, "failed to open file %s", f.filepath)
	}
	defer func(fp *os.File) {
		if err := fp.Close(); err != nil {
			logrus.Warnf("failed to close file %s", f.filepath)
		}
	}(fp)

	enc := json.NewEncoder(fp)
	enc.SetIndent("", "  ")
	if err := enc.Encode(f.c); err != nil {
		return pkgerrors.Wrapf(err, "failed to encode config to file %s", f.filepath)
	}

	return nil
}

func (f *File) LogrusFields() logrus.Fields {
	return logrus.Fields{
		"targetVoltageV":     f.TargetVoltageV(),
		"batteryCapacityMah": f.BatteryCapacityMah(),
		"vref":               f.Vref(),
		"iref":               f.Iref(),
		"socMinVoltageV":     f.SOCMinVoltageV(),
		"sampleInterval":     f.SampleInterval().String(),
		"mqttBroker":         f.MQTTBroker(),
		"historyDbPath":      f.HistoryDBPath(),
	}
}
