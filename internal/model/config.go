package model

import (
	"io"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/encoding/yaml"

	_ "embed"
)

const (
	ServerExperiment = "experiment"
	ServerDashboard  = "dashboard"

	LogStderr  = "stderr"
	LogStdout  = "stdout"
	LogDiscard = "discard"
)

//go:embed config.cue
var cueSource []byte

var (
	cueCtx *cue.Context
	schema cue.Value
)

func init() {
	if len(cueSource) == 0 {
		panic("variable cueSource is empty")
	}
	cueCtx = cuecontext.New()
	compiled := cueCtx.CompileBytes(cueSource)
	if compiled.Err() != nil {
		panic(compiled.Err())
	}

	schema = compiled.LookupPath(cue.ParsePath("#Config"))
	if schema.Err() != nil {
		panic(schema.Err())
	}
}

type Config struct {
	Version    int      `json:"version" yaml:"version"` // fixed 0 for now
	Service    Service  `json:"service" yaml:"service"`
	Experiment Server   `json:"experiment" yaml:"experiment"`
	Dashboard  Server   `json:"dashboard" yaml:"dashboard"`
	Database   Database `json:"database" yaml:"database"`
	Task       Task     `json:"task" yaml:"task"`
	Watch      Watch    `json:"watch" yaml:"watch"`
}

type Service struct {
	Verbose bool   `json:"verbose" yaml:"verbose"`
	Log     string `json:"log" yaml:"log"` // "stderr"|"stdout"|"discard"|path
}

// Server describes one supervised HTTP server.
type Server struct {
	Host     string `json:"host" yaml:"host"`
	Port     int    `json:"port" yaml:"port"`
	Route    string `json:"route" yaml:"route"`
	Launch   string `json:"launch,omitempty" yaml:"launch,omitempty"`       // shell command, empty => monitor only
	PIDRoute string `json:"pid_route,omitempty" yaml:"pid_route,omitempty"` // route returning the server pid
}

func (s Server) Endpoint() Endpoint {
	return Endpoint{Host: s.Host, Port: s.Port, Route: s.Route}
}

type Database struct {
	Path  string `json:"path" yaml:"path"`
	Table string `json:"table" yaml:"table"`
}

type Task struct {
	CodeVersion string `json:"code_version" yaml:"code_version"`
}

// Watch configures periodic status sweeps. Cron has a precedence over Every.
type Watch struct {
	Every       string `json:"every" yaml:"every"`
	Cron        string `json:"cron" yaml:"cron"`
	MetricsAddr string `json:"metrics_addr" yaml:"metrics_addr"`
}

// Servers returns configured servers by their names
func (c Config) Servers() map[string]Server {
	return map[string]Server{
		ServerExperiment: c.Experiment,
		ServerDashboard:  c.Dashboard,
	}
}

// DefaultConfig returns the configuration equal to an empty config file.
func DefaultConfig() Config {
	return Config{
		Version: 0,
		Service: Service{
			Verbose: false,
			Log:     LogStderr,
		},
		Experiment: Server{
			Host:     "localhost",
			Port:     22362,
			Route:    "",
			PIDRoute: "ppid",
		},
		Dashboard: Server{
			Host:  "localhost",
			Port:  22361,
			Route: "dashboard",
		},
		Database: Database{
			Path:  "participants.db",
			Table: "turkdemo",
		},
		Task: Task{
			CodeVersion: "1.0",
		},
		Watch: Watch{
			Every: "1m",
		},
	}
}

// LoadConfig validates YAML from r against CUE schema and decodes to Config.
func LoadConfig(r io.Reader) (Config, error) {
	yamlFile, err := yaml.Extract("psiturk.yaml", r)
	if err != nil {
		return Config{}, err
	}
	yamlValue := cueCtx.BuildFile(yamlFile)

	unified := schema.Unify(yamlValue)
	if err := unified.Validate(
		cue.All(),          // all constraints
		cue.Concrete(true), // no incomplete values
	); err != nil {
		return Config{}, err
	}

	var out Config
	if err := unified.Decode(&out); err != nil {
		return Config{}, err
	}

	return out, nil
}
