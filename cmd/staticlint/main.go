// Command staticlint is the project's multichecker. It runs a fixed set of
// go/analysis passes, the ineffassign and nilerr analyzers, the project's
// noosexit analyzer and the staticcheck analyzers enabled in config.json.
//
// config.json is looked up next to the binary:
//
//	{"Staticcheck": ["SA1000", "SA4006"]}
//
// When it is missing every SA analyzer is enabled.
package main

import (
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/gordonklaus/ineffassign/pkg/ineffassign"
	"github.com/gostaticanalysis/nilerr"
	"golang.org/x/tools/go/analysis"
	"golang.org/x/tools/go/analysis/multichecker"
	"golang.org/x/tools/go/analysis/passes/copylock"
	"golang.org/x/tools/go/analysis/passes/errorsas"
	"golang.org/x/tools/go/analysis/passes/httpresponse"
	"golang.org/x/tools/go/analysis/passes/loopclosure"
	"golang.org/x/tools/go/analysis/passes/lostcancel"
	"golang.org/x/tools/go/analysis/passes/nilness"
	"golang.org/x/tools/go/analysis/passes/printf"
	"golang.org/x/tools/go/analysis/passes/structtag"
	"golang.org/x/tools/go/analysis/passes/unmarshal"
	"golang.org/x/tools/go/analysis/passes/unreachable"
	"honnef.co/go/tools/staticcheck"

	"github.com/patric-chuzhbe/vidlib/cmd/staticlint/noosexit"
)

// Config is the name of the JSON configuration file that lists enabled staticcheck analyzers.
const Config = `config.json`

// ConfigData describes the structure of the configuration file.
type ConfigData struct {
	Staticcheck []string
}

func loadConfig() (ConfigData, error) {
	appfile, err := os.Executable()
	if err != nil {
		return ConfigData{}, err
	}

	data, err := os.ReadFile(filepath.Join(filepath.Dir(appfile), Config))
	if errors.Is(err, fs.ErrNotExist) {
		return ConfigData{}, nil
	}
	if err != nil {
		return ConfigData{}, err
	}

	var cfg ConfigData
	if err = json.Unmarshal(data, &cfg); err != nil {
		return ConfigData{}, err
	}

	return cfg, nil
}

func enabledStaticchecks(cfg ConfigData) []*analysis.Analyzer {
	checks := make(map[string]bool)
	for _, v := range cfg.Staticcheck {
		checks[v] = true
	}

	var result []*analysis.Analyzer
	for _, v := range staticcheck.Analyzers {
		name := v.Analyzer.Name
		if checks[name] || (len(checks) == 0 && strings.HasPrefix(name, "SA")) {
			result = append(result, v.Analyzer)
		}
	}

	return result
}

func main() {
	cfg, err := loadConfig()
	if err != nil {
		panic(err)
	}

	myChecks := []*analysis.Analyzer{
		copylock.Analyzer,
		errorsas.Analyzer,
		httpresponse.Analyzer,
		loopclosure.Analyzer,
		lostcancel.Analyzer,
		nilness.Analyzer,
		printf.Analyzer,
		structtag.Analyzer,
		unmarshal.Analyzer,
		unreachable.Analyzer,

		ineffassign.Analyzer,
		nilerr.Analyzer,

		noosexit.Analyzer,
	}
	myChecks = append(myChecks, enabledStaticchecks(cfg)...)

	multichecker.Main(myChecks...)
}
