package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	platstrings "kycdesk/pkg/platform/strings"
)

type sourcesFile struct {
	Sources    SourcesConfig                 `yaml:"sources"`
	Resilience map[string]ResilienceOverride `yaml:"resilience"`
}

// overlayFile reads a YAML file and overrides every non-zero field it sets.
//
//	sources:
//	  brasilapi_base_url: https://brasilapi.internal
//	  source_timeout: 10s
//	  disabled_sources: [receitaws_cnpj]
//	resilience:
//	  transparencia_ceis:
//	    retry_max_attempts: 1
//	    breaker_open_timeout: 2m
func (c *Config) overlayFile(path string) error {
	data, err := os.ReadFile(path) //nolint:gosec // operator supplied path
	if err != nil {
		return fmt.Errorf("reading sources file: %w", err)
	}
	var f sourcesFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("parsing sources YAML: %w", err)
	}
	c.Sources.overlay(f.Sources)
	if len(f.Resilience) > 0 {
		c.Resilience.Overrides = make(map[string]ResilienceOverride, len(f.Resilience))
		for site, o := range f.Resilience {
			c.Resilience.Overrides[strings.TrimSpace(site)] = o
		}
	}
	return nil
}

func (s *SourcesConfig) overlay(o SourcesConfig) {
	if o.BrasilAPIBaseURL != "" {
		s.BrasilAPIBaseURL = o.BrasilAPIBaseURL
	}
	if o.ReceitaWSBaseURL != "" {
		s.ReceitaWSBaseURL = o.ReceitaWSBaseURL
	}
	if o.ViaCEPBaseURL != "" {
		s.ViaCEPBaseURL = o.ViaCEPBaseURL
	}
	if o.TransparenciaBaseURL != "" {
		s.TransparenciaBaseURL = o.TransparenciaBaseURL
	}
	if o.TransparenciaRate > 0 {
		s.TransparenciaRate = o.TransparenciaRate
	}
	if o.SourceTimeout > 0 {
		s.SourceTimeout = o.SourceTimeout
	}
	if o.AggregateTimeout > 0 {
		s.AggregateTimeout = o.AggregateTimeout
	}
	if o.CacheTTL > 0 {
		s.CacheTTL = o.CacheTTL
	}
	if len(o.DisabledSources) > 0 {
		s.DisabledSources = platstrings.DedupeFold(o.DisabledSources)
	}
}
