package config

import (
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
)

// Validate checks the settings a command mode depends on. Modes: run,
// sources, fetch, report, serve.
func (c *Config) Validate(mode string) error {
	var errs []string

	switch mode {
	case "run":
		errs = append(errs, c.validateRun()...)
	case "sources":
		errs = append(errs, c.validateMunicipality()...)
	case "fetch":
		if c.Fetch.DestDir == "" {
			errs = append(errs, "fetch.dest_dir is required")
		}
		if len(c.Fetch.Sources) == 0 {
			errs = append(errs, "fetch.sources must list at least one source")
		}
		for i, s := range c.Fetch.Sources {
			if s.URL == "" {
				errs = append(errs, "fetch.sources["+strconv.Itoa(i)+"].url is required")
			}
		}
	case "report":
		if c.Output.Dir == "" {
			errs = append(errs, "output.dir is required")
		}
	case "serve":
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			errs = append(errs, "server.port must be > 0 and <= 65535")
		}
		if c.Server.DataDir == "" {
			errs = append(errs, "server.data_dir is required")
		}
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if len(errs) > 0 {
		return eris.Errorf("config: validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

func (c *Config) validateMunicipality() []string {
	var errs []string
	if len(c.Municipality.State) != 2 {
		errs = append(errs, "municipality.state must be a 2-digit key")
	}
	if len(c.Municipality.Code) != 3 {
		errs = append(errs, "municipality.code must be a 3-digit key")
	}
	if len(c.Municipality.HeadTown) != 4 {
		errs = append(errs, "municipality.head_town must be a 4-digit key")
	}
	return errs
}

func (c *Config) validateRun() []string {
	errs := c.validateMunicipality()

	if c.Growth.Urban <= 0 || c.Growth.Rural <= 0 {
		errs = append(errs, "growth factors must be > 0")
	}
	if len(c.Table.Encodings) == 0 {
		errs = append(errs, "table.encodings must not be empty")
	}
	if c.Topography.FallbackMax <= c.Topography.FallbackMin {
		errs = append(errs, "topography.fallback_max must exceed fallback_min")
	}
	switch c.Restrict.BufferMode {
	case "degrees", "metric":
	default:
		errs = append(errs, "restrict.buffer_mode must be degrees or metric")
	}
	if c.Restrict.QuadSegs < 1 {
		errs = append(errs, "restrict.quad_segs must be >= 1")
	}
	if c.Output.Dir == "" {
		errs = append(errs, "output.dir is required")
	}
	if len(c.Output.Formats) == 0 {
		errs = append(errs, "output.formats must not be empty")
	}
	for _, f := range c.Output.Formats {
		switch f {
		case "geojson", "gpkg", "shp":
		default:
			errs = append(errs, "unknown output format "+f)
		}
	}
	return errs
}
