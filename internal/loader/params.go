package loader

import (
	"os"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/mosaic/pkg/regional"
)

// paramFile is the on-disk shape of a per-region parameter file.
type paramFile struct {
	Default *float64           `yaml:"default"`
	Regions map[string]float64 `yaml:"regions"`
}

// Param reads a YAML parameter file into a scalar or per-region parameter.
// A file with only a default becomes a scalar; per-region entries override
// the default for the named regions.
func Param(path string) (regional.Param, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return regional.Param{}, eris.Wrapf(err, "loader: read %s", path)
	}

	var pf paramFile
	if err := yaml.Unmarshal(raw, &pf); err != nil {
		return regional.Param{}, eris.Wrapf(err, "loader: parse %s", path)
	}

	if len(pf.Regions) == 0 {
		if pf.Default == nil {
			return regional.Param{}, eris.Errorf("loader: %s sets neither default nor regions", path)
		}
		return regional.Scalar(*pf.Default), nil
	}

	def := 0.0
	if pf.Default != nil {
		def = *pf.Default
	}
	return regional.PerRegion(pf.Regions, def), nil
}
