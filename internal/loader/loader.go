// Package loader reads configuration layers from YAML files. A layer file
// holds slug-keyed sections (data_sources, metrics, segments, dimensions,
// statistics); the loader only decodes records, it never merges or
// validates them. Layer ordering is the caller's contract: LoadProject
// returns layers general-to-specific, ready for the merger.
package loader

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	kyaml "github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"github.com/leapstack-labs/expsql/internal/merge"
	"github.com/leapstack-labs/expsql/pkg/core"
)

// Project directory conventions, most general first.
const (
	DefinitionsDir = "definitions"
	DefaultsDir    = "defaults"
	ExperimentsDir = "experiments"
)

// LoadFile reads one layer file. Decode problems (unknown keys, type
// conflicts) are collected as MalformedOverrideError values rather than
// aborting, so a caller can report every problem in one pass; the layer is
// nil only when the file itself cannot be read or parsed.
func LoadFile(path string) (*merge.Layer, []error) {
	k := koanf.New(".")
	if err := k.Load(file.Provider(path), kyaml.Parser()); err != nil {
		return nil, []error{fmt.Errorf("reading layer file %s: %w", path, err)}
	}

	slug := layerSlug(path)
	layer := &merge.Layer{Slug: slug}
	var errs []error

	raw := k.Raw()
	for section := range raw {
		switch section {
		case "data_sources", "metrics", "segments", "dimensions", "statistics":
		default:
			errs = append(errs, &core.MalformedOverrideError{
				Layer:   slug,
				Section: section,
				Cause:   fmt.Errorf("unexpected section"),
			})
		}
	}

	layer.DataSources, errs = decodeSection[core.DataSourceDefinition](slug, "data_sources", raw["data_sources"], errs)
	layer.Metrics, errs = decodeSection[core.MetricDefinition](slug, "metrics", raw["metrics"], errs)
	layer.Dimensions, errs = decodeSection[core.DimensionDefinition](slug, "dimensions", raw["dimensions"], errs)

	// The segments section nests its data sources under a reserved
	// data_sources key; everything else in it is a segment definition.
	if rawSegments := raw["segments"]; rawSegments != nil {
		segments := sectionMap(rawSegments)
		if segments == nil {
			errs = append(errs, &core.MalformedOverrideError{
				Layer:   slug,
				Section: "segments",
				Cause:   fmt.Errorf("expected a slug-keyed mapping, got %T", rawSegments),
			})
		} else {
			if nested, ok := segments["data_sources"]; ok {
				layer.SegmentDataSources, errs = decodeSection[core.SegmentDataSourceDefinition](slug, "segments.data_sources", nested, errs)
				delete(segments, "data_sources")
			}
			layer.Segments, errs = decodeSection[core.SegmentDefinition](slug, "segments", segments, errs)
		}
	}

	layer.Statistics, errs = decodeStatistics(slug, raw["statistics"], errs)

	return layer, errs
}

// LoadProject loads a configuration directory in layer order:
// definitions/, then defaults/, then the experiment-specific file when an
// experiment slug is given. Files within one directory are ordered by name.
func LoadProject(dir, experiment string) ([]*merge.Layer, []error) {
	var layers []*merge.Layer
	var errs []error

	for _, sub := range []string{DefinitionsDir, DefaultsDir} {
		paths, err := layerFiles(filepath.Join(dir, sub))
		if err != nil {
			errs = append(errs, err)
			continue
		}
		for _, path := range paths {
			layer, layerErrs := LoadFile(path)
			errs = append(errs, layerErrs...)
			if layer != nil {
				layers = append(layers, layer)
			}
		}
	}

	if experiment != "" {
		path, err := experimentFile(filepath.Join(dir, ExperimentsDir), experiment)
		if err != nil {
			errs = append(errs, err)
		} else {
			layer, layerErrs := LoadFile(path)
			errs = append(errs, layerErrs...)
			if layer != nil {
				layers = append(layers, layer)
			}
		}
	}

	return layers, errs
}

// layerFiles lists the YAML files in dir, sorted by name. A missing
// directory contributes no layers.
func layerFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading layer directory: %w", err)
	}
	var paths []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if ext := filepath.Ext(entry.Name()); ext == ".yaml" || ext == ".yml" {
			paths = append(paths, filepath.Join(dir, entry.Name()))
		}
	}
	sort.Strings(paths)
	return paths, nil
}

func experimentFile(dir, experiment string) (string, error) {
	for _, ext := range []string{".yaml", ".yml"} {
		path := filepath.Join(dir, experiment+ext)
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}
	return "", fmt.Errorf("no layer file for experiment %q in %s", experiment, dir)
}

func layerSlug(path string) string {
	base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	parent := filepath.Base(filepath.Dir(path))
	switch parent {
	case DefinitionsDir, DefaultsDir, ExperimentsDir:
		return parent + "/" + base
	}
	return base
}

// decodeSection decodes one slug-keyed section into definition records. A
// present-but-empty declaration decodes to an empty definition, which the
// merger treats as an additive no-op.
func decodeSection[T any](layer, section string, raw any, errs []error) (map[string]*T, []error) {
	entries := sectionMap(raw)
	if entries == nil {
		if raw != nil {
			errs = append(errs, &core.MalformedOverrideError{
				Layer:   layer,
				Section: section,
				Cause:   fmt.Errorf("expected a slug-keyed mapping, got %T", raw),
			})
		}
		return nil, errs
	}
	out := make(map[string]*T, len(entries))
	for slug, fields := range entries {
		def := new(T)
		if fields != nil {
			if err := decodeRecord(fields, def); err != nil {
				errs = append(errs, &core.MalformedOverrideError{
					Layer:   layer,
					Section: section,
					Slug:    slug,
					Cause:   err,
				})
				continue
			}
		}
		out[slug] = def
	}
	return out, errs
}

func decodeStatistics(layer string, raw any, errs []error) (map[string]map[string]any, []error) {
	entries := sectionMap(raw)
	if entries == nil {
		return nil, errs
	}
	out := make(map[string]map[string]any, len(entries))
	for name, fields := range entries {
		params, ok := fields.(map[string]any)
		if fields != nil && !ok {
			errs = append(errs, &core.MalformedOverrideError{
				Layer:   layer,
				Section: "statistics",
				Slug:    name,
				Cause:   fmt.Errorf("expected a parameter mapping, got %T", fields),
			})
			continue
		}
		out[name] = params
	}
	return out, errs
}

func sectionMap(raw any) map[string]any {
	if raw == nil {
		return nil
	}
	if m, ok := raw.(map[string]any); ok {
		return m
	}
	return nil
}

// decodeRecord maps raw YAML fields onto a definition struct. Unknown keys
// and type conflicts are errors: a later layer must not silently change the
// shape of an established field.
func decodeRecord(fields any, target any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:      target,
		TagName:     "koanf",
		ErrorUnused: true,
	})
	if err != nil {
		return err
	}
	return dec.Decode(fields)
}
