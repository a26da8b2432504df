package pipeline

import (
	"context"

	"github.com/matzehuels/fibertree/pkg/cache"
	errs "github.com/matzehuels/fibertree/pkg/errors"
	"github.com/matzehuels/fibertree/pkg/fibertree"
	"github.com/matzehuels/fibertree/pkg/observability"
	"github.com/matzehuels/fibertree/pkg/render/dot"
)

// Format constants for rendered artifacts.
const (
	FormatDOT = "dot"
	FormatSVG = "svg"
	FormatPNG = "png"
)

// ValidFormats is the set of supported artifact formats.
var ValidFormats = map[string]bool{
	FormatDOT: true,
	FormatSVG: true,
	FormatPNG: true,
}

// ValidateFormat checks if a format string is valid.
func ValidateFormat(format string) error {
	if !ValidFormats[format] {
		return errs.New(errs.ErrCodeUnsupported, "invalid format %q (valid: dot, svg, png)", format)
	}
	return nil
}

// RenderOptions configures [Runner.Render].
type RenderOptions struct {
	Format     string
	HideValues bool
	RankDir    string
}

// Render draws t in the requested format. Artifacts are cached by the
// content hash of t. The second return value reports a cache hit.
func (r *Runner) Render(ctx context.Context, t *fibertree.Tensor, opts RenderOptions) ([]byte, bool, error) {
	if opts.Format == "" {
		opts.Format = FormatSVG
	}
	if err := ValidateFormat(opts.Format); err != nil {
		return nil, false, err
	}

	if cache.IsDisabled(r.Cache) {
		data, err := RenderArtifact(t, opts)
		return data, false, err
	}

	hash, err := TensorHash(t)
	if err != nil {
		return nil, false, err
	}
	key := r.Keyer.ArtifactKey(hash, cache.ArtifactKeyOpts{
		Format:     opts.Format,
		ShowValues: !opts.HideValues,
		RankDir:    opts.RankDir,
	})

	hooks := observability.Cache()
	if data, hit, err := r.Cache.Get(ctx, key); err == nil && hit {
		hooks.OnCacheHit(ctx, "artifact")
		return data, true, nil
	}
	hooks.OnCacheMiss(ctx, "artifact")

	data, err := RenderArtifact(t, opts)
	if err != nil {
		return nil, false, err
	}
	if err := r.Cache.Set(ctx, key, data, cache.TTLArtifact); err != nil {
		r.Logger.Warn("cache write failed", "error", err)
	} else {
		hooks.OnCacheSet(ctx, "artifact", len(data))
	}
	return data, false, nil
}

// RenderArtifact draws t without caching.
func RenderArtifact(t *fibertree.Tensor, opts RenderOptions) ([]byte, error) {
	src := dot.ToDOT(t, dot.Options{HideValues: opts.HideValues, RankDir: opts.RankDir})

	var (
		data []byte
		err  error
	)
	switch opts.Format {
	case FormatDOT:
		return []byte(src), nil
	case FormatSVG:
		data, err = dot.RenderSVG(src)
	case FormatPNG:
		data, err = dot.RenderPNG(src)
	default:
		return nil, ValidateFormat(opts.Format)
	}
	if err != nil {
		return nil, errs.Wrap(errs.ErrCodeInternal, err, "render %s", opts.Format)
	}
	return data, nil
}
