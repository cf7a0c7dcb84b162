package geo

import (
	"context"
	"os"

	herrors "github.com/matzehuels/harvest/pkg/errors"
	"github.com/matzehuels/harvest/pkg/httputil"
)

// Load reads geometry from a path or http(s) URL. Every failure carries
// ErrCodeGeometryUnavailable.
func Load(ctx context.Context, fetcher *httputil.Fetcher, source, nameProp string) (*Geometry, error) {
	var data []byte
	if herrors.IsURL(source) {
		if fetcher == nil {
			fetcher = httputil.NewFetcher(nil, httputil.Options{})
		}
		b, err := fetcher.Get(ctx, "geometry", source)
		if err != nil {
			return nil, herrors.Wrap(herrors.ErrCodeGeometryUnavailable, err, "download %s", source)
		}
		data = b
	} else {
		if err := herrors.ValidateSourcePath(source); err != nil {
			return nil, herrors.Wrap(herrors.ErrCodeGeometryUnavailable, err, "geometry source")
		}
		b, err := os.ReadFile(source)
		if err != nil {
			return nil, herrors.Wrap(herrors.ErrCodeGeometryUnavailable, err, "read %s", source)
		}
		data = b
	}
	return Parse(data, nameProp)
}
