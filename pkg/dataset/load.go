package dataset

import (
	"bytes"
	"context"
	"io"
	"net/url"
	"os"
	"path"
	"strings"

	"github.com/charmbracelet/log"

	herrors "github.com/matzehuels/harvest/pkg/errors"
	"github.com/matzehuels/harvest/pkg/httputil"
)

// Format identifies a dataset encoding.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
)

// DetectFormat guesses the format from a path or URL extension.
func DetectFormat(source string) Format {
	p := source
	if u, err := url.Parse(source); err == nil && u.Scheme != "" {
		p = u.Path
	}
	switch strings.ToLower(path.Ext(p)) {
	case ".xlsx", ".xlsm":
		return FormatXLSX
	default:
		return FormatCSV
	}
}

// Read parses r in the given format.
func Read(r io.Reader, f Format) ([]Record, error) {
	if f == FormatXLSX {
		return ReadXLSX(r)
	}
	return ReadCSV(r)
}

// Loader resolves a dataset source (path or http(s) URL) into records.
type Loader struct {
	fetcher *httputil.Fetcher
	logger  *log.Logger
}

// NewLoader creates a Loader. A nil fetcher downloads without caching.
func NewLoader(fetcher *httputil.Fetcher, logger *log.Logger) *Loader {
	if fetcher == nil {
		fetcher = httputil.NewFetcher(nil, httputil.Options{})
	}
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &Loader{fetcher: fetcher, logger: logger}
}

// Load reads every record from source. All failures carry
// ErrCodeDatasetLoad so callers can show one blocking message.
func (l *Loader) Load(ctx context.Context, source string) ([]Record, error) {
	format := DetectFormat(source)

	var r io.Reader
	if herrors.IsURL(source) {
		if err := herrors.ValidateURL(source); err != nil {
			return nil, herrors.Wrap(herrors.ErrCodeDatasetLoad, err, "dataset source")
		}
		l.logger.Debug("downloading dataset", "url", source)
		body, err := l.fetcher.Get(ctx, "dataset", source)
		if err != nil {
			return nil, herrors.Wrap(herrors.ErrCodeDatasetLoad, err, "download %s", source)
		}
		r = bytes.NewReader(body)
	} else {
		if err := herrors.ValidateSourcePath(source); err != nil {
			return nil, herrors.Wrap(herrors.ErrCodeDatasetLoad, err, "dataset source")
		}
		f, err := os.Open(source)
		if err != nil {
			return nil, herrors.Wrap(herrors.ErrCodeDatasetLoad, err, "open %s", source)
		}
		defer f.Close()
		r = f
	}

	records, err := Read(r, format)
	if err != nil {
		return nil, herrors.Wrap(herrors.ErrCodeDatasetLoad, err, "parse %s", source)
	}
	l.logger.Debug("dataset parsed", "source", source, "format", format, "records", len(records))
	return records, nil
}
