// Package httputil downloads the remote resources harvest consumes: dataset
// CSVs and world geometry.
//
// [Fetcher] performs a single GET per resource and stores the body in a
// [cache.Cache] so later runs start offline. Failures are returned as-is;
// there is no retry, because a failed resource stays failed for the
// session that requested it.
//
//	f := httputil.NewFetcher(c, httputil.Options{TTL: 24 * time.Hour})
//	body, err := f.Get(ctx, "geometry", url)
package httputil
