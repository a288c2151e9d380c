package main

import (
	"context"

	"github.com/stackvity/loan-verify/internal/objectstore"
	"github.com/stackvity/loan-verify/internal/pipelineerr"
	"github.com/stackvity/loan-verify/internal/verify"
)

// fetcherAdapter narrows *objectstore.Fetcher's richer result (size,
// content type, etag) down to the LocalPath the pipeline actually consumes,
// so internal/verify never needs to import internal/objectstore.
type fetcherAdapter struct {
	inner *objectstore.Fetcher
}

func newFetcherAdapter(inner *objectstore.Fetcher) verify.Fetcher {
	return &fetcherAdapter{inner: inner}
}

func (a *fetcherAdapter) Fetch(ctx context.Context, key, workDir string) (verify.FetchedFile, *pipelineerr.Error) {
	fetched, err := a.inner.Fetch(ctx, key, workDir)
	if err != nil {
		return verify.FetchedFile{}, err
	}
	return verify.FetchedFile{LocalPath: fetched.LocalPath}, nil
}
