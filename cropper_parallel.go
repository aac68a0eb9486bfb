package cq

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"sync"

	"github.com/jward/cq/internal/query"
	"github.com/jward/cq/internal/store"
)

// Request is one crop of a CropFiles run. Source is read from Path when it
// is empty; Path also selects the engine by extension.
type Request struct {
	Path    string
	Source  string
	Query   string
	Options []Option
}

// Response pairs a Request with its outcome.
type Response struct {
	Request Request
	Result  *Result
	Err     error
}

// CropFiles crops every request on a worker pool and returns the responses
// in request order. Crops computed during the run are buffered and written
// to the crop cache in a single transaction once all workers finish. The
// returned error summarises failed requests; each Response carries its own.
func (c *Cropper) CropFiles(ctx context.Context, reqs []Request) ([]Response, error) {
	out := make([]Response, len(reqs))
	if len(reqs) == 0 {
		return out, nil
	}

	var (
		batch *store.BatchedStore
		cs    store.CropStore
	)
	if c.store != nil {
		batch = store.NewBatchedStore(c.store)
		cs = batch
	}

	numWorkers := min(runtime.NumCPU(), len(reqs))
	if numWorkers < 1 {
		numWorkers = 1
	}

	workCh := make(chan int, len(reqs))
	for i := range reqs {
		workCh <- i
	}
	close(workCh)

	type result struct {
		idx int
		res *Result
		err error
	}
	resultCh := make(chan result, len(reqs))

	var wg sync.WaitGroup
	for range numWorkers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range workCh {
				res, err := c.cropRequest(ctx, cs, reqs[i])
				resultCh <- result{idx: i, res: res, err: err}
			}
		}()
	}

	go func() {
		wg.Wait()
		close(resultCh)
	}()

	var errs []error
	for r := range resultCh {
		out[r.idx] = Response{Request: reqs[r.idx], Result: r.res, Err: r.err}
		if r.err != nil {
			errs = append(errs, fmt.Errorf("crop %s: %w", requestLabel(reqs[r.idx], r.idx), r.err))
		}
	}

	if batch != nil {
		c.logger.Debug("committing crop batch", "crops", batch.Len())
		if err := c.store.CommitBatch(batch); err != nil {
			errs = append(errs, fmt.Errorf("commit crop cache: %w", err))
		}
	}

	if len(errs) > 0 {
		return out, fmt.Errorf("cropping had %d error(s): %w", len(errs), errs[0])
	}
	return out, nil
}

func (c *Cropper) cropRequest(ctx context.Context, cs store.CropStore, req Request) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	src := req.Source
	if src == "" && req.Path != "" {
		data, err := os.ReadFile(req.Path)
		if err != nil {
			return nil, fmt.Errorf("cq: read %s: %w", req.Path, err)
		}
		src = string(data)
	}
	qs, err := query.Parse(req.Query)
	if err != nil {
		return nil, fmt.Errorf("cq: parse query: %w", err)
	}
	opts := req.Options
	if req.Path != "" {
		opts = fileOptions(req.Path, opts)
	}
	return c.crop(ctx, cs, src, qs, opts)
}

func requestLabel(req Request, idx int) string {
	if req.Path != "" {
		return req.Path
	}
	return fmt.Sprintf("request %d", idx)
}
