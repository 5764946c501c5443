package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// BatchResult is one request's outcome within AskMany. Err is set only when
// Ask itself refused the request.
type BatchResult struct {
	Index  int
	Answer *Answer
	Err    error
}

// AskMany answers reqs with at most concurrency requests in flight and
// streams each result as it completes.
//
// Channel semantics:
//   - Without cancellation exactly one BatchResult is sent per request.
//   - On cancellation AskMany stops scheduling; fewer results may be sent.
//   - Both channels are always closed; the error channel carries at most
//     one error (invalid arguments or the context's error).
func (e *Engine) AskMany(ctx context.Context, reqs []Request, concurrency int) (<-chan BatchResult, <-chan error) {
	resultsCh := make(chan BatchResult)
	errCh := make(chan error, 1)

	go func() {
		defer close(resultsCh)
		defer close(errCh)

		if e == nil {
			errCh <- errors.New("engine is nil")
			return
		}
		if concurrency <= 0 {
			errCh <- fmt.Errorf("concurrency must be >= 1, got %d", concurrency)
			return
		}

		sem := make(chan struct{}, concurrency)
		var wg sync.WaitGroup

	scheduleLoop:
		for i, req := range reqs {
			select {
			case sem <- struct{}{}:
			case <-ctx.Done():
				break scheduleLoop
			}

			wg.Add(1)
			go func() {
				defer wg.Done()
				defer func() { <-sem }()

				ans, err := e.Ask(ctx, req)
				select {
				case resultsCh <- BatchResult{Index: i, Answer: ans, Err: err}:
				case <-ctx.Done():
				}
			}()
		}

		wg.Wait()
		if err := ctx.Err(); err != nil {
			errCh <- err
		}
	}()

	return resultsCh, errCh
}
