package testutil

import (
	"errors"
	"sync"
	"sync/atomic"

	dErrors "certledger/pkg/domain-errors"
	"certledger/pkg/platform/sentinel"
)

// ConcurrentResult counts how racing calls ended.
type ConcurrentResult struct {
	Successes int32
	Conflicts int32
	NotFounds int32
	Errors    int32

	// Unexpected holds the errors counted in Errors, for failure messages.
	Unexpected []error
}

// RunConcurrent releases n goroutines at once against fn and classifies the
// outcomes. Store sentinels and domain conflict codes both count as
// conflicts, so the helper serves store and service tests alike.
func RunConcurrent(n int, fn func(idx int) error) *ConcurrentResult {
	var (
		res                   ConcurrentResult
		ok, conflict, missing atomic.Int32
		mu                    sync.Mutex
		wg                    sync.WaitGroup
		start                 = make(chan struct{})
	)

	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			switch err := fn(i); {
			case err == nil:
				ok.Add(1)
			case isConflict(err):
				conflict.Add(1)
			case errors.Is(err, sentinel.ErrNotFound), dErrors.HasCode(err, dErrors.CodeNotFound):
				missing.Add(1)
			default:
				mu.Lock()
				res.Unexpected = append(res.Unexpected, err)
				mu.Unlock()
			}
		}()
	}
	close(start)
	wg.Wait()

	res.Successes = ok.Load()
	res.Conflicts = conflict.Load()
	res.NotFounds = missing.Load()
	res.Errors = int32(len(res.Unexpected))
	return &res
}

func isConflict(err error) bool {
	return errors.Is(err, sentinel.ErrConflict) ||
		errors.Is(err, sentinel.ErrAlreadyExists) ||
		errors.Is(err, sentinel.ErrInvalidState) ||
		dErrors.IsConflict(err)
}
