package tool

import (
	"context"
	"fmt"
	"time"

	"github.com/agentrt/core/pkg/errs"
)

// withTimeout races next against def.Timeout (or the registry default
// when the tool declares none), returning errs.Timeout on expiry.
func withTimeout(defaultTimeout time.Duration) Middleware {
	return func(next call) call {
		return func(ctx context.Context, def *Definition, input map[string]any, ec *ExecutionContext) (*Result, error) {
			timeout := def.Timeout
			if timeout <= 0 {
				timeout = defaultTimeout
			}
			if timeout <= 0 {
				return next(ctx, def, input, ec)
			}

			tctx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()

			type outcome struct {
				res *Result
				err error
			}
			done := make(chan outcome, 1)
			go func() {
				res, err := next(tctx, def, input, ec)
				done <- outcome{res, err}
			}()

			select {
			case o := <-done:
				return o.res, o.err
			case <-tctx.Done():
				return nil, errs.New(errs.Timeout, fmt.Sprintf("tool %q exceeded timeout of %s", def.Name, timeout))
			}
		}
	}
}
