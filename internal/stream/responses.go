// Package stream drives a gateway handler's item sequence into the ordered
// response stream of one PerformImport call.
package stream

import (
	"context"
	"iter"

	"github.com/JamesPrial/custom-gateway-core/internal/codec"
	"github.com/JamesPrial/custom-gateway-core/pkg/errors"
	"github.com/JamesPrial/custom-gateway-core/pkg/insights"
	"github.com/JamesPrial/custom-gateway-core/pkg/wire"
)

// Responses invokes handler once with fields and returns the encoded response
// messages in production order. The sequence yields at most one error, as its
// last element; a handler panic is reported the same way. Stopping the range
// early stops the handler's sequence and runs its deferred cleanup.
func Responses(ctx context.Context, fields map[string]any, handler insights.Handler) iter.Seq2[*wire.PerformImportResponse, error] {
	return responses(ctx, fields, handler, func(recovered any) error {
		return errors.Newf(errors.ErrCodePanic, "panic: %v", recovered)
	})
}

func responses(
	ctx context.Context,
	fields map[string]any,
	handler insights.Handler,
	onPanic func(recovered any) error,
) iter.Seq2[*wire.PerformImportResponse, error] {
	return func(yield func(*wire.PerformImportResponse, error) bool) {
		// inBody is set while the consumer's loop body runs, done once yield
		// has returned false or the terminal error was delivered
		var inBody, done bool

		defer func() {
			recovered := recover()
			if recovered == nil {
				return
			}
			if inBody {
				panic(recovered)
			}
			err := onPanic(recovered)
			if !done {
				done = true
				yield(nil, err)
			}
		}()

		if handler == nil {
			done = true
			yield(nil, errors.New(errors.ErrCodeHandlerFailed, "no handler registered"))
			return
		}

		items := handler(ctx, fields)
		if items == nil {
			return
		}

		for item, err := range items {
			if err != nil {
				err = handlerError(err)
			} else if ctxErr := ctx.Err(); ctxErr != nil {
				err = contextError(ctxErr)
			}
			if err != nil {
				done = true
				yield(nil, err)
				return
			}

			resp, err := codec.EncodeItem(item)
			if err != nil {
				done = true
				yield(nil, err)
				return
			}

			inBody = true
			more := yield(resp, nil)
			inBody = false
			if !more {
				done = true
				return
			}
		}
	}
}

// handlerError keeps a top-level coded error intact. Anything else is wrapped
// with its full message so outer context reaches the consumer; a code found
// deeper in the chain is carried over.
func handlerError(err error) error {
	if appErr, ok := err.(*errors.AppError); ok {
		return appErr
	}
	code := errors.ErrCodeHandlerFailed
	if inner, ok := errors.As(err); ok {
		code = inner.Code
	}
	return errors.Wrap(err, code, err.Error())
}

func contextError(err error) error {
	if err == context.DeadlineExceeded {
		return errors.Wrap(err, errors.ErrCodeContextTimeout, "import deadline exceeded")
	}
	return errors.Wrap(err, errors.ErrCodeContextCanceled, "import canceled")
}
