// Command gateway-probe calls PerformImport on a gateway and prints every
// response message as one JSON line. A terminal error is printed as a last
// {"error":...} line. The exit status is 2 for client-class error codes and 1
// for any other failure.
package main

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/JamesPrial/custom-gateway-core/internal/transport"
	"github.com/JamesPrial/custom-gateway-core/pkg/errors"
)

// fieldFlags collects repeated -field key=value flags. A value that parses as
// JSON keeps its JSON type; anything else is sent as a string.
type fieldFlags map[string]any

func (f fieldFlags) String() string {
	pairs := make([]string, 0, len(f))
	for key, value := range f {
		pairs = append(pairs, fmt.Sprintf("%s=%v", key, value))
	}
	return strings.Join(pairs, ",")
}

func (f fieldFlags) Set(pair string) error {
	key, raw, ok := strings.Cut(pair, "=")
	if !ok || key == "" {
		return fmt.Errorf("expected key=value, got %q", pair)
	}

	var value any
	if err := json.Unmarshal([]byte(raw), &value); err != nil {
		value = raw
	}
	f[key] = value
	return nil
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout); err != nil {
		log.Printf("gateway-probe: %v", err)
		os.Exit(exitCode(err))
	}
}

func exitCode(err error) int {
	switch {
	case err == nil:
		return 0
	case errors.IsClientError(err):
		return 2
	default:
		return 1
	}
}

func run(ctx context.Context, args []string, out io.Writer) error {
	fields := fieldFlags{}
	flags := flag.NewFlagSet("gateway-probe", flag.ContinueOnError)
	addr := flags.String("addr", "http://localhost:80", "Base URL of the gateway")
	timeout := flags.Duration("timeout", 0, "Abort the import after this long (0 waits forever)")
	flags.Var(fields, "field", "Request field as key=value; repeatable")
	if err := flags.Parse(args); err != nil {
		if stderrors.Is(err, flag.ErrHelp) {
			return nil
		}
		return errors.Wrap(err, errors.ErrCodeValidationInvalid, err.Error())
	}

	if *timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, *timeout)
		defer cancel()
	}

	client := transport.NewClient(&http.Client{}, *addr)
	encoder := json.NewEncoder(out)

	start := time.Now()
	count := 0
	for resp, err := range client.PerformImport(ctx, fields) {
		if err != nil {
			writeErrorLine(out, err)
			return errors.Wrapf(err, errors.GetCode(err), "import failed after %d messages (%s): %s",
				count, errors.GetCode(err), errors.GetMessage(err))
		}
		if err := encoder.Encode(resp); err != nil {
			return fmt.Errorf("write response: %w", err)
		}
		count++
	}

	log.Printf("received %d messages in %s", count, time.Since(start).Round(time.Millisecond))
	return nil
}

// writeErrorLine prints err in the client-safe form of its application error
func writeErrorLine(out io.Writer, err error) {
	appErr, ok := errors.As(err)
	if !ok {
		appErr = errors.Internal(err)
	}
	data, jsonErr := appErr.ToJSON()
	if jsonErr != nil {
		return
	}
	fmt.Fprintf(out, "{\"error\":%s}\n", data)
}
