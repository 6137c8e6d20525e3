package command

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os/signal"
	"strings"
	"sync"
	"syscall"

	"github.com/claytile-api/internal/transport/http/middleware"
	"github.com/claytile-api/internal/uploader"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

const (
	apiFlag         = "api"
	concurrencyFlag = "concurrency"
	acceptFlag      = "accept"
	payloadFlag     = "payload"
	retriesFlag     = "retries"
	cookieFlag      = "cookie"
)

type sendOptions struct {
	api         string
	concurrency int
	accept      []string
	payload     string
	retries     int
	cookie      string
}

func SendCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "send [files...]",
		Short: "Upload files",
		Long:  "Queue the given files and upload them with bounded concurrency, printing a line per state change",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := sendOptionsFromFlags(cmd.Flags())
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			return send(ctx, cmd.OutOrStdout(), opts, newTransport(opts), args)
		},
	}

	cmd.Flags().String(apiFlag, "http://localhost:3000", "base URL of the api")
	cmd.Flags().Int(concurrencyFlag, uploader.DefaultConcurrency, "maximum simultaneous uploads")
	cmd.Flags().StringSlice(acceptFlag, nil, "accepted content types, e.g. image/*; empty accepts anything")
	cmd.Flags().String(payloadFlag, "", "client payload sent with every authorization request")
	cmd.Flags().Int(retriesFlag, 0, "times to retry failed uploads")
	cmd.Flags().String(cookieFlag, "", "session token sent as the auth-token cookie")

	return cmd
}

func sendOptionsFromFlags(flags *pflag.FlagSet) (sendOptions, error) {
	var opts sendOptions
	var err error

	if opts.api, err = flags.GetString(apiFlag); err != nil {
		return opts, err
	}
	if opts.concurrency, err = flags.GetInt(concurrencyFlag); err != nil {
		return opts, err
	}
	if opts.accept, err = flags.GetStringSlice(acceptFlag); err != nil {
		return opts, err
	}
	if opts.payload, err = flags.GetString(payloadFlag); err != nil {
		return opts, err
	}
	if opts.retries, err = flags.GetInt(retriesFlag); err != nil {
		return opts, err
	}
	if opts.cookie, err = flags.GetString(cookieFlag); err != nil {
		return opts, err
	}

	if opts.concurrency < 1 {
		return opts, fmt.Errorf("--%s must be at least 1", concurrencyFlag)
	}
	if opts.retries < 0 {
		return opts, fmt.Errorf("--%s must not be negative", retriesFlag)
	}
	opts.api = strings.TrimRight(opts.api, "/")
	return opts, nil
}

func newTransport(opts sendOptions) *uploader.HTTPTransport {
	t := &uploader.HTTPTransport{
		BaseURL:       opts.api,
		Client:        http.DefaultClient,
		ClientPayload: opts.payload,
	}
	if opts.cookie != "" {
		t.Header = http.Header{}
		t.Header.Set("Cookie", (&http.Cookie{Name: middleware.CookieName, Value: opts.cookie}).String())
	}
	return t
}

// send uploads paths and returns an error when any of them still failed
// after the allowed retries.
func send(ctx context.Context, out io.Writer, opts sendOptions, t uploader.Transport, paths []string) error {
	files := make([]uploader.File, 0, len(paths))
	for _, p := range paths {
		f, err := uploader.FromPath(p)
		if err != nil {
			return err
		}
		files = append(files, f)
	}

	rep := newReporter(out)
	q := uploader.New(t, uploader.Options{
		ConcurrencyLimit: opts.concurrency,
		AcceptedTypes:    opts.accept,
		AllowMultiple:    true,
		OnChange:         rep.onChange,
	})
	defer q.Close()

	if _, err := q.Add(files...); err != nil {
		return err
	}

	for attempt := 0; ; attempt++ {
		if err := q.Wait(ctx); err != nil {
			return err
		}
		failed := failedIDs(q.Items())
		if len(failed) == 0 || attempt >= opts.retries {
			rep.printf("%s\n", q.Summary())
			if len(failed) > 0 {
				return fmt.Errorf("%d upload(s) failed", len(failed))
			}
			return nil
		}
		for _, id := range failed {
			if err := q.Retry(id); err != nil {
				return err
			}
		}
	}
}

func failedIDs(items []uploader.Item) []string {
	var ids []string
	for _, it := range items {
		if it.Status == uploader.StatusError {
			ids = append(ids, it.ID)
		}
	}
	return ids
}

// reporter prints one line per status transition, plus the URL of each
// finished upload. Progress ticks are skipped.
type reporter struct {
	mu   sync.Mutex
	out  io.Writer
	seen map[string]uploader.Status
}

func newReporter(out io.Writer) *reporter {
	return &reporter{out: out, seen: map[string]uploader.Status{}}
}

func (r *reporter) onChange(items []uploader.Item) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, it := range items {
		if r.seen[it.ID] == it.Status {
			continue
		}
		r.seen[it.ID] = it.Status
		line := fmt.Sprintf("%-9s %s", it.Status, it.File.Name)
		if it.Status == uploader.StatusError {
			line += ": " + it.Err
		}
		fmt.Fprintln(r.out, line)
		if it.Status == uploader.StatusDone && it.Result != nil {
			fmt.Fprintf(r.out, "  %s\n", it.Result.URL)
		}
	}
}

func (r *reporter) printf(format string, args ...any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fmt.Fprintf(r.out, format, args...)
}
