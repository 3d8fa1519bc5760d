package readiness

import (
	"context"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/pkg/errors"
)

// NewHTTPClient builds the probe client. Retries are left to the
// poller, the client only bounds a single request.
func NewHTTPClient(baseURL string) *resty.Client {
	return resty.New().
		SetBaseURL(baseURL).
		SetTimeout(5 * time.Second)
}

// HTTPProbe checks endpoint reachability. The primary path is tried
// first; on failure the fallback path is tried before the attempt is
// counted as failed. An empty fallback disables the second try.
func HTTPProbe(client *resty.Client, primary, fallback string) Probe {
	return func(ctx context.Context) error {
		primaryErr := get(ctx, client, primary)
		if primaryErr == nil {
			return nil
		}
		if fallback == "" {
			return primaryErr
		}
		if err := get(ctx, client, fallback); err != nil {
			return errors.Wrapf(primaryErr, "Fallback %s also failed: %s", fallback, err)
		}
		return nil
	}
}

func get(ctx context.Context, client *resty.Client, path string) error {
	resp, err := client.R().SetContext(ctx).Get(path)
	if err != nil {
		return errors.Wrapf(err, "Failed to reach %s", path)
	}
	if !resp.IsSuccess() {
		return errors.Errorf("Unexpected status %d from %s", resp.StatusCode(), path)
	}
	return nil
}
