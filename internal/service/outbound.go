package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/reputation-service/pkg/util/retry"
)

// outboundRequest is one JSON POST to a collaborator.
type outboundRequest struct {
	URL     string
	Timeout time.Duration
	Headers map[string]string
	Body    any
}

// postJSON performs req once. 5xx, 429 and transport failures are returned
// as retryable errors; other non-2xx statuses are permanent.
func postJSON(ctx context.Context, req outboundRequest) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	agent := fiber.Post(req.URL)
	if err := agent.Parse(); err != nil {
		fiber.ReleaseAgent(agent)
		return retry.Permanent(fmt.Errorf("parse %s: %w", req.URL, err))
	}
	if req.Timeout > 0 {
		agent.Timeout(req.Timeout)
	}
	for k, v := range req.Headers {
		agent.Set(k, v)
	}
	agent.JSON(req.Body)

	status, body, errs := agent.Bytes()
	if len(errs) > 0 {
		return fmt.Errorf("post %s: %w", req.URL, errors.Join(errs...))
	}
	switch {
	case status >= 200 && status < 300:
		return nil
	case status == fiber.StatusTooManyRequests || status >= 500:
		return fmt.Errorf("post %s: status %d", req.URL, status)
	default:
		return retry.Permanent(fmt.Errorf("post %s: status %d: %s", req.URL, status, truncate(body, 256)))
	}
}

func truncate(b []byte, n int) string {
	if len(b) > n {
		return string(b[:n])
	}
	return string(b)
}
