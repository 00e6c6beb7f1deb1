// ABOUTME: health subcommand that checks a running server over HTTP
// ABOUTME: Checks /health, or /health/ready with --ready

package main

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/tidwall/gjson"

	"github.com/2389/airway-api/internal/config"
)

func newHealthCmd(configPath *string) *cobra.Command {
	var (
		baseURL string
		ready   bool
		timeout time.Duration
	)

	cmd := &cobra.Command{
		Use:   "health",
		Short: "Check that a running server is healthy",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if baseURL == "" {
				cfg, _, err := config.LoadOrDefault(*configPath)
				if err != nil {
					return fmt.Errorf("loading config: %w", err)
				}
				baseURL = localURL(cfg.Server.HTTPAddr)
			}

			path := "/health"
			if ready {
				path = "/health/ready"
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()
			return runHealth(ctx, cmd.OutOrStdout(), strings.TrimSuffix(baseURL, "/")+path)
		},
	}
	cmd.Flags().StringVar(&baseURL, "url", "", "server base URL (default derived from server.http_addr)")
	cmd.Flags().BoolVar(&ready, "ready", false, "check readiness instead of liveness")
	cmd.Flags().DurationVar(&timeout, "timeout", 5*time.Second, "request timeout")
	return cmd
}

// localURL turns a listen address into a URL reachable from this host.
func localURL(addr string) string {
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return "http://" + addr
	}
	switch host {
	case "", "0.0.0.0", "::":
		host = "127.0.0.1"
	}
	return "http://" + net.JoinHostPort(host, port)
}

func runHealth(ctx context.Context, out io.Writer, url string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		if detail := gjson.GetBytes(body, "detail").String(); detail != "" {
			return fmt.Errorf("unhealthy: status %d: %s", resp.StatusCode, detail)
		}
		return fmt.Errorf("unhealthy: status %d", resp.StatusCode)
	}

	status := gjson.GetBytes(body, "status").String()
	if status == "" {
		status = "healthy"
	}
	fmt.Fprintln(out, status)
	if todos := gjson.GetBytes(body, "todos"); todos.Exists() {
		fmt.Fprintf(out, "todos: %d\nmilestones: %d\n", todos.Int(), gjson.GetBytes(body, "milestones").Int())
	}
	return nil
}
