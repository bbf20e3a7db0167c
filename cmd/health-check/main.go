// Package main provides a standalone health probe for the recipe web frontend.
// It is meant for container health checks and monitoring scripts.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/alchemorsel/recipeview/pkg/healthcheck"
	"github.com/spf13/cobra"
)

const (
	exitCodeSuccess = 0
	exitCodeFailure = 1
	exitCodeError   = 2
)

var (
	url        string
	timeout    time.Duration
	retries    int
	retryDelay time.Duration
	format     string
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:   "health-check",
	Short: "Probe the health endpoint of a running web frontend",
	Long: `Fetches the health report and exits 0 when the service is healthy or
degraded, 1 when it is unhealthy and 2 when the report could not be read.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	Run: func(cmd *cobra.Command, args []string) {
		os.Exit(run(cmd.Context()))
	},
}

func init() {
	defaultURL := os.Getenv("HEALTH_CHECK_URL")
	if defaultURL == "" {
		defaultURL = "http://localhost:8080/health"
	}

	rootCmd.Flags().StringVar(&url, "url", defaultURL, "Health endpoint URL")
	rootCmd.Flags().DurationVar(&timeout, "timeout", 10*time.Second, "Request timeout")
	rootCmd.Flags().IntVar(&retries, "retry", 0, "Number of retries when the report cannot be read")
	rootCmd.Flags().DurationVar(&retryDelay, "retry-delay", time.Second, "Delay between retries")
	rootCmd.Flags().StringVar(&format, "format", "text", "Output format: text, json")
	rootCmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "List every check")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitCodeError)
	}
}

func run(ctx context.Context) int {
	client := &http.Client{Timeout: timeout}

	var (
		result *healthcheck.ProbeResult
		err    error
	)
	for attempt := 0; attempt <= retries; attempt++ {
		if attempt > 0 {
			time.Sleep(retryDelay)
		}
		if result, err = healthcheck.Probe(ctx, client, url); err == nil {
			break
		}
		if verbose {
			fmt.Fprintf(os.Stderr, "attempt %d failed: %v\n", attempt+1, err)
		}
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "health check failed: %v\n", err)
		return exitCodeError
	}

	switch format {
	case "json":
		out, _ := json.MarshalIndent(result, "", "  ")
		fmt.Println(string(out))
	default:
		fmt.Printf("%s (version %s, HTTP %d)\n", result.Status, result.Version, result.StatusCode)
		checks := result.Failed()
		if verbose {
			checks = result.Checks
		}
		for _, c := range checks {
			fmt.Printf("  %-16s %-10s %s\n", c.Name, c.Status, c.Message)
		}
	}

	if result.Status == healthcheck.StatusUnhealthy {
		return exitCodeFailure
	}
	return exitCodeSuccess
}
