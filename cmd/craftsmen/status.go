// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Craftsmen Platform Contributors

package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/craftsmenplatform/craftsmen/internal/xdg"
)

// CheckStatus is the result of querying one endpoint of a running server.
type CheckStatus struct {
	Check     string `json:"check"`
	URL       string `json:"url"`
	Healthy   bool   `json:"healthy"`
	Status    int    `json:"status,omitempty"`
	Body      string `json:"body,omitempty"`
	LatencyMS int64  `json:"latency_ms"`
	Error     string `json:"error,omitempty"`
}

type statusConfig struct {
	jsonOutput bool
	timeout    time.Duration
}

// NewStatusCmd creates the status subcommand.
func NewStatusCmd() *cobra.Command {
	cfg := &statusConfig{}

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Check a running craftsmen server",
		Long: `Query the liveness and readiness endpoints of a running server and
check that its API answers. Addresses come from the same configuration
as serve.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			conf, err := loadConfig(xdg.ConfigFile(configFile), cmd.Flags())
			if err != nil {
				return err
			}
			return runStatus(cmd, conf, cfg)
		},
	}

	cmd.Flags().BoolVar(&cfg.jsonOutput, "json", false, "output status as JSON")
	cmd.Flags().DurationVar(&cfg.timeout, "timeout", 2*time.Second, "per-check timeout")
	cmd.Flags().String("addr", "", "API address of the server")
	cmd.Flags().String("metrics-addr", "", "metrics/health address of the server")

	return cmd
}

func runStatus(cmd *cobra.Command, conf *Config, cfg *statusConfig) error {
	client := &http.Client{Timeout: cfg.timeout}

	var checks []CheckStatus
	if conf.Metrics.Addr != "" {
		base := "http://" + dialAddr(conf.Metrics.Addr)
		checks = append(checks,
			check(client, "liveness", base+"/healthz/liveness"),
			check(client, "readiness", base+"/healthz/readiness"),
		)
	}
	checks = append(checks, check(client, "api", "http://"+dialAddr(conf.HTTP.Addr)+"/api/projects?pageSize=1"))

	if cfg.jsonOutput {
		out, err := formatStatusJSON(checks)
		if err != nil {
			return err
		}
		cmd.Println(out)
	} else {
		cmd.Print(formatStatusTable(checks))
	}

	for _, p := range checks {
		if !p.Healthy {
			return oops.Code("SERVER_UNHEALTHY").With("check", p.Check).Errorf("%s check failed", p.Check)
		}
	}
	return nil
}

func check(client *http.Client, name, url string) CheckStatus {
	status := CheckStatus{Check: name, URL: url}
	start := time.Now()
	resp, err := client.Get(url)
	status.LatencyMS = time.Since(start).Milliseconds()
	if err != nil {
		status.Error = fmt.Sprintf("failed to connect: %v", err)
		return status
	}
	defer func() { _ = resp.Body.Close() }()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 256)) //nolint:errcheck // body is informational
	status.Status = resp.StatusCode
	status.Healthy = resp.StatusCode == http.StatusOK
	if !strings.HasPrefix(resp.Header.Get("Content-Type"), "application/json") {
		status.Body = strings.TrimSpace(string(body))
	}
	return status
}

// dialAddr turns a listen address such as ":8080" into one a client can dial.
func dialAddr(listen string) string {
	host, port, err := net.SplitHostPort(listen)
	if err != nil {
		return listen
	}
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "127.0.0.1"
	}
	return net.JoinHostPort(host, port)
}

func formatStatusTable(checks []CheckStatus) string {
	var buf bytes.Buffer
	w := tabwriter.NewWriter(&buf, 0, 0, 2, ' ', 0)

	_, _ = fmt.Fprintln(w, "CHECK\tSTATE\tHTTP\tLATENCY\tDETAIL")
	_, _ = fmt.Fprintln(w, "-----\t-----\t----\t-------\t------")
	for _, p := range checks {
		state := "healthy"
		if !p.Healthy {
			state = "unhealthy"
		}
		code := "-"
		if p.Status != 0 {
			code = fmt.Sprintf("%d", p.Status)
		}
		detail := p.Body
		if p.Error != "" {
			detail = p.Error
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%dms\t%s\n", p.Check, state, code, p.LatencyMS, detail)
	}

	_ = w.Flush()
	return buf.String()
}

func formatStatusJSON(checks []CheckStatus) (string, error) {
	data, err := json.MarshalIndent(checks, "", "  ")
	if err != nil {
		return "", oops.Code("STATUS_ENCODE_FAILED").Wrap(err)
	}
	return string(data), nil
}
