// cmd/preflight/main.go
package main

import (
	"fmt"
	"net/url"
	"os"
	"strings"

	"github.com/hamed0406/sitewatch/internal/config"
)

func main() {
	fail := func(msg string) {
		fmt.Fprintln(os.Stderr, "✖", msg)
		os.Exit(1)
	}
	warn := func(msg string) { fmt.Fprintln(os.Stderr, "⚠", msg) }
	ok := func(msg string) { fmt.Println("✔", msg) }

	if err := config.LoadDotEnv(os.Getenv("ENV_FILE")); err != nil {
		fail(err.Error())
	}
	cfg := config.FromEnv()

	if err := cfg.Validate(); err != nil {
		fail(err.Error())
	}
	ok(fmt.Sprintf("interval=%s probe_timeout=%s concurrency=%d", cfg.CheckInterval, cfg.ProbeTimeout, cfg.MaxConcurrent))
	ok(fmt.Sprintf("alert after %d DOWN checks, cooldown %s", cfg.DownThreshold, cfg.AlertCooldown))

	u, err := url.Parse(cfg.QueueURL)
	if err != nil {
		fail("QUEUE_URL does not parse: " + err.Error())
	}
	switch strings.ToLower(u.Scheme) {
	case "amqp", "amqps", "redis", "rediss", "kafka":
		ok("QUEUE_URL scheme " + u.Scheme + ", queue " + cfg.QueueName)
	case "mem", "memory":
		warn("QUEUE_URL is in-process; alerts are lost on restart and cannot cross processes.")
	default:
		fail("QUEUE_URL scheme " + u.Scheme + " is not supported (amqp, redis, kafka, mem).")
	}

	if cfg.DatabaseURL == "" {
		warn("DATABASE_URL empty — monitor will use the in-memory store.")
		if strings.TrimSpace(cfg.DevEndpoints) == "" {
			warn("DEV_ENDPOINTS empty — nothing will be monitored.")
		}
	} else {
		ok("DATABASE_URL present")
	}

	switch {
	case cfg.ResendAPIKey != "":
		ok("mail via Resend from " + cfg.MailFrom)
	case cfg.SMTP.Host != "":
		ok(fmt.Sprintf("mail via SMTP %s:%d from %s", cfg.SMTP.Host, cfg.SMTP.Port, cfg.MailFrom))
	default:
		warn("no mail provider (RESEND_API_KEY or SMTP_HOST) — alerts will only be logged.")
	}

	if cfg.SlackWebhook != "" {
		ok("Slack ops channel configured")
	}

	if cfg.OpsAddr == "off" {
		warn("ops server disabled")
	} else if !strings.HasPrefix(cfg.OpsAddr, "127.0.0.1:") && !strings.HasPrefix(cfg.OpsAddr, "localhost:") {
		warn("OPS_ADDR=" + cfg.OpsAddr + " is not loopback; the ops API has no authentication.")
	} else {
		ok("OPS_ADDR=" + cfg.OpsAddr)
	}

	ok("preflight passed")
}
