package common

import (
	"fmt"
	"strings"

	"github.com/ternarybob/banner"
)

type endpoint struct {
	method, path, summary string
}

var endpoints = []endpoint{
	{"GET", "/zendesk-feedback", "Latest tickets, ratings and metrics snapshot"},
	{"GET", "/integration.json", "Telex integration descriptor"},
	{"POST", "/tick", "Relay feedback to the Telex return URL"},
	{"POST", "/update-interval", "Change the refresh interval"},
	{"GET", "/history", "Refresh and relay run history"},
	{"GET", "/metrics", "Prometheus metrics"},
	{"GET", "/ws", "Live refresh and relay events"},
}

// PrintBanner displays the startup banner, the effective configuration and
// the HTTP surface.
func PrintBanner(config *Config, logFile string) {
	b := banner.New().
		SetStyle(banner.StyleDouble).
		SetBorderColor(banner.ColorPurple).
		SetTextColor(banner.ColorWhite).
		SetBold(true).
		SetWidth(80)

	fmt.Println()
	b.PrintTopLine()
	b.PrintCenteredText("ZENDESK FEEDBACK MONITOR")
	b.PrintCenteredText("Zendesk to Telex Feedback Bridge")
	b.PrintSeparatorLine()
	b.PrintKeyValue("Version", GetVersion(), 15)
	b.PrintKeyValue("Build", GetBuild(), 15)
	b.PrintKeyValue("Environment", config.Environment, 15)
	b.PrintKeyValue("Port", fmt.Sprintf("%d", config.Server.Port), 15)
	b.PrintKeyValue("Credentials", config.Zendesk.Credentials, 15)
	b.PrintBottomLine()
	fmt.Println()

	fmt.Printf("📋 Configuration:\n")
	if config.Zendesk.BaseURL != "" {
		fmt.Printf("   • Zendesk: %s\n", config.Zendesk.BaseURL)
	}
	fmt.Printf("   • Refresh Interval: %d minutes\n", config.Scheduler.IntervalMinutes)
	fmt.Printf("   • Metrics Concurrency: %d\n", config.Zendesk.MetricsConcurrency)
	if config.CircuitBreaker.Enabled {
		fmt.Printf("   • Circuit Breaker: opens after %d failures\n", config.CircuitBreaker.MaxFailures)
	}
	fmt.Printf("   • History Database: %s (%d days)\n", config.Storage.DatabasePath, config.Storage.RetentionDays)
	if logFile != "" {
		fmt.Printf("   • Log File: %s\n", strings.Replace(logFile, ".log", ".{YYYY-MM-DDTHH-MM-SS}.log", 1))
	}
	fmt.Println()

	fmt.Printf("🎯 Endpoints:\n")
	for _, e := range endpoints {
		fmt.Printf("   • %-4s %-18s %s\n", e.method, e.path, e.summary)
	}
	fmt.Println()
}

// PrintShutdownBanner displays the shutdown banner
func PrintShutdownBanner(serviceName string) {
	b := banner.New().
		SetStyle(banner.StyleDouble).
		SetBorderColor(banner.ColorPurple).
		SetTextColor(banner.ColorWhite).
		SetBold(true).
		SetWidth(42)
	b.PrintTopLine()
	b.PrintCenteredText("SHUTTING DOWN")
	b.PrintCenteredText(serviceName)
	b.PrintBottomLine()
	fmt.Println()
}

// PrintWarning prints a warning message in yellow
func PrintWarning(message string) {
	fmt.Printf("%s⚠ %s%s\n", banner.ColorYellow, message, banner.ColorReset)
}
