package cmd

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/crypto/bcrypt"

	"github.com/sautiksau/bookingsync/internal/availability"
	"github.com/sautiksau/bookingsync/internal/config"
	"github.com/sautiksau/bookingsync/internal/server"
)

func TestParseCommaSeparatedList(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected []string
	}{
		{
			name:     "empty string",
			input:    "",
			expected: nil,
		},
		{
			name:     "single value",
			input:    "mon",
			expected: []string{"mon"},
		},
		{
			name:     "multiple values",
			input:    "mon,tue",
			expected: []string{"mon", "tue"},
		},
		{
			name:     "values with spaces around comma",
			input:    "mon, tue",
			expected: []string{"mon", "tue"},
		},
		{
			name:     "values with leading/trailing spaces",
			input:    "  mon  ,  tue  ",
			expected: []string{"mon", "tue"},
		},
		{
			name:     "trailing comma",
			input:    "mon,tue,",
			expected: []string{"mon", "tue"},
		},
		{
			name:     "leading comma",
			input:    ",mon,tue",
			expected: []string{"mon", "tue"},
		},
		{
			name:     "multiple consecutive commas",
			input:    "mon,,tue",
			expected: []string{"mon", "tue"},
		},
		{
			name:     "only commas and spaces",
			input:    ",  , , ",
			expected: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := parseCommaSeparatedList(tt.input)

			if tt.expected == nil {
				if result != nil {
					t.Errorf("parseCommaSeparatedList(%q) = %v, want nil", tt.input, result)
				}
				return
			}

			if len(result) != len(tt.expected) {
				t.Errorf("parseCommaSeparatedList(%q) = %v (len %d), want %v (len %d)",
					tt.input, result, len(result), tt.expected, len(tt.expected))
				return
			}
			for i := range result {
				if result[i] != tt.expected[i] {
					t.Errorf("parseCommaSeparatedList(%q)[%d] = %q, want %q", tt.input, i, result[i], tt.expected[i])
				}
			}
		})
	}
}

func parseServeFlags(t *testing.T, args ...string) (*serveOptions, *cobra.Command) {
	t.Helper()
	opts := &serveOptions{}
	cmd := &cobra.Command{Use: "serve"}
	opts.addFlags(cmd)
	if err := cmd.Flags().Parse(args); err != nil {
		t.Fatalf("failed to parse flags: %v", err)
	}
	return opts, cmd
}

func TestServeOptions_Apply(t *testing.T) {
	opts, cmd := parseServeFlags(t,
		"--addr", ":18080",
		"--metrics-addr", ":19090",
		"--disable-sync",
		"--weekdays", "mon, wed,fri",
	)
	cfg := config.Default()

	if err := opts.apply(cmd, cfg); err != nil {
		t.Fatalf("apply() error = %v", err)
	}
	if cfg.Server.Addr != ":18080" {
		t.Errorf("Server.Addr = %q, want :18080", cfg.Server.Addr)
	}
	if cfg.Metrics.Addr != ":19090" {
		t.Errorf("Metrics.Addr = %q, want :19090", cfg.Metrics.Addr)
	}
	if !cfg.Metrics.Enabled {
		t.Error("metrics should stay enabled")
	}
	if cfg.Sync.Enabled {
		t.Error("sync should be disabled")
	}
	weekdays, err := cfg.Weekdays()
	if err != nil {
		t.Fatalf("Weekdays() error = %v", err)
	}
	want := []time.Weekday{time.Monday, time.Wednesday, time.Friday}
	if len(weekdays) != len(want) {
		t.Fatalf("Weekdays() = %v, want %v", weekdays, want)
	}
	for i := range want {
		if weekdays[i] != want[i] {
			t.Errorf("Weekdays()[%d] = %v, want %v", i, weekdays[i], want[i])
		}
	}
}

func TestServeOptions_ApplyLeavesUnsetFlags(t *testing.T) {
	opts, cmd := parseServeFlags(t)
	cfg := config.Default()
	cfg.Server.Addr = ":7000"

	if err := opts.apply(cmd, cfg); err != nil {
		t.Fatalf("apply() error = %v", err)
	}
	if cfg.Server.Addr != ":7000" {
		t.Errorf("Server.Addr = %q, want :7000", cfg.Server.Addr)
	}
	if !cfg.Sync.Enabled {
		t.Error("sync should stay enabled")
	}
}

func TestServeOptions_ApplyRejectsInvalidWeekday(t *testing.T) {
	opts, cmd := parseServeFlags(t, "--weekdays", "mon,someday")
	if err := opts.apply(cmd, config.Default()); err == nil {
		t.Fatal("expected an error for an unknown weekday")
	}
}

func TestHashPassword(t *testing.T) {
	hash, err := hashPassword(strings.NewReader("correct horse\nignored\n"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hashPassword() error = %v", err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte("correct horse")); err != nil {
		t.Errorf("hash does not match password: %v", err)
	}

	if _, err := hashPassword(strings.NewReader("\n"), bcrypt.MinCost); err == nil {
		t.Error("expected an error for an empty password")
	}
}

func TestCollectRoutes(t *testing.T) {
	routes, err := collectRoutes(server.NewAPI(server.Config{}).Router())
	if err != nil {
		t.Fatalf("collectRoutes() error = %v", err)
	}

	want := map[string]string{
		"GET /healthz":                           "Health Probes",
		"GET /api/v1/availability":               "Public Routes",
		"POST /api/v1/bookings":                  "Public Routes",
		"PATCH /api/v1/bookings/{id}/reschedule": "Public Routes",
		"PATCH /api/v1/bookings/{id}/cancel":     "Admin Routes",
		"POST /api/v1/admin/calendar/import":     "Admin Routes",
		"PUT /api/v1/admin/settings/calendar-id": "Admin Routes",
	}
	found := make(map[string]bool)
	for _, r := range routes {
		key := r.Method + " " + r.Path
		if category, ok := want[key]; ok {
			found[key] = true
			if got := routeCategory(r.Path); got != category {
				t.Errorf("routeCategory(%q) = %q, want %q", r.Path, got, category)
			}
		}
	}
	for key := range want {
		if !found[key] {
			t.Errorf("route %s not collected", key)
		}
	}

	markdown := generateRoutesMarkdown(routes)
	if !strings.Contains(markdown, "| `POST` | `/api/v1/bookings` |") {
		t.Error("markdown should list the booking route")
	}
	if !strings.Contains(markdown, server.AdminPasswordHeader) {
		t.Error("markdown should document the admin header")
	}
}

func TestPrintAvailability(t *testing.T) {
	days := []availability.DayAvailability{
		{Date: "2026-03-02", Slots: []availability.TimeSlot{
			{ID: "2026-03-02-09:00", Date: "2026-03-02", StartTime: "09:00", EndTime: "09:30"},
			{ID: "2026-03-02-09:30", Date: "2026-03-02", StartTime: "09:30", EndTime: "10:00"},
		}},
		{Date: "2026-03-03", Slots: []availability.TimeSlot{}},
	}

	var buf bytes.Buffer
	if err := printAvailability(&buf, days); err != nil {
		t.Fatalf("printAvailability() error = %v", err)
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("got %d lines, want 2: %q", len(lines), buf.String())
	}
	if !strings.Contains(lines[0], "09:00 09:30") {
		t.Errorf("first line = %q, want both start times", lines[0])
	}
	if !strings.HasSuffix(lines[1], "-") {
		t.Errorf("second line = %q, want a dash for no slots", lines[1])
	}
}

func TestRunImport_NotConnected(t *testing.T) {
	ctx := context.Background()
	cfg := config.Default()
	cfg.Logging.Level = "error"

	a, err := newApp(ctx, cfg, false)
	if err != nil {
		t.Fatalf("newApp() error = %v", err)
	}
	defer a.close(ctx)

	var buf bytes.Buffer
	if err := runImport(ctx, a, &buf); err != nil {
		t.Fatalf("runImport() error = %v", err)
	}
	if !strings.Contains(buf.String(), `"connected": false`) {
		t.Errorf("output = %s, want connected false", buf.String())
	}
	if _, ok, err := a.lastSync.LastSync(ctx); err != nil || ok {
		t.Errorf("LastSync() = ok %v, err %v; want nothing recorded", ok, err)
	}
}
