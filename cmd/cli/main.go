package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/hamed0406/sitewatch/internal/domain"
	"github.com/hamed0406/sitewatch/internal/scheduler"
)

type status struct {
	UptimeS          int64           `json:"uptime_s"`
	Endpoints        int             `json:"endpoints"`
	RegistryLoadedAt *time.Time      `json:"registry_loaded_at"`
	Scheduler        scheduler.Stats `json:"scheduler"`
}

func main() {
	endpoint := flag.String("endpoint", "", "show recent checks for this endpoint id")
	limit := flag.Int("limit", 10, "number of checks to show (max 100)")
	flag.Parse()

	api := os.Getenv("OPS_BASE")
	if api == "" {
		api = "http://127.0.0.1:8080"
	}
	client := &http.Client{Timeout: 5 * time.Second}

	if *endpoint != "" {
		var recs []domain.CheckRecord
		path := fmt.Sprintf("/api/endpoints/%s/checks?limit=%d", url.PathEscape(*endpoint), *limit)
		if err := getJSON(client, api+path, &recs); err != nil {
			fmt.Println("Error contacting monitor:", err)
			os.Exit(1)
		}
		if len(recs) == 0 {
			fmt.Println("No checks recorded for", *endpoint)
			return
		}
		for _, r := range recs {
			fmt.Printf("%s  %s\n", r.CheckedAt.Local().Format(time.DateTime), r.Status)
		}
		return
	}

	var st status
	if err := getJSON(client, api+"/api/status", &st); err != nil {
		fmt.Println("Error contacting monitor:", err)
		os.Exit(1)
	}
	s := st.Scheduler
	fmt.Printf("Monitoring %d endpoints (up %s)\n", st.Endpoints, time.Duration(st.UptimeS)*time.Second)
	if st.RegistryLoadedAt != nil {
		fmt.Printf("Endpoint list loaded %s ago\n", time.Since(*st.RegistryLoadedAt).Round(time.Second))
	}
	fmt.Printf("Sweeps: %d completed, %d skipped, running=%v\n", s.SweepsCompleted, s.SweepsSkipped, s.Running)
	if !s.LastSweepStart.IsZero() {
		fmt.Printf("Last sweep: %s, took %dms\n", s.LastSweepStart.Local().Format(time.DateTime), s.LastSweepMS)
	}
	fmt.Printf("Records: %d written, %d failed; alerts queued: %d\n", s.RecordsWritten, s.RecordFailures, s.AlertsPublished)
}

func getJSON(c *http.Client, u string, out any) error {
	resp, err := c.Get(u)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("monitor returned %s", resp.Status)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
