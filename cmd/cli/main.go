package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/autovendas/lead-gateway/internal/analytics"
	"github.com/autovendas/lead-gateway/internal/config"
	"github.com/autovendas/lead-gateway/internal/model"
	"github.com/autovendas/lead-gateway/internal/scoring"
	"github.com/autovendas/lead-gateway/internal/store"
	"github.com/autovendas/lead-gateway/pkg/logger"
)

// Read-only ops tool over the lead files. Anything that writes leads
// goes through the api process, which owns the per-phone locks.

const usage = `usage: cli [--env=path] <command>

commands:
  list [status]      list leads, optionally filtered by status
  get <phone>        print one lead as JSON
  hot [min_score]    list hot leads sorted by score
  inactive [hours]   list leads without recent contact
  report             print the analytics report as JSON
`

func main() {
	err := config.Load(getEnvPath())
	if err != nil {
		logger.Error("failed to load config", "error", err)
		return
	}

	leadStore, err := store.New(config.Get().LeadsDir, scoring.DefaultPolicy())
	if err != nil {
		logger.Error("failed to open lead store", "dir", config.Get().LeadsDir, "error", err)
		return
	}

	args := commandArgs()
	if len(args) == 0 {
		fmt.Print(usage)
		return
	}

	switch args[0] {
	case "list":
		runList(leadStore, args[1:])
	case "get":
		runGet(leadStore, args[1:])
	case "hot":
		runHot(leadStore, args[1:])
	case "inactive":
		runInactive(leadStore, args[1:])
	case "report":
		runReport(leadStore)
	default:
		fmt.Print(usage)
	}
}

func runList(s *store.LeadStore, args []string) {
	var (
		leads []*model.Lead
		err   error
	)
	if len(args) > 0 {
		status := model.LeadStatus(args[0])
		if !status.Valid() {
			fmt.Fprintf(os.Stderr, "unknown status: %s\n", args[0])
			return
		}
		leads, err = s.GetLeadsByStatus(status)
	} else {
		leads, err = s.GetAllLeads()
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return
	}
	printLeads(leads)
}

func runGet(s *store.LeadStore, args []string) {
	if len(args) == 0 {
		fmt.Fprintln(os.Stderr, "get: phone is required")
		return
	}
	lead, err := s.GetLead(args[0])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return
	}
	printJSON(lead)
}

func runHot(s *store.LeadStore, args []string) {
	minScore := 50
	if len(args) > 0 {
		if n, err := strconv.Atoi(args[0]); err == nil {
			minScore = n
		}
	}
	leads, err := s.GetHotLeads(minScore)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return
	}
	printLeads(leads)
}

func runInactive(s *store.LeadStore, args []string) {
	hours := 24
	if len(args) > 0 {
		if n, err := strconv.Atoi(args[0]); err == nil && n > 0 {
			hours = n
		}
	}
	leads, err := s.GetInactiveLeads(hours)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return
	}
	printLeads(leads)
}

func runReport(s *store.LeadStore) {
	report, err := analytics.NewEngine(s).BuildReport()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return
	}
	printJSON(report)
}

func printLeads(leads []*model.Lead) {
	for _, l := range leads {
		name := l.DisplayName
		if name == "" {
			name = "-"
		}
		fmt.Printf("%-18s %-14s score=%-4d %s\n", l.Phone, l.Status, l.Score, name)
	}
	fmt.Printf("total: %d\n", len(leads))
}

func printJSON(v any) {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return
	}
	fmt.Println(string(b))
}

func commandArgs() []string {
	var out []string
	for _, v := range os.Args[1:] {
		if strings.HasPrefix(v, "--env=") {
			continue
		}
		out = append(out, v)
	}
	return out
}

func getEnvPath() string {
	for _, v := range os.Args {
		if strings.Contains(v, "--env=") {
			s := strings.Split(v, "=")
			if _, err := os.Open(s[1]); err != nil {
				logger.Error("failed to open the passed env file, got error" + err.Error())
				return ""
			}
			return s[1]
		}
	}
	if _, err := os.Open(".env"); err != nil {
		return ""
	}
	return ".env"
}
