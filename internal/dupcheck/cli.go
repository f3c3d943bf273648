package dupcheck

import "os"

// ShowHelp prints usage information for the check tool.
func ShowHelp() {
	os.Stdout.WriteString(`Pitchside duplicate-month check
===============================

Fires concurrent creates for one player and month against a running
service and verifies that exactly one assessment is stored.

Usage:
  go run ./cmd/assess-check [options]

Options:
  -url string
        Base URL of the service (default "http://localhost:8080")
  -actor string
        X-Actor-ID of the assessor (default "coach-amara")
  -player string
        Player to assess (default "player-lina")
  -date string
        Assessment date YYYY-MM-DD (default: today)
  -attempts int
        Number of concurrent creates (default 50)
  -workers int
        Number of concurrent workers (default: attempts)
  -timeout duration
        HTTP request timeout (default 10s)
  -verbose
        Log every rejected attempt
  -help
        Show this help message

The tool exits non-zero when more than one create is accepted or the
month holds anything other than one assessment afterwards.
`)
}
