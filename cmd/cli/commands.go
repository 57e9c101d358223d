package main

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"

	"github.com/kingdom-atlas/kvk-tracker/internal/pubsub"
	"github.com/spf13/cobra"
	"github.com/vmihailenco/msgpack/v5"
)

var (
	resolveAll     string
	resolveKingdom string
	resolveKvK     string
	commitOperator string
	recalcCycles   []int64
	recalcKingdoms []int64
)

func init() {
	rootCmd.AddCommand(healthCmd)
	rootCmd.AddCommand(kingdomsCmd)
	rootCmd.AddCommand(matchesCmd)
	rootCmd.AddCommand(leaderboardCmd)
	rootCmd.AddCommand(batchesCmd)
	rootCmd.AddCommand(metricsCmd)
	rootCmd.AddCommand(importCmd)
	rootCmd.AddCommand(sessionCmd)
	rootCmd.AddCommand(resolveCmd)
	rootCmd.AddCommand(commitCmd)
	rootCmd.AddCommand(backCmd)
	rootCmd.AddCommand(recalculateCmd)

	resolveCmd.Flags().StringVar(&resolveAll, "all", "", "Bulk decision for every conflict (skip or replace)")
	resolveCmd.Flags().StringVar(&resolveKingdom, "kingdom", "", "Kingdom number of the conflict to toggle")
	resolveCmd.Flags().StringVar(&resolveKvK, "kvk", "", "KvK cycle of the conflict to toggle")
	commitCmd.Flags().StringVar(&commitOperator, "operator", "cli", "Operator name recorded on the import batch")
	recalculateCmd.Flags().Int64SliceVar(&recalcCycles, "cycles", nil, "KvK cycles whose history snapshots and ranks should be rebuilt")
	recalculateCmd.Flags().Int64SliceVar(&recalcKingdoms, "kingdoms", nil, "Kingdoms to recompute (default all)")
}

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check the health of the server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return performGetRequest("/health")
	},
}

var kingdomsCmd = &cobra.Command{
	Use:   "kingdoms",
	Short: "List the kingdoms in the store",
	RunE: func(cmd *cobra.Command, args []string) error {
		return performGetRequest("/kingdoms")
	},
}

var matchesCmd = &cobra.Command{
	Use:   "matches",
	Short: "List all stored match records",
	RunE: func(cmd *cobra.Command, args []string) error {
		return performGetRequest("/matches")
	},
}

var leaderboardCmd = &cobra.Command{
	Use:   "leaderboard",
	Short: "Show the kingdom leaderboard",
	RunE: func(cmd *cobra.Command, args []string) error {
		return performGetRequest("/leaderboard")
	},
}

var batchesCmd = &cobra.Command{
	Use:   "batches",
	Short: "List recent import batches",
	RunE: func(cmd *cobra.Command, args []string) error {
		return performGetRequest("/import/batches")
	},
}

var metricsCmd = &cobra.Command{
	Use:   "metrics",
	Short: "Get application metrics",
	RunE: func(cmd *cobra.Command, args []string) error {
		return performGetRequest("/metrics")
	},
}

var importCmd = &cobra.Command{
	Use:   "import [file]",
	Short: "Upload a match history file and open an import session",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return performFileUpload("/import/preview", args[0])
	},
}

var sessionCmd = &cobra.Command{
	Use:   "session [id]",
	Short: "Show the state of an import session",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return performGetRequest("/import/session?session=" + url.QueryEscape(args[0]))
	},
}

var resolveCmd = &cobra.Command{
	Use:   "resolve [session]",
	Short: "Toggle a conflict decision, or set all of them with --all",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		params := url.Values{"session": {args[0]}}
		if resolveAll != "" {
			params.Set("all", resolveAll)
		} else {
			params.Set("kingdom", resolveKingdom)
			params.Set("kvk", resolveKvK)
		}
		return performPostRequest("/import/resolve?" + params.Encode())
	},
}

var commitCmd = &cobra.Command{
	Use:   "commit [session]",
	Short: "Commit an import session",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		params := url.Values{"session": {args[0]}, "operator": {commitOperator}}
		return performPostRequest("/import/commit?" + params.Encode())
	},
}

var recalculateCmd = &cobra.Command{
	Use:   "recalculate",
	Short: "Rebuild aggregates, history snapshots and ranks",
	Long: `Posts a recalculate-stats message to the server's push endpoint, the
same payload the Pub/Sub subscription would deliver.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		payload, err := msgpack.Marshal(pubsub.RecalculateStats{
			KingdomIDs: recalcKingdoms,
			Cycles:     recalcCycles,
		})
		if err != nil {
			return fmt.Errorf("failed to marshal payload: %w", err)
		}

		envelope := map[string]any{
			"subscription": "cli",
			"message": map[string]string{
				"data": base64.StdEncoding.EncodeToString(payload),
			},
		}
		body, err := json.Marshal(envelope)
		if err != nil {
			return fmt.Errorf("failed to marshal envelope: %w", err)
		}

		url := host + "/recalculate-stats"
		fmt.Printf("Making request to %s\n", url)
		resp, err := http.Post(url, "application/json", bytes.NewReader(body))
		if err != nil {
			return fmt.Errorf("failed to make request: %w", err)
		}
		defer resp.Body.Close()

		return printResponse(resp)
	},
}

var backCmd = &cobra.Command{
	Use:   "back [session]",
	Short: "Discard an import session",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return performPostRequest("/import/back?session=" + url.QueryEscape(args[0]))
	},
}

func performGetRequest(endpoint string) error {
	url := host + endpoint
	fmt.Printf("Making request to %s\n", url)

	resp, err := http.Get(url)
	if err != nil {
		return fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()

	return printResponse(resp)
}

func performPostRequest(endpoint string) error {
	url := host + endpoint
	fmt.Printf("Making request to %s\n", url)

	resp, err := http.Post(url, "application/octet-stream", nil)
	if err != nil {
		return fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()

	return printResponse(resp)
}

func performFileUpload(endpoint string, path string) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("file", filepath.Base(path))
	if err != nil {
		return fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := io.Copy(part, file); err != nil {
		return fmt.Errorf("failed to copy file contents: %w", err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("failed to finish multipart body: %w", err)
	}

	url := host + endpoint
	fmt.Printf("Uploading %s to %s\n", path, url)

	resp, err := http.Post(url, writer.FormDataContentType(), &body)
	if err != nil {
		return fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()

	return printResponse(resp)
}

func printResponse(resp *http.Response) error {
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	fmt.Printf("Status Code: %d\n", resp.StatusCode)
	fmt.Println("Response Body:")
	fmt.Println(string(body))

	return nil
}
