// Package main implements the rankctl CLI for manual operations against the rerankd HTTP server.
package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/rerankd/internal/rerank"
)

var (
	// serverURL is the base URL for the rerankd HTTP server
	serverURL string
	// version information
	version = "dev"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "rankctl",
	Short: "CLI for rerankd HTTP server operations",
	Long: `rankctl is a command-line interface for interacting with the rerankd HTTP server.
It provides commands for ranking documents against a query and checking server health.`,
	Version: version,
}

var (
	rankTopN            int
	rankField           []string
	rankReturnDocuments bool
)

func init() {
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "http://localhost:9090", "rerankd server URL")

	rankCmd.Flags().IntVar(&rankTopN, "top-n", 0, "return only the top N results (0 means all)")
	rankCmd.Flags().StringSliceVar(&rankField, "field", nil, "document fields to rank on (repeatable)")
	rankCmd.Flags().BoolVar(&rankReturnDocuments, "documents", true, "include document payloads in results")

	rootCmd.AddCommand(rankCmd)
	rootCmd.AddCommand(healthCmd)
}

// rankCmd ranks documents from arguments or stdin against a query
var rankCmd = &cobra.Command{
	Use:   "rank <query> [document...]",
	Short: "Rank documents by relevance to a query",
	Long: `Rank documents by relevance to a query using the rerankd server.

Documents are passed as arguments, or as a JSON array on stdin when no
document arguments are given. The JSON form accepts both plain strings
and objects, matching the server's document union.

Examples:
  # Rank plain-text documents
  rankctl rank "capital of France" "Paris is in France" "Berlin is in Germany"

  # Rank a JSON document array from stdin
  echo '[{"title":"a","text":"b"}]' | rankctl rank "query"

  # Keep only the best match, ranking on a specific field
  rankctl rank --top-n 1 --field title "query" < docs.json

  # Use a different server
  rankctl rank --server http://localhost:8080 "query" "doc"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runRank,
}

// healthCmd checks server health
var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check rerankd server health",
	Long: `Check the health status of the rerankd HTTP server.

Examples:
  # Check health
  rankctl health

  # Check health on a different server
  rankctl health --server http://localhost:8080`,
	RunE: runHealth,
}

// HealthResponse matches internal/http/server.go HealthResponse
type HealthResponse struct {
	Status string `json:"status"`
	Model  string `json:"model"`
}

// runRank handles the rank command
func runRank(cmd *cobra.Command, args []string) error {
	if rankTopN < 0 {
		return fmt.Errorf("--top-n cannot be negative (got %d)", rankTopN)
	}

	query := args[0]

	var documents []json.RawMessage
	if len(args) > 1 {
		for _, doc := range args[1:] {
			raw, err := json.Marshal(doc)
			if err != nil {
				return fmt.Errorf("failed to encode document: %w", err)
			}
			documents = append(documents, raw)
		}
	} else {
		// Read a JSON document array from stdin
		input, err := io.ReadAll(os.Stdin)
		if err != nil {
			return fmt.Errorf("failed to read from stdin: %w", err)
		}
		if err := json.Unmarshal(input, &documents); err != nil {
			return fmt.Errorf("stdin must be a JSON array of documents: %w", err)
		}
	}

	reqBody := map[string]any{
		"query":            query,
		"documents":        documents,
		"return_documents": rankReturnDocuments,
	}
	if rankTopN > 0 {
		reqBody["top_n"] = rankTopN
	}
	if len(rankField) > 0 {
		reqBody["rank_fields"] = rankField
	}

	reqJSON, err := json.Marshal(reqBody)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/v1/rerank", serverURL)
	httpReq, err := http.NewRequest("POST", url, bytes.NewReader(reqJSON))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	client := &http.Client{
		Timeout: 30 * time.Second,
	}

	resp, err := client.Do(httpReq)
	if err != nil {
		return fmt.Errorf("failed to send request to %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, readErr := io.ReadAll(resp.Body)
		if readErr != nil {
			return fmt.Errorf("server returned status %d (failed to read response body: %w)", resp.StatusCode, readErr)
		}
		return fmt.Errorf("server returned status %d: %s", resp.StatusCode, string(body))
	}

	var rankResp rerank.RankResponse
	if err := json.NewDecoder(resp.Body).Decode(&rankResp); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	out, err := json.MarshalIndent(rankResp, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode response: %w", err)
	}
	fmt.Println(string(out))

	return nil
}

// runHealth handles the health command
func runHealth(cmd *cobra.Command, args []string) error {
	url := fmt.Sprintf("%s/health", serverURL)

	client := &http.Client{
		Timeout: 5 * time.Second,
	}

	resp, err := client.Get(url)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: Failed to connect to %s: %v\n", url, err)
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, readErr := io.ReadAll(resp.Body)
		if readErr != nil {
			return fmt.Errorf("server returned status %d (failed to read response body: %w)", resp.StatusCode, readErr)
		}
		return fmt.Errorf("server returned status %d: %s", resp.StatusCode, string(body))
	}

	var healthResp HealthResponse
	if err := json.NewDecoder(resp.Body).Decode(&healthResp); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	fmt.Printf("Server Status: %s\n", healthResp.Status)
	fmt.Printf("Server Model:  %s\n", healthResp.Model)
	fmt.Printf("Server URL:    %s\n", serverURL)

	return nil
}
