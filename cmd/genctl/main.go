// genctl is a small operator CLI for the generation API: submit a job, check
// its status, or read a user's credit balance.
package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

var (
	apiBaseURL string
	userID     string
	httpClient = &http.Client{Timeout: 30 * time.Second}
)

var rootCmd = &cobra.Command{
	Use:   "genctl",
	Short: "Operator CLI for the generation job service",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if apiBaseURL == "" {
			apiBaseURL = os.Getenv("GENCTL_API_URL")
		}
		if apiBaseURL == "" {
			apiBaseURL = "http://localhost:8080"
		}
		apiBaseURL = strings.TrimRight(apiBaseURL, "/")
		if userID == "" {
			userID = os.Getenv("GENCTL_USER_ID")
		}
		if userID == "" {
			log.Fatal("user id required: pass --user or set GENCTL_USER_ID")
		}
	},
}

var submitCmd = &cobra.Command{
	Use:   "submit",
	Short: "Submit a generation job",
	Run: func(cmd *cobra.Command, args []string) {
		prompt, _ := cmd.Flags().GetString("prompt")
		providerName, _ := cmd.Flags().GetString("provider")
		quantity, _ := cmd.Flags().GetInt("quantity")
		if prompt == "" {
			log.Fatal("--prompt is required")
		}
		body, err := json.Marshal(map[string]any{
			"provider": providerName,
			"quantity": quantity,
			"prompt":   map[string]string{"text": prompt},
		})
		if err != nil {
			log.Fatalf("encode request: %v", err)
		}
		out, err := call(http.MethodPost, "/v1/generations", bytes.NewReader(body))
		if err != nil {
			log.Fatalf("submit failed: %v", err)
		}
		fmt.Println(out)
	},
}

var statusCmd = &cobra.Command{
	Use:   "status job-id",
	Short: "Show the state or outcome of a job",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		out, err := call(http.MethodGet, "/v1/generations/"+args[0], nil)
		if err != nil {
			log.Fatalf("status failed: %v", err)
		}
		fmt.Println(out)
	},
}

var creditsCmd = &cobra.Command{
	Use:   "credits",
	Short: "Show the user's credit balance",
	Run: func(cmd *cobra.Command, args []string) {
		out, err := call(http.MethodGet, "/v1/credits", nil)
		if err != nil {
			log.Fatalf("credits failed: %v", err)
		}
		fmt.Println(out)
	},
}

func call(method, path string, body io.Reader) (string, error) {
	req, err := http.NewRequest(method, apiBaseURL+path, body)
	if err != nil {
		return "", err
	}
	req.Header.Set("X-User-ID", userID)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	if resp.StatusCode >= 400 {
		return "", fmt.Errorf("%s: %s", resp.Status, strings.TrimSpace(string(raw)))
	}
	var pretty bytes.Buffer
	if err := json.Indent(&pretty, raw, "", "  "); err != nil {
		return strings.TrimSpace(string(raw)), nil
	}
	return pretty.String(), nil
}

func main() {
	rootCmd.PersistentFlags().StringVar(&apiBaseURL, "api", "", "API base URL (default GENCTL_API_URL or http://localhost:8080)")
	rootCmd.PersistentFlags().StringVar(&userID, "user", "", "user id the requests act for")

	submitCmd.Flags().String("prompt", "", "prompt text")
	submitCmd.Flags().String("provider", "", "provider name (empty for default)")
	submitCmd.Flags().Int("quantity", 1, "number of units to generate")

	rootCmd.AddCommand(submitCmd, statusCmd, creditsCmd)
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
