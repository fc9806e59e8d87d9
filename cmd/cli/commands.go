package main

import (
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
)

var (
	asJSON  bool
	outFile string
	actor   string
	matchID int
	team    string
	reason  string
)

func init() {
	scheduleCmd.Flags().BoolVar(&asJSON, "json", false, "Print the schedule as JSON")
	exportCmd.Flags().StringVarP(&outFile, "out", "o", "schedule.xlsx", "File to write the workbook to")

	for _, cmd := range []*cobra.Command{resetRescheduleCmd, cancelConflictCmd, excludeCmd} {
		cmd.Flags().StringVar(&actor, "actor", "", "User ID of the admin performing the action")
		_ = cmd.MarkFlagRequired("actor")
	}
	for _, cmd := range []*cobra.Command{resetRescheduleCmd, cancelConflictCmd} {
		cmd.Flags().IntVar(&matchID, "match", 0, "Match number")
		_ = cmd.MarkFlagRequired("match")
	}
	excludeCmd.Flags().StringVar(&team, "team", "", "Team to exclude")
	excludeCmd.Flags().StringVar(&reason, "reason", "", "Reason recorded with the forfeits")
	_ = excludeCmd.MarkFlagRequired("team")

	rootCmd.AddCommand(healthCmd)
	rootCmd.AddCommand(metricsCmd)
	rootCmd.AddCommand(scheduleCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(freeSlotsCmd)
	rootCmd.AddCommand(closeCmd)
	rootCmd.AddCommand(regenerateCmd)
	rootCmd.AddCommand(detectConflictsCmd)
	rootCmd.AddCommand(cancelConflictCmd)
	rootCmd.AddCommand(resetRescheduleCmd)
	rootCmd.AddCommand(excludeCmd)
}

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check the health of the server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return performGetRequest("/health")
	},
}

var metricsCmd = &cobra.Command{
	Use:   "metrics",
	Short: "Get application metrics",
	RunE: func(cmd *cobra.Command, args []string) error {
		return performGetRequest("/metrics")
	},
}

var scheduleCmd = &cobra.Command{
	Use:   "schedule",
	Short: "Show the current schedule",
	RunE: func(cmd *cobra.Command, args []string) error {
		if asJSON {
			return performGetRequest("/schedule?format=json")
		}
		return performGetRequest("/schedule")
	},
}

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Download the schedule as an Excel workbook",
	RunE: func(cmd *cobra.Command, args []string) error {
		resp, err := http.Get(host + "/schedule.xlsx")
		if err != nil {
			return fmt.Errorf("failed to make request: %w", err)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			body, _ := io.ReadAll(resp.Body)
			return fmt.Errorf("export failed with status %d: %s", resp.StatusCode, body)
		}
		f, err := os.Create(outFile)
		if err != nil {
			return fmt.Errorf("failed to create %s: %w", outFile, err)
		}
		defer f.Close()
		n, err := io.Copy(f, resp.Body)
		if err != nil {
			return fmt.Errorf("failed to write %s: %w", outFile, err)
		}
		fmt.Printf("Wrote %d bytes to %s\n", n, outFile)
		return nil
	},
}

var freeSlotsCmd = &cobra.Command{
	Use:   "free-slots",
	Short: "List the slots a match can be rescheduled to",
	RunE: func(cmd *cobra.Command, args []string) error {
		return performGetRequest("/free-slots")
	},
}

var closeCmd = &cobra.Command{
	Use:   "close",
	Short: "Close registration and publish the schedule",
	RunE: func(cmd *cobra.Command, args []string) error {
		return performPostRequest("/admin/close-registration", nil)
	},
}

var regenerateCmd = &cobra.Command{
	Use:   "regenerate",
	Short: "Assign slots to every match still waiting for one",
	RunE: func(cmd *cobra.Command, args []string) error {
		return performPostRequest("/admin/regenerate", nil)
	},
}

var detectConflictsCmd = &cobra.Command{
	Use:   "detect-conflicts",
	Short: "Open negotiations for teams without a common slot",
	RunE: func(cmd *cobra.Command, args []string) error {
		return performPostRequest("/admin/conflicts/detect", nil)
	},
}

var cancelConflictCmd = &cobra.Command{
	Use:   "cancel-conflict",
	Short: "Abort a conflict negotiation without an outcome",
	RunE: func(cmd *cobra.Command, args []string) error {
		return performPostRequest("/admin/conflicts/cancel", url.Values{"actor": {actor}, "match": {strconv.Itoa(matchID)}})
	},
}

var resetRescheduleCmd = &cobra.Command{
	Use:   "reset-reschedule",
	Short: "Force-reset a pending reschedule request",
	RunE: func(cmd *cobra.Command, args []string) error {
		return performPostRequest("/admin/reschedule/reset", url.Values{"actor": {actor}, "match": {strconv.Itoa(matchID)}})
	},
}

var excludeCmd = &cobra.Command{
	Use:   "exclude",
	Short: "Exclude a team and forfeit its open matches",
	RunE: func(cmd *cobra.Command, args []string) error {
		return performPostRequest("/admin/teams/exclude", url.Values{"actor": {actor}, "team": {team}, "reason": {reason}})
	},
}

func performGetRequest(endpoint string) error {
	url := host + endpoint
	fmt.Printf("Making request to %s\n", url)

	resp, err := http.Get(url)
	if err != nil {
		return fmt.Errorf("failed to make request: %w", err)
	}
	return printResponse(resp)
}

func performPostRequest(endpoint string, form url.Values) error {
	target := host + endpoint
	fmt.Printf("Making request to %s\n", target)

	req, err := http.NewRequest(http.MethodPost, target, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to make request: %w", err)
	}
	return printResponse(resp)
}

func printResponse(resp *http.Response) error {
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	fmt.Printf("Status Code: %d\n", resp.StatusCode)
	fmt.Println("Response Body:")
	fmt.Println(string(body))

	return nil
}
