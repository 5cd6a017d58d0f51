package cli

import (
	"fmt"
	"net/http"

	"github.com/spf13/cobra"

	"github.com/epidemic-mesh/epidemic/internal/daemon"
)

func init() {
	rootCmd.AddCommand(leaveCmd)
}

var leaveCmd = &cobra.Command{
	Use:   "leave",
	Short: "Tell a running daemon to leave the cluster gracefully",
	RunE:  runLeave,
}

func runLeave(cmd *cobra.Command, args []string) error {
	cfg, err := daemon.Load(configPath(cmd))
	if err != nil {
		return err
	}

	resp, err := http.Post(statusURL(cfg.Status.Addr, "/leave"), "application/json", nil)
	if err != nil {
		return fmt.Errorf("contact daemon at %s: %w", cfg.Status.Addr, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusAccepted {
		return fmt.Errorf("daemon rejected leave: %s", resp.Status)
	}
	fmt.Println("leave broadcast")
	return nil
}
