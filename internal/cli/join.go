package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/spf13/cobra"

	"github.com/epidemic-mesh/epidemic/internal/daemon"
)

func init() {
	rootCmd.AddCommand(joinCmd)
}

var joinCmd = &cobra.Command{
	Use:   "join ADDR",
	Short: "Add a seed peer to a running daemon",
	Args:  cobra.ExactArgs(1),
	RunE:  runJoin,
}

func runJoin(cmd *cobra.Command, args []string) error {
	cfg, err := daemon.Load(configPath(cmd))
	if err != nil {
		return err
	}

	body, _ := json.Marshal(map[string]string{"addr": args[0]})
	resp, err := http.Post(statusURL(cfg.Status.Addr, "/seeds"), "application/json", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("contact daemon at %s: %w", cfg.Status.Addr, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusAccepted {
		return fmt.Errorf("daemon rejected seed: %s", resp.Status)
	}
	fmt.Printf("seed %s queued\n", args[0])
	return nil
}

func statusURL(addr, path string) string {
	return "http://" + addr + path
}
